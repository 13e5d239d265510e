package models

import "fmt"

// Kind classifies a failure surfaced to the user.
type Kind int

const (
	KindExtraction Kind = iota + 1
	KindIndexBuild
	KindModelCall
	KindRetrieval
	KindNoDocument
)

func (k Kind) String() string {
	switch k {
	case KindExtraction:
		return "extraction_failure"
	case KindIndexBuild:
		return "index_build_failure"
	case KindModelCall:
		return "model_call_failure"
	case KindRetrieval:
		return "retrieval_failure"
	case KindNoDocument:
		return "no_document"
	default:
		return "unknown_failure"
	}
}

// Failure is a structured error that is also rendered as user-visible text.
type Failure struct {
	Kind    Kind
	Message string
	Err     error
}

func NewFailure(kind Kind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// Result always carries text: the answer on success, an error message
// otherwise.
type Result struct {
	Text    string
	Failure *Failure
}

func Success(text string) Result {
	return Result{Text: text}
}

func Failed(f *Failure) Result {
	return Result{Text: ErrorPrefix + f.Error(), Failure: f}
}

func (r Result) OK() bool { return r.Failure == nil }
