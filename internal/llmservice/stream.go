package llmservice

import (
	"context"
	"strings"
	"sync"

	"document-qa/internal/models"
)

// Stream is a lazy, finite, single-pass sequence of text fragments. It is
// consumed like bufio.Scanner:
//
//	for s.Next() {
//		fmt.Print(s.Text())
//	}
//	if f := s.Err(); f != nil { ... }
//
// Close stops the producer; it is safe to call more than once.
type Stream struct {
	ch     chan string
	cancel context.CancelFunc

	mu      sync.Mutex
	failure *models.Failure
	closed  bool
	cur     string
}

type producer func(ctx context.Context, emit func(string) error) *models.Failure

func newStream(ctx context.Context, produce producer) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{ch: make(chan string), cancel: cancel}

	go func() {
		defer close(s.ch)
		emit := func(text string) error {
			select {
			case s.ch <- text:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		f := produce(ctx, emit)
		if f == nil {
			return
		}
		s.mu.Lock()
		s.failure = f
		s.mu.Unlock()
		_ = emit(models.ErrorPrefix + f.Error())
	}()
	return s
}

// Next advances to the next fragment.
func (s *Stream) Next() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	text, ok := <-s.ch
	if !ok {
		return false
	}
	s.cur = text
	return true
}

// Text is the fragment produced by the last call to Next.
func (s *Stream) Text() string { return s.cur }

// Err is the failure that ended the stream, if any. It is final once Next
// has returned false.
func (s *Stream) Err() *models.Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// Collect drains the stream and concatenates the fragments.
func (s *Stream) Collect() models.Result {
	defer s.Close()
	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Text())
	}
	return models.Result{Text: b.String(), Failure: s.Err()}
}

// Failed returns a stream whose only fragment is the error text of f.
func Failed(ctx context.Context, f *models.Failure) *Stream {
	return newStream(ctx, func(context.Context, func(string) error) *models.Failure {
		return f
	})
}
