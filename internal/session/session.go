// Package session holds the per-user state of a Flow B chat: which
// document is loaded, how far it got, and the conversation so far.
package session

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

type State int

const (
	NoDocument State = iota
	Uploaded
	Indexed
)

func (s State) String() string {
	switch s {
	case Uploaded:
		return "uploaded"
	case Indexed:
		return "indexed"
	default:
		return "no_document"
	}
}

type Session struct {
	ID string

	// mu serialises Upload and Ask on one session.
	mu sync.Mutex

	// fields guards the document fields, which are read outside an
	// interaction (for example by HTTP handlers).
	fields       sync.RWMutex
	state        State
	documentID   string
	documentName string
	history      *History
}

// Snapshot is a consistent copy of a session's document fields.
type Snapshot struct {
	State        State
	DocumentID   string
	DocumentName string
}

func New() *Session {
	return &Session{ID: helper.GenerateUUID(), history: NewHistory()}
}

// Lock is held by the orchestrator for the length of one interaction.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

func (s *Session) Snapshot() Snapshot {
	s.fields.RLock()
	defer s.fields.RUnlock()
	return Snapshot{State: s.state, DocumentID: s.documentID, DocumentName: s.documentName}
}

func (s *Session) State() State         { return s.Snapshot().State }
func (s *Session) DocumentID() string   { return s.Snapshot().DocumentID }
func (s *Session) DocumentName() string { return s.Snapshot().DocumentName }
func (s *Session) History() *History    { return s.history }

func (s *Session) SetState(state State) {
	s.fields.Lock()
	s.state = state
	s.fields.Unlock()
}

// SetDocument records a newly uploaded document. The history is kept.
func (s *Session) SetDocument(id, name string) {
	s.fields.Lock()
	defer s.fields.Unlock()
	s.documentID = id
	s.documentName = name
	s.state = Uploaded
}

// History is the append-only conversation of a session, kept in a
// langchaingo chat message history.
type History struct {
	mu    sync.RWMutex
	chat  *memory.ChatMessageHistory
	turns []models.Turn
}

func NewHistory() *History {
	return &History{chat: memory.NewChatMessageHistory()}
}

// Append records one question and its answer.
func (h *History) Append(ctx context.Context, question, answer string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.chat.AddUserMessage(ctx, question); err != nil {
		return err
	}
	if err := h.chat.AddAIMessage(ctx, answer); err != nil {
		return err
	}
	h.turns = append(h.turns,
		models.Turn{Role: models.RoleUser, Content: question},
		models.Turn{Role: models.RoleAssistant, Content: answer},
	)
	return nil
}

// Turns returns a copy; the caller cannot alter recorded entries.
func (h *History) Turns() []models.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]models.Turn(nil), h.turns...)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Buffer renders the history as "User: ...\nAssistant: ..." lines for a
// prompt. An empty history renders as "".
func (h *History) Buffer(ctx context.Context) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	messages, err := h.chat.Messages(ctx)
	if err != nil {
		return "", err
	}
	return llms.GetBufferString(messages, "User", "Assistant")
}
