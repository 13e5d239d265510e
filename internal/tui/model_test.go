package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"document-qa/internal/document"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/session"
)

type fakePort struct {
	answer    string
	questions []string
}

func (f *fakePort) Upload(context.Context, *session.Session, document.Document) models.Result {
	return models.Success("invoice.pdf is ready.")
}

func (f *fakePort) Ask(_ context.Context, _ *session.Session, q string) models.Result {
	f.questions = append(f.questions, q)
	return models.Success(f.answer)
}

func (f *fakePort) Type(ctx context.Context, text string) *llmservice.Stream {
	return llmservice.Typewriter(ctx, text, 0)
}

func newModel(port *fakePort) Model {
	m := New(context.Background(), port, session.New(), document.New("invoice.pdf", []byte("Total: 45.00")))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

// drain runs cmd and feeds every resulting message back into the model.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 100 {
			t.Fatal("command chain did not finish")
		}
		next, c := m.Update(cmd())
		m, cmd = next.(Model), c
	}
	return m
}

func TestUploadOnStart(t *testing.T) {
	m := newModel(&fakePort{})
	m = drain(t, m, m.upload())
	if m.busy || m.status != "invoice.pdf is ready." {
		t.Fatalf("after upload: busy=%v status=%q", m.busy, m.status)
	}
}

func TestAskTypesAnswer(t *testing.T) {
	port := &fakePort{answer: "The total is 45.00."}
	m := newModel(port)
	m = drain(t, m, m.upload())

	m.input.SetValue("What is the total?")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if !m.busy || m.input.Value() != "" {
		t.Fatalf("after enter: busy=%v input=%q", m.busy, m.input.Value())
	}
	m = drain(t, m, cmd)

	if len(port.questions) != 1 || port.questions[0] != "What is the total?" {
		t.Fatalf("questions = %q", port.questions)
	}
	if len(m.entries) != 2 || m.entries[1].text != "The total is 45.00." {
		t.Fatalf("entries = %+v", m.entries)
	}
	if m.busy {
		t.Fatal("still busy after typing finished")
	}
	if !strings.Contains(m.render(), "45.00") {
		t.Fatalf("render = %q", m.render())
	}
}

func TestEnterIgnoredWhileBusy(t *testing.T) {
	port := &fakePort{answer: "x"}
	m := newModel(port)
	m.input.SetValue("question")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("asked before the document was loaded")
	}
}

func TestQuit(t *testing.T) {
	m := newModel(&fakePort{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c did not quit")
	}
}
