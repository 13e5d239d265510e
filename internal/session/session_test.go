package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"document-qa/internal/models"
)

func TestNewSession(t *testing.T) {
	s := New()
	if s.ID == "" {
		t.Fatal("session without ID")
	}
	if s.State() != NoDocument {
		t.Fatalf("state = %v, want no_document", s.State())
	}
	if New().ID == s.ID {
		t.Fatal("two sessions share an ID")
	}
}

func TestSetDocumentKeepsHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SetDocument("aaaa", "a.pdf")
	s.SetState(Indexed)
	if err := s.History().Append(ctx, "q", "a"); err != nil {
		t.Fatal(err)
	}

	s.SetDocument("bbbb", "b.pdf")
	if s.State() != Uploaded || s.DocumentID() != "bbbb" || s.DocumentName() != "b.pdf" {
		t.Fatalf("after new upload: state=%v id=%s name=%s", s.State(), s.DocumentID(), s.DocumentName())
	}
	if s.History().Len() != 2 {
		t.Fatalf("history length = %d, want 2", s.History().Len())
	}
}

func TestHistoryOrder(t *testing.T) {
	ctx := context.Background()
	h := NewHistory()
	const n = 4
	for i := 0; i < n; i++ {
		if err := h.Append(ctx, fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	turns := h.Turns()
	if len(turns) != 2*n {
		t.Fatalf("got %d turns, want %d", len(turns), 2*n)
	}
	for i := 0; i < n; i++ {
		q, a := turns[2*i], turns[2*i+1]
		if q.Role != models.RoleUser || q.Content != fmt.Sprintf("question %d", i) {
			t.Fatalf("turn %d = %+v", 2*i, q)
		}
		if a.Role != models.RoleAssistant || a.Content != fmt.Sprintf("answer %d", i) {
			t.Fatalf("turn %d = %+v", 2*i+1, a)
		}
	}
}

func TestTurnsIsACopy(t *testing.T) {
	h := NewHistory()
	if err := h.Append(context.Background(), "q", "a"); err != nil {
		t.Fatal(err)
	}
	turns := h.Turns()
	turns[0].Content = "changed"
	if h.Turns()[0].Content != "q" {
		t.Fatal("recorded turn was modified through Turns")
	}
}

func TestBuffer(t *testing.T) {
	ctx := context.Background()
	h := NewHistory()

	empty, err := h.Buffer(ctx)
	if err != nil || empty != "" {
		t.Fatalf("empty buffer = %q, %v", empty, err)
	}

	if err := h.Append(ctx, "What is the total?", "45.00"); err != nil {
		t.Fatal(err)
	}
	buf, err := h.Buffer(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf, "User: What is the total?") || !strings.Contains(buf, "Assistant: 45.00") {
		t.Fatalf("buffer = %q", buf)
	}
}

// Run with -race: document fields are written under the interaction lock
// and read without it.
func TestSnapshotDuringUploads(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Lock()
			defer s.Unlock()
			s.SetDocument(fmt.Sprintf("doc-%d", i), fmt.Sprintf("%d.pdf", i))
			s.SetState(Indexed)
		}(i)
		go func() {
			defer wg.Done()
			snap := s.Snapshot()
			if snap.State != NoDocument && snap.DocumentID == "" {
				t.Errorf("snapshot %+v has a state but no document", snap)
			}
			_ = s.State()
			_ = s.DocumentID()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.State != Indexed || !strings.HasPrefix(snap.DocumentID, "doc-") {
		t.Fatalf("final snapshot = %+v", snap)
	}
}
