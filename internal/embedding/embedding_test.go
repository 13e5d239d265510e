package embedding

import (
	"context"
	"testing"

	"document-qa/internal/config"
	"document-qa/internal/testutil"
)

func TestEmbedChunks(t *testing.T) {
	e := &testutil.FakeEmbedder{}
	vecs, err := EmbedChunks(context.Background(), e, []string{"invoice", "total 45.00"})
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 27 {
		t.Fatalf("vecs=%d dims=%d", len(vecs), len(vecs[0]))
	}
	if e.Calls() != 2 {
		t.Fatalf("calls=%d", e.Calls())
	}
}

func TestEmbedChunks_Empty(t *testing.T) {
	vecs, err := EmbedChunks(context.Background(), &testutil.FakeEmbedder{}, nil)
	if err != nil || vecs != nil {
		t.Fatalf("vecs=%v err=%v", vecs, err)
	}
}

func TestNewEmbedder(t *testing.T) {
	if _, err := NewEmbedder(config.LLMConfig{Provider: "bard"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	e, err := NewEmbedder(config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://localhost:11434", Model: "nomic-embed-text"})
	if err != nil || e == nil {
		t.Fatalf("ollama embedder: %v", err)
	}
}
