package llmservice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/testutil"
)

func TestComplete_ReturnsAnswer(t *testing.T) {
	model := &testutil.FakeModel{Respond: func(prompt string) (string, error) {
		return "<think>adding up</think>\nThe total is $45.00.", nil
	}}
	c := NewClient(model, time.Second)

	r := c.Complete(context.Background(), "What is the total?")
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Text != "The total is $45.00." {
		t.Fatalf("text=%q", r.Text)
	}
	if got := model.Prompts(); len(got) != 1 || got[0] != "What is the total?" {
		t.Fatalf("prompts=%q", got)
	}
}

func TestComplete_FailureIsText(t *testing.T) {
	model := &testutil.FakeModel{Respond: func(string) (string, error) {
		return "", errors.New("dial tcp 127.0.0.1:11434: connection refused")
	}}
	r := NewClient(model, time.Second).Complete(context.Background(), "hi")

	if r.OK() {
		t.Fatalf("expected failure")
	}
	if r.Failure.Kind != models.KindModelCall {
		t.Fatalf("kind=%s", r.Failure.Kind)
	}
	if !strings.HasPrefix(r.Text, models.ErrorPrefix) || !strings.Contains(r.Text, "connection refused") {
		t.Fatalf("text=%q", r.Text)
	}
}

func TestStream_FragmentsInOrder(t *testing.T) {
	model := &testutil.FakeModel{Respond: func(string) (string, error) {
		return "Invoice 123 totals 45.00", nil
	}}
	s := NewClient(model, time.Second).Stream(context.Background(), "total?")
	defer s.Close()

	var fragments []string
	for s.Next() {
		fragments = append(fragments, s.Text())
	}
	if s.Err() != nil {
		t.Fatalf("unexpected failure: %v", s.Err())
	}
	if len(fragments) != 4 {
		t.Fatalf("fragments=%q", fragments)
	}
	if strings.Join(fragments, "") != "Invoice 123 totals 45.00" {
		t.Fatalf("joined=%q", strings.Join(fragments, ""))
	}
	if s.Next() {
		t.Fatalf("stream must not restart")
	}
}

func TestStream_DropsReasoningBlock(t *testing.T) {
	model := &testutil.FakeModel{Respond: func(string) (string, error) {
		return "<think>the user wants the total</think>\n45.00", nil
	}}
	s := NewClient(model, time.Second).Stream(context.Background(), "total?")
	defer s.Close()

	var fragments []string
	for s.Next() {
		fragments = append(fragments, s.Text())
	}
	if s.Err() != nil {
		t.Fatalf("unexpected failure: %v", s.Err())
	}
	if got := strings.Join(fragments, ""); got != "45.00" {
		t.Fatalf("joined=%q fragments=%q", got, fragments)
	}
}

func TestThinkFilter_SplitTags(t *testing.T) {
	tests := map[string]string{
		"<think>reasoning</think>Answer: 45": "Answer: 45",
		"before <think>x</think>after":       "before after",
		"a < b and <thin":                    "a < b and <thin",
		"<think>never closed":                "",
		"no tags at all":                     "no tags at all",
		"<think>a</think><think>b</think> 7": "7",
	}
	for input, want := range tests {
		// one byte at a time splits every tag
		var f thinkFilter
		var b strings.Builder
		for i := 0; i < len(input); i++ {
			b.WriteString(f.Write(input[i : i+1]))
		}
		b.WriteString(f.Flush())
		if b.String() != want {
			t.Errorf("%q: got %q, want %q", input, b.String(), want)
		}
	}
}

func TestStream_FailureEndsWithErrorFragment(t *testing.T) {
	model := &testutil.FakeModel{Respond: func(string) (string, error) {
		return "", errors.New("model not found")
	}}
	r := NewClient(model, time.Second).Stream(context.Background(), "total?").Collect()

	if r.OK() {
		t.Fatalf("expected failure")
	}
	if r.Failure.Kind != models.KindModelCall {
		t.Fatalf("kind=%s", r.Failure.Kind)
	}
	if !strings.HasPrefix(r.Text, models.ErrorPrefix) || !strings.Contains(r.Text, "model not found") {
		t.Fatalf("text=%q", r.Text)
	}
}

func TestStream_CloseStopsProducer(t *testing.T) {
	model := &testutil.FakeModel{Respond: func(string) (string, error) {
		return strings.Repeat("word ", 100), nil
	}}
	s := NewClient(model, time.Second).Stream(context.Background(), "long")
	if !s.Next() {
		t.Fatalf("expected a first fragment")
	}
	s.Close()
	if s.Next() {
		t.Fatalf("Next after Close must be false")
	}
	s.Close()
}

func TestTypewriter_ReplaysWords(t *testing.T) {
	text := "  The total amount is\n$45.00.  "
	s := Typewriter(context.Background(), text, time.Millisecond)

	var fragments []string
	for s.Next() {
		fragments = append(fragments, s.Text())
	}
	s.Close()
	if len(fragments) != 5 {
		t.Fatalf("fragments=%q", fragments)
	}
	if strings.Join(fragments, "") != text {
		t.Fatalf("joined=%q", strings.Join(fragments, ""))
	}
}

func TestTypewriter_Delay(t *testing.T) {
	start := time.Now()
	r := Typewriter(context.Background(), "one two three", 20*time.Millisecond).Collect()
	if r.Text != "one two three" {
		t.Fatalf("text=%q", r.Text)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected two delays, took %s", elapsed)
	}
}

func TestTypewriter_Empty(t *testing.T) {
	if r := Typewriter(context.Background(), "", time.Millisecond).Collect(); r.Text != "" || !r.OK() {
		t.Fatalf("r=%+v", r)
	}
}

func TestNewModel_UnknownProvider(t *testing.T) {
	if _, err := NewModel(config.LLMConfig{Provider: "bard"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFailed_SingleErrorFragment(t *testing.T) {
	f := models.NewFailure(models.KindModelCall, "failed to build prompt", nil)
	res := Failed(context.Background(), f).Collect()
	if res.Text != "Error: failed to build prompt" || res.Failure != f {
		t.Fatalf("result = %+v", res)
	}
}
