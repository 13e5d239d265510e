package models

import (
	"errors"
	"strings"
	"testing"
)

func TestFailed_AlwaysHasText(t *testing.T) {
	cause := errors.New("connection refused")
	r := Failed(NewFailure(KindModelCall, "model call failed", cause))

	if r.OK() {
		t.Fatalf("expected failure")
	}
	if !strings.HasPrefix(r.Text, ErrorPrefix) || !strings.Contains(r.Text, "connection refused") {
		t.Fatalf("text=%q", r.Text)
	}
	if !errors.Is(r.Failure, cause) {
		t.Fatalf("failure should unwrap to its cause")
	}
	if r.Failure.Kind.String() != "model_call_failure" {
		t.Fatalf("kind=%s", r.Failure.Kind)
	}
}

func TestSuccess(t *testing.T) {
	r := Success("45.00")
	if !r.OK() || r.Text != "45.00" {
		t.Fatalf("r=%+v", r)
	}
}
