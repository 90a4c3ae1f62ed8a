package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromPassesThroughWrapped(t *testing.T) {
	orig := NotFound("Project %s not found", "p1")
	got := From(fmt.Errorf("get project: %w", orig))
	if got != orig {
		t.Fatalf("From = %v, want the original error", got)
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	e := Internal(cause)
	if e.Status != http.StatusInternalServerError || e.Code != "INTERNAL_ERROR" {
		t.Fatalf("status/code = %d/%s", e.Status, e.Code)
	}
	if e.Message != "Internal server error" {
		t.Fatalf("message = %q, leaks the cause", e.Message)
	}
	if !errors.Is(e, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
	if !errors.Is(From(cause), cause) {
		t.Fatal("From dropped the cause")
	}
}
