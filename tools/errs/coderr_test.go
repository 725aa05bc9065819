package errs

import (
	"errors"
	"testing"
)

func TestWrapMsgKeepsCode(t *testing.T) {
	err := ErrNotFound.WrapMsg("conversation not found", "id", "c1")
	var coded *CodeError
	if !errors.As(err, &coded) {
		t.Fatalf("wrapped error lost its type")
	}
	if coded.Code != ErrNotFound.Code {
		t.Fatalf("code = %d, want %d", coded.Code, ErrNotFound.Code)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is must match on code")
	}
}

func TestWithDetailDoesNotMutate(t *testing.T) {
	detailed := ErrArgs.WithDetail("bad peer")
	if ErrArgs.Detail != "" {
		t.Fatalf("shared error mutated: %q", ErrArgs.Detail)
	}
	if detailed.Detail != "bad peer" {
		t.Fatalf("detail = %q", detailed.Detail)
	}
}
