package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestWithInternalKeepsOriginal(t *testing.T) {
	cause := errors.New("disk failure")
	err := ErrNotFound.WithInternal(cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to match the cause")
	}
	if err.Code != ErrNotFound.Code {
		t.Fatalf("expected code %q got %q", ErrNotFound.Code, err.Code)
	}
	if ErrNotFound.Internal != nil {
		t.Fatal("sentinel must not be mutated")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Fatal("nil error should map to nil")
	}

	if got := FromError(ErrForbidden); got != ErrForbidden {
		t.Fatalf("expected sentinel passthrough, got %+v", got)
	}

	wrapped := Wrap(errors.New("boom"), "saving pattern")
	if got := FromError(wrapped); got.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", got.StatusCode)
	}

	plain := FromError(errors.New("boom"))
	if plain.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal error code got %q", plain.Code)
	}
}

func TestForbiddenAndNotFoundAreDistinct(t *testing.T) {
	if errors.Is(ErrForbidden, ErrNotFound) {
		t.Fatal("forbidden must not match not-found")
	}
	if ErrForbidden.StatusCode != http.StatusForbidden || ErrNotFound.StatusCode != http.StatusNotFound {
		t.Fatal("unexpected status codes")
	}
}
