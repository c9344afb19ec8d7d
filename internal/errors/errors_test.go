// Package errors tests for the error taxonomy.
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

// TestAppError_Error verifies message formatting.
func TestAppError_Error(t *testing.T) {
	err := New(ErrStorage, "transaction failed")
	want := "[STORAGE_ERROR] transaction failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestAppError_Error_wrapped verifies the cause is included.
func TestAppError_Error_wrapped(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrStorage, "save profile", cause)

	want := "[STORAGE_ERROR] save profile: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

// TestIs verifies code matching through wrap chains.
func TestIs(t *testing.T) {
	inner := New(ErrSyncTransport, "connection refused")
	outer := fmt.Errorf("drain entry: %w", inner)

	if !Is(outer, ErrSyncTransport) {
		t.Error("Is should match a wrapped AppError code")
	}
	if Is(outer, ErrStorage) {
		t.Error("Is matched the wrong code")
	}
	if Is(nil, ErrStorage) {
		t.Error("Is(nil) should be false")
	}
}

// TestCodeOf verifies code extraction.
func TestCodeOf(t *testing.T) {
	if code := CodeOf(New(ErrNoActiveProfile, "nope")); code != ErrNoActiveProfile {
		t.Errorf("CodeOf = %v, want NO_ACTIVE_PROFILE", code)
	}
	if code := CodeOf(stderrors.New("plain")); code != ErrInternal {
		t.Errorf("CodeOf(plain) = %v, want INTERNAL_ERROR", code)
	}
}
