// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorCodeValues verifies all error codes have non-empty, unique values.
func TestErrorCodeValues(t *testing.T) {
	codes := []ErrorCode{
		ErrInternal, ErrInvalid, ErrNotFound, ErrValidation,
		ErrDatabase, ErrMigration, ErrQueue,
		ErrSyncInProgress, ErrSyncFailed, ErrSyncTimeout, ErrSyncInvalidPayload,
		ErrRemoteUnavailable, ErrRemoteRejected, ErrRemoteUnauthorized,
		ErrConfigInvalid,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if code == "" {
			t.Error("found empty error code")
		}
		if seen[code] {
			t.Errorf("duplicate error code %q", code)
		}
		seen[code] = true
	}
}

// TestAppError_Error verifies message formatting with and without a cause.
func TestAppError_Error(t *testing.T) {
	plain := New(ErrNotFound, "workout missing")
	if got := plain.Error(); got != "[NOT_FOUND] workout missing" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(ErrDatabase, "insert failed", errors.New("disk full"))
	if got := wrapped.Error(); got != "[DATABASE_ERROR] insert failed: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

// TestNewf verifies formatted messages.
func TestNewf(t *testing.T) {
	err := Newf(ErrValidation, "unknown table %q", "steps")
	if !strings.Contains(err.Error(), `unknown table "steps"`) {
		t.Errorf("Newf() message = %q", err.Error())
	}
}

// TestUnwrap verifies the cause is reachable through errors.Is.
func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrRemoteUnavailable, "dispatch failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the wrapped cause")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

// TestIs verifies code matching across wrapping layers.
func TestIs(t *testing.T) {
	inner := New(ErrRemoteRejected, "422 from server")
	outer := Wrap(ErrSyncFailed, "nutrition group aborted", inner)
	std := fmt.Errorf("sync pass: %w", outer)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", inner, ErrRemoteRejected, true},
		{"outer code", outer, ErrSyncFailed, true},
		{"inner code through outer", outer, ErrRemoteRejected, true},
		{"through fmt wrap", std, ErrRemoteRejected, true},
		{"absent code", outer, ErrConfigInvalid, false},
		{"plain error", errors.New("x"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCodeOf verifies the outermost code is reported.
func TestCodeOf(t *testing.T) {
	if got := CodeOf(Wrap(ErrSyncTimeout, "slow", New(ErrRemoteUnavailable, "x"))); got != ErrSyncTimeout {
		t.Errorf("CodeOf() = %v, want %v", got, ErrSyncTimeout)
	}
	if got := CodeOf(errors.New("plain")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %v, want %v", got, ErrInternal)
	}
}
