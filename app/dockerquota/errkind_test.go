// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"errors"
	"testing"
)

// TestErrorKindString validates the String rendering of every kind,
// including the default branch for an out-of-range value.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{BackendUnavailable, "BackendUnavailable"},
		{BadData, "BadData"},
		{StoreConflict, "StoreConflict"},
		{UserResolutionFailure, "UserResolutionFailure"},
		{EnforcementActionFailed, "EnforcementActionFailed"},
		{ErrorKind(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

// TestErrorMessage validates Error() formatting with and without a wrapped
// underlying error.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestErrorMessage(t *testing.T) {
	wrapped := newError(BadData, errors.New("unparseable timestamp"))
	if got, want := wrapped.Error(), "BadData: unparseable timestamp"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := newError(StoreConflict, nil)
	if got, want := bare.Error(), "StoreConflict"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// TestErrorUnwrap validates that errors.Is/errors.As can reach the wrapped
// error through Unwrap.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestErrorUnwrap(t *testing.T) {
	sentinel := errors.New("daemon unreachable")
	wrapped := newError(BackendUnavailable, sentinel)

	if !errors.Is(wrapped, sentinel) {
		t.Errorf("errors.Is(wrapped, sentinel) = false, want true")
	}

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatalf("errors.As failed to extract *Error")
	}
	if target.Kind != BackendUnavailable {
		t.Errorf("extracted Kind = %v, want BackendUnavailable", target.Kind)
	}
}
