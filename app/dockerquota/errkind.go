// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package dockerquota implements the Docker attribution & enforcement
// engine: a Docker inspector, an audit-log reader, a cache layer, an
// attribution synchroniser, and a quota aggregator/enforcer.
package dockerquota

import "fmt"

// ErrorKind classifies engine errors into one of the five recoverable
// categories every phase must catch at its own boundary.
type ErrorKind int

const (
	// BackendUnavailable means the Docker daemon, audit tool, cache, or
	// coordinator could not be reached.
	BackendUnavailable ErrorKind = iota
	// BadData means a malformed audit line, unparseable timestamp, or
	// unknown image ref was encountered.
	BadData
	// StoreConflict means a unique-key violation occurred where
	// first-writer-wins applies.
	StoreConflict
	// UserResolutionFailure means a uid could not be resolved from a name
	// or vice versa.
	UserResolutionFailure
	// EnforcementActionFailed means a stop/remove call returned an error.
	EnforcementActionFailed
)

// String renders the error kind name for logging.
//
// Returns:
//   - string: human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case BackendUnavailable:
		return "BackendUnavailable"
	case BadData:
		return "BadData"
	case StoreConflict:
		return "StoreConflict"
	case UserResolutionFailure:
		return "UserResolutionFailure"
	case EnforcementActionFailed:
		return "EnforcementActionFailed"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying error with a classification, so callers at a
// task boundary can log, count, and continue without ever propagating a
// panic or an unclassified failure to the scheduler.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
//
// Returns:
//   - string: formatted "<kind>: <message>" string.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
//
// Returns:
//   - error: the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError constructs a kind-tagged error.
//
// Parameters:
//   - kind: error classification.
//   - err: underlying error, may be nil.
//
// Returns:
//   - *Error: wrapped error.
func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
