// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package stack

import "emperror.dev/errors"

// ErrorKind is the closed taxonomy of failures the core can produce
// (spec.md §7). It is a kind, not a type hierarchy: every failure is
// represented by the single Error type below, tagged with one Kind.
type ErrorKind int

const (
	// KindUnknown tags a failure outside the taxonomy below: FromBranch
	// uses it for an unrecognized InitializationPolicy, and KindOf returns
	// it for a nil error.
	KindUnknown ErrorKind = iota
	KindNotInitialized
	KindAlreadyInitialized
	KindProtected
	KindNonEmpty
	KindNameConflict
	KindParentMismatch
	KindMetadataNotFound
	KindMetadataMalformed
	KindRefLockContention
	KindObjectDbFailure
	KindEditorFailed
	KindNonUTF8Signature
	KindNonUTF8Argument
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotInitialized:
		return "NotInitialized"
	case KindAlreadyInitialized:
		return "AlreadyInitialized"
	case KindProtected:
		return "Protected"
	case KindNonEmpty:
		return "NonEmpty"
	case KindNameConflict:
		return "NameConflict"
	case KindParentMismatch:
		return "ParentMismatch"
	case KindMetadataNotFound:
		return "StackMetadataNotFound"
	case KindMetadataMalformed:
		return "StackMetadataMalformed"
	case KindRefLockContention:
		return "RefLockContention"
	case KindObjectDbFailure:
		return "ObjectDbFailure"
	case KindEditorFailed:
		return "EditorFailed"
	case KindNonUTF8Signature:
		return "NonUtf8Signature"
	case KindNonUTF8Argument:
		return "NonUtf8Argument"
	default:
		return "Unknown"
	}
}

// Error is the single error representation used throughout the core. It
// carries a Kind so callers can branch on failure category without string
// matching, following the same WrapIff-style formatted wrapping the closest
// pack example for this domain uses
// (other_examples/eb4d0f82_aviator-co-av__internal-meta-branchstate.go.go).
type Error struct {
	Kind ErrorKind
	Op   string // the operation that failed, e.g. "push", "rename"
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// newError builds a tagged Error wrapping cause with a formatted message.
func newError(kind ErrorKind, op string, cause error, format string, args ...any) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WrapIff(cause, format, args...)
	} else {
		wrapped = errors.Errorf(format, args...)
	}
	return &Error{Kind: kind, Op: op, err: wrapped}
}

// Errorf builds a new Error with no underlying cause.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return newError(kind, op, nil, format, args...)
}

// Wrap builds a new Error wrapping an existing cause.
func Wrap(kind ErrorKind, op string, cause error, format string, args ...any) *Error {
	return newError(kind, op, cause, format, args...)
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and KindObjectDbFailure otherwise — any unrecognized error
// reaching the CLI boundary is assumed to be an opaque object-database
// failure rather than swallowed.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return KindUnknown
	}
	return KindObjectDbFailure
}
