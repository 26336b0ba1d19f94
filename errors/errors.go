// Copyright 2025 cloudeng llc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package errors provides the closed set of error kinds that every condow
// operation returns, along with helpers for wrapping and classifying them.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a condow error. The set is closed: every
// error returned from a Client or from the core download machinery carries
// one of these kinds.
type Kind int

const (
	// Other is returned when an adapter cannot classify the failure any
	// more precisely. Whether it is safe to retry is adapter-specific;
	// see IsTransient.
	Other Kind = iota
	// InvalidRange indicates the requested byte range could not be
	// resolved against the object (e.g. it starts beyond the object's
	// size, or From > To).
	InvalidRange
	// NotFound indicates the requested object does not exist.
	NotFound
	// AccessDenied indicates the caller is not authorized to read the
	// requested object.
	AccessDenied
	// Remote indicates the remote store reported a failure unrelated to
	// the validity of the request (throttling, 5xx, connection reset).
	Remote
	// Io indicates a local I/O failure, such as a broken pipe or a
	// cancelled read on the consumer side of a stream.
	Io
)

func (k Kind) String() string {
	switch k {
	case InvalidRange:
		return "invalid_range"
	case NotFound:
		return "not_found"
	case AccessDenied:
		return "access_denied"
	case Remote:
		return "remote"
	case Io:
		return "io"
	default:
		return "other"
	}
}

// Transient is implemented by adapter errors that know whether they are
// safe to retry when classified as Other. condow never assumes an Other
// error is transient; it only retries when the underlying error opts in.
type Transient interface {
	Transient() bool
}

// Error is the concrete error type returned by condow's public operations
// and by Client implementations. It pairs a Kind with a human-readable
// message and, optionally, the underlying cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("condow: %s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("condow: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind. Messages and
// causes are deliberately not compared, mirroring the tagged-type
// comparison used throughout the download machinery this package is
// modeled on.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping cause. If cause is
// already a *Error of the same kind it is returned unchanged.
func Wrap(kind Kind, msg string, cause error) *Error {
	if ce, ok := cause.(*Error); ok && ce.Kind == kind {
		return ce
	}
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// WrapAs classifies err as fallback unless it already carries a Kind, in
// which case that Kind and message are preserved unchanged: an adapter
// that already classified its own failure (e.g. Other, NotFound) must
// not have that classification overwritten by a layer merely adding
// context about where the call happened.
func WrapAs(fallback Kind, msg string, err error) *Error {
	var e *Error
	if As(err, &e) {
		return e
	}
	return &Error{Kind: fallback, Msg: msg, Cause: err}
}

// KindOf extracts the Kind of err, defaulting to Other if err is not (or
// does not wrap) a *Error.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Other
}

// IsTransient classifies err per the retry table: InvalidRange,
// NotFound and AccessDenied are never retried; Remote and Io are always
// retried; Other is retried only when its Cause implements Transient and
// reports true.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case InvalidRange, NotFound, AccessDenied:
		return false
	case Remote, Io:
		return true
	default:
		if t, ok := e.Cause.(Transient); ok {
			return t.Transient()
		}
		return false
	}
}

// As is a thin re-export of errors.As so that callers working exclusively
// within this package do not need a second import of the standard errors
// package alongside it.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a thin re-export of errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
