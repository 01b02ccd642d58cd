// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package errors provides the kind-tagged error type used across hostblock.
//
// Per-packet kinds (KindUnsupported, KindTruncated) are resolved into a
// verdict inside the pipeline. Process-level kinds (KindUsage, KindSetup,
// KindFatal) travel up to the CLI and pick the exit status.
package errors

import (
	"errors"
	"fmt"
)

// Kind defines the category of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindInternal
	KindUsage
	KindValidation
	KindSetup
	KindUnsupported
	KindTruncated
	KindLoss
	KindFatal
	KindInvalidState
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindUsage:
		return "usage"
	case KindValidation:
		return "validation"
	case KindSetup:
		return "setup"
	case KindUnsupported:
		return "unsupported"
	case KindTruncated:
		return "truncated"
	case KindLoss:
		return "loss"
	case KindFatal:
		return "fatal"
	case KindInvalidState:
		return "invalid_state"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a structured hostblock error.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches another *Error of the same kind and message, so package-level
// sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{
		Kind:    kind,
		Message: msg,
	}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    msg,
		Underlying: err,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Underlying: err,
	}
}

// Attr attaches an attribute to an error. Errors that are not an *Error are
// wrapped as KindInternal first.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{
			Kind:       KindInternal,
			Message:    err.Error(),
			Underlying: err,
		}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// Kinded is implemented by error types outside this package that carry a
// Kind.
type Kinded interface {
	Kind() Kind
}

func kindOf(err error) (Kind, bool) {
	switch e := err.(type) {
	case *Error:
		return e.Kind, true
	case Kinded:
		return e.Kind(), true
	}
	return KindUnknown, false
}

// GetKind returns the Kind of the outermost kinded error in the chain, or
// KindUnknown.
func GetKind(err error) Kind {
	for ; err != nil; err = errors.Unwrap(err) {
		if k, ok := kindOf(err); ok {
			return k
		}
	}
	return KindUnknown
}

// HasKind reports whether any kinded error in err's chain has the given kind.
func HasKind(err error, kind Kind) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if k, ok := kindOf(err); ok && k == kind {
			return true
		}
	}
	return false
}

// GetAttributes returns all attributes in the chain. Outer values win.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error

	tempErr := err
	for tempErr != nil {
		if !errors.As(tempErr, &e) {
			break
		}
		for k, v := range e.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
		tempErr = e.Underlying
	}

	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
