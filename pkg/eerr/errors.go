// Package eerr defines the stable, extensible error taxonomy shared by
// every Eidetica package (spec §7). Callers branch on Kind via Is/As
// rather than matching error strings.
package eerr

import (
	"errors"
	"fmt"
)

// Kind is a stable error category. New leaf errors should reuse one of
// these rather than inventing ad hoc sentinel errors per package.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindAlreadyExists Kind = "already_exists"
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindOperation     Kind = "operation"
	KindCorruption    Kind = "corruption"
	KindUnsupported   Kind = "unsupported"
	KindTransport     Kind = "transport"
	KindSerialization Kind = "serialization"
)

// Error is the concrete error type returned by Eidetica packages. It
// wraps an optional underlying cause and carries a stable Kind plus a
// free-form Tag identifying the specific condition (e.g. "entry",
// "database", "auth_key") for logging and tests.
type Error struct {
	Kind Kind
	Tag  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, eerr.New(KindNotFound, "", "")) match any
// KindNotFound error regardless of Msg/Tag/Err, by comparing Kind alone
// when the target carries no Tag.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Tag == "" {
		return true
	}
	return t.Tag == e.Tag
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, tag, msg string) *Error {
	return &Error{Kind: kind, Tag: tag, Msg: msg}
}

// Wrap constructs an Error wrapping cause.
func Wrap(kind Kind, tag, msg string, cause error) *Error {
	return &Error{Kind: kind, Tag: tag, Msg: msg, Err: cause}
}

// Is reports whether err (or any error in its chain) is an *Error of
// the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Tagged reports whether err (or any error in its chain) is an *Error
// with the given kind and tag.
func Tagged(err error, kind Kind, tag string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind && e.Tag == tag
	}
	return false
}

// Common sentinel-style constructors used throughout the codebase.

func NotFound(tag, msg string) *Error      { return New(KindNotFound, tag, msg) }
func AlreadyExists(tag, msg string) *Error { return New(KindAlreadyExists, tag, msg) }
func Validation(tag, msg string) *Error    { return New(KindValidation, tag, msg) }
func AuthErr(tag, msg string) *Error       { return New(KindAuth, tag, msg) }
func Operation(tag, msg string) *Error     { return New(KindOperation, tag, msg) }
func Corruption(tag, msg string) *Error    { return New(KindCorruption, tag, msg) }
func Unsupported(tag, msg string) *Error   { return New(KindUnsupported, tag, msg) }
func Transport(tag, msg string) *Error     { return New(KindTransport, tag, msg) }
func Serialization(tag, msg string, cause error) *Error {
	return Wrap(KindSerialization, tag, msg, cause)
}
