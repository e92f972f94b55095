// Package apperr defines the failure kinds surfaced by the core to the API
// surface. Every error that crosses a component boundary is either an *Error
// or is treated as a storage failure.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable category of a failure.
type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	InvalidToken       Kind = "invalid_token"
	Forbidden          Kind = "forbidden"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	EmailTaken         Kind = "email_taken"
	InvalidCredentials Kind = "invalid_credentials"
	UnsupportedFormat  Kind = "unsupported_format"
	PayloadTooLarge    Kind = "payload_too_large"
	Invalid            Kind = "invalid"
	StorageFailure     Kind = "storage_failure"
)

// Error carries a Kind and a human-readable reason. Err, when set, is the
// underlying cause and is never shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind that keeps err as its cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Storage wraps a persistence-layer fault.
func Storage(err error) *Error {
	return &Error{Kind: StorageFailure, Message: "storage failure", Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are storage
// failures; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageFailure
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-facing reason for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != StorageFailure {
		return e.Message
	}
	return "internal server error"
}
