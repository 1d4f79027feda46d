// Package apperr holds the error vocabulary shared by the store, the services and
// the HTTP handlers. Storage failures detected at commit time are translated into
// the same kinds as validation failures detected up front.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindBadRequest        Kind = "bad_request"
	KindMalformedDocument Kind = "malformed_document"
	KindConflict          Kind = "conflict"
	KindNotFound          Kind = "not_found"
	KindDateRangeInvalid  Kind = "date_range_invalid"
	KindIntegrityFault    Kind = "integrity_fault"
)

// Error carries a Kind, a client-facing message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return e.Message + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func BadRequest(format string, args ...any) *Error {
	return newf(KindBadRequest, nil, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, nil, format, args...)
}

func Conflict(err error, format string, args ...any) *Error {
	return newf(KindConflict, err, format, args...)
}

func DateRangeInvalid(err error) *Error {
	return newf(KindDateRangeInvalid, err, "start_date must be before or equal end_date.")
}

func Malformed(err error, format string, args ...any) *Error {
	return newf(KindMalformedDocument, err, format, args...)
}

func IntegrityFault(format string, args ...any) *Error {
	return newf(KindIntegrityFault, nil, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err's chain carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message of err, or fallback when err carries none.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
