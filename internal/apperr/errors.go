// Package apperr defines the error taxonomy shared by the conversion
// pipeline and its HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindTooLarge      Kind = "too_large"
	KindEngine        Kind = "engine"
	KindEngineTimeout Kind = "engine_timeout"
	KindStorage       Kind = "storage"
	KindCleanup       Kind = "cleanup"
	KindInternal      Kind = "internal"
)

// Error carries a machine-checkable kind plus a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// Validation reports a request that breaks the upload contract.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

// TooLarge reports a request body over limit bytes.
func TooLarge(limit int64) *Error {
	return New(KindTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit), nil)
}

// Engine reports a failed conversion. detail is the engine's own message.
func Engine(detail string, err error) *Error {
	return New(KindEngine, detail, err)
}

// EngineTimeout reports an engine that ran past its deadline.
func EngineTimeout(detail string, err error) *Error {
	return New(KindEngineTimeout, detail, err)
}

// Storage reports a workspace read or write failure.
func Storage(detail string, err error) *Error {
	return New(KindStorage, detail, err)
}

// Cleanup reports a temporary path that could not be removed.
func Cleanup(path string, err error) *Error {
	return New(KindCleanup, "remove "+path, err)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail returns the caller-facing message for err.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return "internal error"
}

// HTTPStatus maps err to the status code written to the caller.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
