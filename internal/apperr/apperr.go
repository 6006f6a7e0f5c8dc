// Package apperr implements the error taxonomy shared across the module. It is a small,
// dependency-free package (shared by instance, backend, and router) rather
// than a third-party errors library, because the taxonomy is a closed set
// of eight request-facing kinds that map onto fixed HTTP statuses (several
// kinds share 500) — nothing in the retrieval pack models exactly this
// classification, and inspection still goes through the standard
// library's errors.As against *Error, whose Kind field carries the kind.
package apperr

import "net/http"

// Kind is one of the fixed set of error kinds below. It is not a Go `error`
// type itself; Error pairs a Kind with a message and satisfies `error`.
type Kind string

const (
	KindInputValidation  Kind = "input_validation"
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindNotSupported     Kind = "not_supported"
	KindBackendTransient Kind = "backend_transient"
	KindCancelled        Kind = "cancelled"
	KindTimeoutDriven    Kind = "timeout_driven"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error { return &Error{Kind: kind, Message: message} }

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// HTTPStatus maps a Kind to the status code the SSE Endpoint / REST
// handlers must surface. Only
// the Message Router and the SSE endpoint raise to HTTP.
func HTTPStatus(err error) int {
	e, ok := err.(*Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInputValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindNotSupported, KindBackendTransient:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
