package apperror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindForbidden         Kind = "Forbidden"
	KindUnauthorized      Kind = "Unauthorized"
	KindSlotUnavailable   Kind = "SlotUnavailable"
	KindSlotTaken         Kind = "SlotTaken"
	KindInvalidTransition Kind = "InvalidTransition"
	KindValidation        Kind = "ValidationError"
	KindUnexpected        Kind = "Unexpected"
)

// Error is a failure the HTTP layer can answer with a stable status and message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) holds for
// every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound          = New(KindNotFound, "not found")
	ErrForbidden         = New(KindForbidden, "forbidden")
	ErrUnauthorized      = New(KindUnauthorized, "unauthorized")
	ErrSlotUnavailable   = New(KindSlotUnavailable, "time slot is not available")
	ErrSlotTaken         = New(KindSlotTaken, "time slot is already booked")
	ErrInvalidTransition = New(KindInvalidTransition, "invalid status transition")
	ErrValidation        = New(KindValidation, "validation error")
	ErrUnexpected        = New(KindUnexpected, "unexpected error")
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func InvalidTransition(message string) *Error {
	return New(KindInvalidTransition, message)
}

// Wrap turns an infrastructure failure into an Unexpected error. Errors that already
// carry a kind pass through untouched.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindUnexpected, Message: message, cause: err}
}

// KindOf reports the kind of err, treating unknown errors as Unexpected.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// Message returns the caller-facing message. Unexpected failures never expose detail.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindUnexpected {
		return appErr.Message
	}
	return "internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindSlotUnavailable, KindSlotTaken, KindInvalidTransition, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
