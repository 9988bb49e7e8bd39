package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 错误类别，决定 HTTP 状态码
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindForbidden    ErrorKind = "forbidden"
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindUnauthorized ErrorKind = "unauthorized"
	KindInternal     ErrorKind = "internal"
)

// Common error types for reuse with errors.Is.
var (
	ErrNotFound     = NewError(KindNotFound, "Not found")
	ErrForbidden    = NewError(KindForbidden, "Not authorized")
	ErrValidation   = NewError(KindValidation, "Invalid request")
	ErrConflict     = NewError(KindConflict, "Conflict")
	ErrUnauthorized = NewError(KindUnauthorized, "Authentication required")
	ErrInternal     = NewError(KindInternal, "Internal server error")
)

// AppError is a structured error carried from services up to the handlers.
type AppError struct {
	Kind    ErrorKind `json:"-"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	cause   error
}

func NewError(kind ErrorKind, message string, details ...string) *AppError {
	e := &AppError{
		Kind:    kind,
		Code:    statusFor(kind),
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches on kind, so errors.Is(err, ErrNotFound) holds for every not-found error.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// WithCause attaches the underlying error. The cause is never rendered to clients.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.cause = err
	return &cp
}

func NotFound(message string) *AppError   { return NewError(KindNotFound, message) }
func Forbidden(message string) *AppError  { return NewError(KindForbidden, message) }
func Conflict(message string) *AppError   { return NewError(KindConflict, message) }
func Validation(message string) *AppError { return NewError(KindValidation, message) }

func Unauthorized(message string) *AppError { return NewError(KindUnauthorized, message) }
func Internal(message string) *AppError     { return NewError(KindInternal, message) }

func Validationf(format string, args ...interface{}) *AppError {
	return NewError(KindValidation, fmt.Sprintf(format, args...))
}

// WrapError wraps an existing error as an internal error with a message.
func WrapError(err error, message string) *AppError {
	return NewError(KindInternal, message).WithCause(err)
}

// AsAppError unwraps err into an *AppError; unknown errors become internal.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

func statusFor(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
