// Package errors provides structured errors that map onto HTTP statuses and
// the JSON response envelope.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// ErrorType represents the category of error for metrics and response formatting.
type ErrorType string

const (
	TypeValidation       ErrorType = "validation"
	TypeUnauthorized     ErrorType = "unauthorized"
	TypeForbidden        ErrorType = "forbidden"
	TypeNotFound         ErrorType = "not_found"
	TypeMethodNotAllowed ErrorType = "method_not_allowed"
	TypeConflict         ErrorType = "conflict"
	TypeUnavailable      ErrorType = "unavailable"
	TypeInternal         ErrorType = "internal"
	TypeExternal         ErrorType = "external"
)

// Default client-facing messages.
const (
	MessageUnauthorized = "login session expired, please log in again"
	MessageForbidden    = "permission denied, contact an administrator"
	MessageNotFound     = "resource not found"
	MessageInternal     = "unknown error, please refresh and retry"
)

// Error is a structured error. Data ends up in the "data" member of the
// response envelope; Cause is logged but never sent to clients.
type Error struct {
	Type    ErrorType
	Code    int
	Message string
	Cause   error
	Data    map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case TypeConflict:
		return http.StatusConflict
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	e := &Error{Type: t, Message: message, Cause: cause, Data: make(map[string]any)}
	e.Code = e.HTTPStatus()
	return e
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

func UnauthorizedError(message string) *Error {
	if message == "" {
		message = MessageUnauthorized
	}
	return newError(TypeUnauthorized, message, nil)
}

func ForbiddenError(message string) *Error {
	if message == "" {
		message = MessageForbidden
	}
	return newError(TypeForbidden, message, nil)
}

func NotFoundError(message string) *Error {
	if message == "" {
		message = MessageNotFound
	}
	return newError(TypeNotFound, message, nil)
}

func MethodNotAllowedError(message string) *Error {
	return newError(TypeMethodNotAllowed, message, nil)
}

func ConflictError(message string) *Error {
	return newError(TypeConflict, message, nil)
}

func UnavailableError(message string) *Error {
	return newError(TypeUnavailable, message, nil)
}

func InternalError(message string, cause error) *Error {
	if message == "" {
		message = MessageInternal
	}
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithCode overrides the application code sent in the envelope (chainable).
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// WithData adds a field to the envelope's data object (chainable).
func (e *Error) WithData(key string, value any) *Error {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// WithDetail replaces the envelope data with v. Objects are used as they are,
// empty values become {} and anything else is wrapped as {"detail": v}.
func (e *Error) WithDetail(v any) *Error {
	e.Data = objectData(v)
	return e
}

func objectData(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		if m == nil {
			return map[string]any{}
		}
		return m
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		if rv.Len() == 0 {
			return map[string]any{}
		}
	default:
		if rv.IsZero() {
			return map[string]any{}
		}
	}
	return map[string]any{"detail": v}
}

// Response is the error envelope sent to clients.
type Response struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (e *Error) ToResponse() Response {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	return Response{Code: e.Code, Message: e.Message, Data: data}
}

// AsStructuredError converts any error into a structured Error.
// Unknown errors become internal errors carrying the original as cause.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("", err)
}

// FromStatus builds a structured error for a bare HTTP status, as produced by
// the router for unknown routes or methods.
func FromStatus(status int, message string) *Error {
	switch status {
	case http.StatusBadRequest:
		return ValidationError(message)
	case http.StatusUnauthorized:
		return UnauthorizedError(message)
	case http.StatusForbidden:
		return ForbiddenError(message)
	case http.StatusNotFound:
		return NotFoundError(message)
	case http.StatusMethodNotAllowed:
		return MethodNotAllowedError(message)
	case http.StatusConflict:
		return ConflictError(message)
	case http.StatusServiceUnavailable:
		return UnavailableError(message)
	case http.StatusBadGateway:
		return ExternalError(message, nil)
	default:
		return InternalError(message, nil).WithCode(status)
	}
}
