// Package errors defines the AppError envelope returned by the roadmap API.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes carried in API responses
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeForbidden          = "FORBIDDEN"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
)

var statusByCode = map[string]int{
	CodeValidationError:    http.StatusBadRequest,
	CodeBadRequest:         http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeInvalidTransition:  http.StatusConflict,
	CodeForbidden:          http.StatusForbidden,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeInternalError:      http.StatusInternalServerError,
}

// AppError is an error with a stable code and the HTTP status it maps to
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails replaces the details
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail sets one detail
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

// Wrap attaches the cause
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates an AppError with an explicit status
func NewAppError(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func newCoded(code, message string) *AppError {
	return NewAppError(code, message, statusByCode[code])
}

func ErrValidation(message string) *AppError {
	return newCoded(CodeValidationError, message)
}

// ErrValidationWithFields carries one message per offending field
func ErrValidationWithFields(message string, fields map[string]string) *AppError {
	return ErrValidation(message).WithDetails(fields)
}

func ErrBadRequest(message string) *AppError {
	return newCoded(CodeBadRequest, message)
}

func ErrNotFound(resource string) *AppError {
	return newCoded(CodeNotFound, resource+" not found")
}

func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

func ErrConflict(message string) *AppError {
	return newCoded(CodeConflict, message)
}

// ErrInvalidTransition reports a stage action that is illegal from the
// stage's current status. Nothing was mutated.
func ErrInvalidTransition(message string) *AppError {
	return newCoded(CodeInvalidTransition, message)
}

func ErrForbidden(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return newCoded(CodeForbidden, message)
}

func ErrServiceUnavailable(dependency string) *AppError {
	return newCoded(CodeServiceUnavailable, dependency+" is temporarily unavailable")
}

func ErrTimeout(operation string) *AppError {
	return newCoded(CodeTimeout, operation+" timed out")
}

func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return newCoded(CodeInternalError, message)
}

// AsAppError finds an AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// FromError returns the AppError in err's chain or wraps err as internal
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}

// messageKinds classifies errors that reached the edge unmapped
var messageKinds = []struct {
	needles []string
	build   func(msg string) *AppError
}{
	{[]string{"invalid transition"}, ErrInvalidTransition},
	{[]string{"not found"}, func(string) *AppError { return ErrNotFound("resource") }},
	{[]string{"already exists", "version conflict"}, ErrConflict},
	{[]string{"invalid", "required"}, ErrValidation},
	{[]string{"forbidden", "not permitted"}, ErrForbidden},
}

// MapDomainError converts an error that skipped explicit mapping. Context
// timeouts map to TIMEOUT; otherwise the message decides.
func MapDomainError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout("operation").Wrap(err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, kind := range messageKinds {
		for _, needle := range kind.needles {
			if strings.Contains(lower, needle) {
				return kind.build(msg).Wrap(err)
			}
		}
	}
	return ErrInternal("").Wrap(err)
}
