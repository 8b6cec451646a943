package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Redirect string    `json:"redirect,omitempty"`
	Err      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrSlotUnavailable
	ErrInvalidTransition
	ErrDuplicatePendingRequest
	ErrConfiguration
	ErrTimeout
	ErrConflict
	ErrRateLimited
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:                "not_found",
	ErrBadRequest:              "validation_error",
	ErrUnauthorized:            "unauthorized",
	ErrForbidden:               "authorization_denied",
	ErrInternal:                "internal",
	ErrSlotUnavailable:         "slot_unavailable",
	ErrInvalidTransition:       "invalid_transition",
	ErrDuplicatePendingRequest: "duplicate_pending_request",
	ErrConfiguration:           "configuration_error",
	ErrTimeout:                 "timeout",
	ErrConflict:                "conflict",
	ErrRateLimited:             "rate_limited",
}

// String returns the stable label used in responses and metrics.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

// Validation is an alias of BadRequest for malformed input.
func Validation(message string) *AppError {
	return NewBadRequest(message, nil)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// Forbidden is an AuthorizationDenied carrying the path the caller should be sent to.
func Forbidden(message, redirect string) *AppError {
	return &AppError{
		Code:     ErrForbidden,
		Message:  message,
		Redirect: redirect,
	}
}

func SlotUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrSlotUnavailable,
		Message: "the selected slot is no longer available",
		Err:     err,
	}
}

func InvalidTransition(from, action string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("action %q is not allowed from status %q", action, from),
	}
}

func DuplicatePendingRequest() *AppError {
	return &AppError{
		Code:    ErrDuplicatePendingRequest,
		Message: "a pending request already exists for this user",
	}
}

func Configuration(message string) *AppError {
	return &AppError{
		Code:    ErrConfiguration,
		Message: message,
	}
}

func Timeout(err error) *AppError {
	return &AppError{
		Code:    ErrTimeout,
		Message: "upstream call timed out",
		Err:     err,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Code:    ErrRateLimited,
		Message: "rate limit exceeded",
	}
}

// CodeOf returns the code of the first AppError in err's chain.
// Deadline errors count as timeouts; anything else unknown is internal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As extracts the AppError from err, wrapping unknown errors as internal.
func As(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	return NewInternal(err)
}

// HTTPStatus maps an error code to its response status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrSlotUnavailable, ErrInvalidTransition, ErrDuplicatePendingRequest, ErrConflict:
		return http.StatusConflict
	case ErrConfiguration:
		return http.StatusUnprocessableEntity
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
