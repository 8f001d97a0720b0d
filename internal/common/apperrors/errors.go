// Package apperrors provides the standardized error taxonomy for the
// emergency lifecycle engine.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeStateConflict ErrorCode = "STATE_CONFLICT"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAuthorization ErrorCode = "AUTHORIZATION_ERROR"

	// Never surfaced to API callers; contained in the dispatcher's
	// retry/fallback policy.
	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	// Retried with backoff at the infrastructure boundary.
	ErrCodeTransientStore ErrorCode = "TRANSIENT_STORE_ERROR"
)

// Error represents a structured application error.
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the error code to an HTTP response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeStateConflict:
		return http.StatusConflict
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// --- Constructors ---

// NewValidationError creates a non-retryable malformed-input error.
func NewValidationError(details string) *Error {
	return &Error{
		Code:      ErrCodeValidation,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateConflictError creates a non-retryable error carrying the actual
// current status so clients can resynchronize.
func NewStateConflictError(operation, currentStatus string) *Error {
	return &Error{
		Code:      ErrCodeStateConflict,
		Message:   fmt.Sprintf("Operation %q invalid for current status", operation),
		Details:   fmt.Sprintf("currentStatus: %s", currentStatus),
		Retryable: false,
		Metadata:  map[string]interface{}{"currentStatus": currentStatus},
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable unknown-entity error.
func NewNotFoundError(entity, id string) *Error {
	return &Error{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthorizationError creates a non-retryable caller-not-authorized error.
func NewAuthorizationError(details string) *Error {
	return &Error{
		Code:      ErrCodeAuthorization,
		Message:   "Caller is not authorized for this emergency",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryError creates a retryable notification channel error.
func NewDeliveryError(channel string, err error) *Error {
	return &Error{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransientStoreError creates a retryable store/bus availability error.
func NewTransientStoreError(err error) *Error {
	return &Error{
		Code:      ErrCodeTransientStore,
		Message:   "Store temporarily unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// --- Utility Functions ---

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
