// Package apperr provides standardized domain error types for the application.
// Domain services and channel adapters return these typed errors; the HTTP
// layer maps them to status codes and the task queue keys its retry policy
// on their kind.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data. Never retried.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., a lead
	// that already carries an unresolved booking reference).
	KindConflict
	// KindStateConflict indicates a benign lost race on a conditional state
	// update, or a duplicate/out-of-order event replay. Callers treat it as
	// a no-op, never as a failure.
	KindStateConflict
	// KindTransientProvider indicates a provider failure expected to succeed
	// on retry: timeout, 5xx, rate limit, network unreachable.
	KindTransientProvider
	// KindPermanentProvider indicates a provider failure that will not
	// succeed on retry: invalid recipient, auth failure, payload rejected.
	KindPermanentProvider
	// KindStoreUnavailable indicates the lead store could not be reached.
	// Retried at the store-access layer with its own small bounded retry.
	KindStoreUnavailable
	// KindAuthentication indicates a webhook signature mismatch or missing
	// credentials on an inbound event. Rejected and logged as a security event.
	KindAuthentication
	// KindUnauthorized indicates operator authentication is required or failed.
	KindUnauthorized
	// KindForbidden indicates the action is not allowed for the caller.
	KindForbidden
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Error is a domain error with a typed Kind for HTTP and retry mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest, KindPermanentProvider:
		return http.StatusBadRequest
	case KindConflict, KindStateConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindAuthentication, KindUnauthorized:
		return http.StatusUnauthorized
	case KindTransientProvider, KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error (e.g., duplicate resource).
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// StateConflict creates a benign state-conflict error.
func StateConflict(message string) *Error {
	return New(KindStateConflict, message)
}

// TransientProvider creates a retryable provider error.
func TransientProvider(message string, err error) *Error {
	return Wrap(KindTransientProvider, message, err)
}

// PermanentProvider creates a non-retryable provider error.
func PermanentProvider(message string, err error) *Error {
	return Wrap(KindPermanentProvider, message, err)
}

// StoreUnavailable creates a store-access error.
func StoreUnavailable(message string, err error) *Error {
	return Wrap(KindStoreUnavailable, message, err)
}

// Authentication creates an inbound-event authentication error.
func Authentication(message string) *Error {
	return New(KindAuthentication, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the error is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// IsRetryable reports whether the task queue should retry the operation.
// Only transient provider failures and store outages qualify; validation
// and permanent provider errors fail immediately, and state conflicts are
// no-ops rather than failures.
func IsRetryable(err error) bool {
	switch GetKind(err) {
	case KindTransientProvider, KindStoreUnavailable:
		return true
	default:
		return false
	}
}

// IsBenign reports whether the error represents a duplicate or out-of-order
// replay that callers should swallow as a no-op.
func IsBenign(err error) bool {
	return Is(err, KindStateConflict)
}
