package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Error codes
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeProviderAuth       = "PROVIDER_AUTH_ERROR"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Sync taxonomy
	ErrCodeNoAccount          = "NO_ACCOUNT"
	ErrCodeUpstreamTransient  = "UPSTREAM_TRANSIENT"
	ErrCodeMissingDependency  = "MISSING_DEPENDENCY"
	ErrCodeUniquenessConflict = "UNIQUENESS_CONFLICT"
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Common error constructors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message, http.StatusInternalServerError)
}

// ProviderAuthError is returned when AWS rejects the credentials used for an operation
func ProviderAuthError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeProviderAuth,
		fmt.Sprintf("AWS rejected the credentials used for %s", operation),
		http.StatusUnauthorized)
}

// RateLimited creates a rate limited error
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}

// ServiceUnavailable creates a service unavailable error
func ServiceUnavailable(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// NoAccount is returned when a sync is attempted for a user without AWS accounts.
// It aborts the whole sync attempt.
func NoAccount() *AppError {
	return New(ErrCodeNoAccount, "No AWS account is associated with this user", http.StatusConflict)
}

// UpstreamTransient wraps a failed provider call. The record or fetch step is
// skipped and the sync continues.
func UpstreamTransient(operation string, err error) *AppError {
	return Wrap(err, ErrCodeUpstreamTransient,
		fmt.Sprintf("AWS call %s failed", operation),
		http.StatusBadGateway)
}

// MissingDependency is returned when a cross-reference cannot be resolved locally
func MissingDependency(kind, id string) *AppError {
	return New(ErrCodeMissingDependency,
		fmt.Sprintf("%s %s is not known locally", kind, id),
		http.StatusUnprocessableEntity).WithDetails(map[string]string{"kind": kind, "id": id})
}

// UniquenessConflict is returned when an upsert violates a local constraint
func UniquenessConflict(kind, id string, err error) *AppError {
	return Wrap(err, ErrCodeUniquenessConflict,
		fmt.Sprintf("%s %s conflicts with an existing row", kind, id),
		http.StatusConflict)
}

// HasCode reports whether err is or wraps an AppError carrying code
func HasCode(err error, code string) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Internal
	}
	return false
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool { return HasCode(err, ErrCodeNotFound) }

// IsNoAccount reports whether err is a NoAccount error
func IsNoAccount(err error) bool { return HasCode(err, ErrCodeNoAccount) }

// IsProviderAuth reports whether err is a ProviderAuthError
func IsProviderAuth(err error) bool { return HasCode(err, ErrCodeProviderAuth) }

// IsUpstreamTransient reports whether err is an UpstreamTransient error
func IsUpstreamTransient(err error) bool { return HasCode(err, ErrCodeUpstreamTransient) }

// IsMissingDependency reports whether err is a MissingDependency error
func IsMissingDependency(err error) bool { return HasCode(err, ErrCodeMissingDependency) }

// IsUniquenessConflict reports whether err is a UniquenessConflict error
func IsUniquenessConflict(err error) bool { return HasCode(err, ErrCodeUniquenessConflict) }

// AsAppError converts any error into an AppError, wrapping unknown errors as internal
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}
