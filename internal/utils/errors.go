package utils

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Remote store and transport
	ErrRemoteUnavailable = "REMOTE_UNAVAILABLE"
	ErrRemote            = "REMOTE_ERROR"

	// Resource errors
	ErrNotFound = "NOT_FOUND"
	ErrConflict = "CONFLICT"

	// Rejected locally, before any remote call
	ErrValidation = "VALIDATION_FAILED"

	// Authentication/Authorization errors
	ErrNotAuthenticated    = "NOT_AUTHENTICATED"
	ErrForbidden           = "FORBIDDEN" // signed in, but not the owner
	ErrInvalidToken        = "INVALID_TOKEN"
	ErrInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrConfirmationPending = "CONFIRMATION_PENDING"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewNotAuthenticatedError(action string) *AppError {
	return &AppError{
		Code:    ErrNotAuthenticated,
		Message: "You need to be logged in to " + action,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

func NewActorTimeoutError(actorName string, err error) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
		Origin:  err,
	}
}

// KindOf returns the code of the first AppError in err's chain, or "" if
// there is none.
func KindOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	return err != nil && KindOf(err) == code
}

// Helper method to check if an error is related to authentication
func IsAuthError(err error) bool {
	switch KindOf(err) {
	case ErrNotAuthenticated, ErrForbidden, ErrInvalidToken, ErrInvalidCredentials:
		return true
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation:
		return http.StatusBadRequest
	case ErrNotAuthenticated, ErrInvalidToken, ErrInvalidCredentials:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrConfirmationPending:
		return http.StatusAccepted
	case ErrRemoteUnavailable:
		return http.StatusServiceUnavailable
	case ErrRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
