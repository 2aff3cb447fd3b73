// Package domain defines the core domain models for finance-cli.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Two DomainErrors match under errors.Is when their codes are equal.
type DomainError struct {
	Code    string // Error code (e.g., "FC-AUTH-4011")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrNotLoggedIn indicates there is no current user or no stored credential.
	ErrNotLoggedIn = NewDomainError("FC-AUTH-4010", "not logged in")

	// ErrTokenExpired indicates the cached access token expired and refresh was not allowed.
	ErrTokenExpired = NewDomainError("FC-AUTH-4011", "access token expired")

	// ErrTokenRefreshFailed indicates the auth service rejected or could not serve a refresh.
	ErrTokenRefreshFailed = NewDomainError("FC-AUTH-4012", "token refresh failed")

	// ErrAuthenticationFailed indicates the auth service rejected the credentials.
	ErrAuthenticationFailed = NewDomainError("FC-AUTH-4013", "authentication failed")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrUserNotFound indicates a switch target has no stored credential.
	ErrUserNotFound = NewDomainError("FC-SESS-4040", "user not found")

	// ErrNoActiveUser indicates a tenant switch without a current user.
	ErrNoActiveUser = NewDomainError("FC-SESS-4041", "no active user")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrServiceUnreachable indicates a remote service could not be reached in time.
	ErrServiceUnreachable = NewDomainError("FC-SYS-5030", "service unreachable")

	// ErrValidationFailed indicates the remote service rejected the request payload.
	ErrValidationFailed = NewDomainError("FC-ARG-4220", "validation failed")
)
