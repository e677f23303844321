package core

import (
	"fmt"
)

// Error is the canonical error shape used across the service.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest      ErrorType = "invalid_request_error"
	ErrAuthentication      ErrorType = "authentication_error"
	ErrPermission          ErrorType = "permission_error"
	ErrNotFound            ErrorType = "not_found_error"
	ErrAuthorizationDenied ErrorType = "authorization_denied"
	ErrCollaborator        ErrorType = "collaborator_error"
	ErrSession             ErrorType = "session_error"
	ErrAPI                 ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewPermissionError creates a permission error.
func NewPermissionError(message string) *Error {
	return &Error{
		Type:    ErrPermission,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewAuthorizationDeniedError reports that the authorization gate refused to
// let the assistant handle a call.
func NewAuthorizationDeniedError(callerID string) *Error {
	return &Error{
		Type:    ErrAuthorizationDenied,
		Message: fmt.Sprintf("caller %s is not authorized for AI call handling", callerID),
		Code:    "caller_not_authorized",
	}
}

// NewCollaboratorError wraps a failure from an external collaborator
// (listen, speak, memory search, profile lookup, policy evaluation, persistence).
// The op is recorded as the error code so call sites can branch on it.
func NewCollaboratorError(op string, cause error) *Error {
	msg := "collaborator call failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Type:    ErrCollaborator,
		Message: msg,
		Code:    op,
		cause:   cause,
	}
}

// NewSessionError reports a failure that forced a call session into the
// failed state.
func NewSessionError(message string, cause error) *Error {
	return &Error{
		Type:    ErrSession,
		Message: message,
		cause:   cause,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}
