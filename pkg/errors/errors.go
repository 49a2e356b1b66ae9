// Package errors defines the structured error types of the shared cookie service.
// Every failure carries a Kind that callers switch on; the HTTP layer collapses
// all validation kinds into a single unauthenticated response.
package errors

import (
	stderrors "errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Kind classifies a failure
type Kind string

const (
	// KindNoKeyAvailable means the key ring holds no usable key
	KindNoKeyAvailable Kind = "no_key_available"

	// KindUnknownKeyVersion means the cookie names a key the ring does not hold
	KindUnknownKeyVersion Kind = "unknown_key_version"

	// KindMalformedCookie means the cookie could not be decoded or parsed
	KindMalformedCookie Kind = "malformed_cookie"

	// KindTamperedOrWrongKey means authenticated decryption failed
	KindTamperedOrWrongKey Kind = "tampered_or_wrong_key"

	// KindExpired means the ticket lifetime has elapsed
	KindExpired Kind = "expired"

	// KindInvalidIdentity means the login identity was rejected
	KindInvalidIdentity Kind = "invalid_identity"

	// KindInvalidConfig means configuration failed validation
	KindInvalidConfig Kind = "invalid_config"

	// KindKeyStore means the key store could not be read or written
	KindKeyStore Kind = "key_store"

	// KindRateLimited means the client sent too many login attempts
	KindRateLimited Kind = "rate_limited"

	// KindInternal is used for errors that carry no kind
	KindInternal Kind = "internal_error"
)

// CodeUnauthenticated is the public error code of every rejected cookie
const CodeUnauthenticated = "unauthenticated"

// ================================================================================
// Base Error Interface
// ================================================================================

// AuthError represents a structured error with additional metadata
type AuthError interface {
	error

	// Kind returns the failure classification
	Kind() Kind

	// Code returns the public error code
	Code() string

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) AuthError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) AuthError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	kind        Kind
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Kind returns the failure classification
func (e *baseError) Kind() Kind {
	return e.kind
}

// Code returns the public error code
func (e *baseError) Code() string {
	return string(e.kind)
}

// HTTPStatus returns the HTTP status code
func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

// Description returns the error description
func (e *baseError) Description() string {
	return e.description
}

// Unwrap returns the underlying cause error
func (e *baseError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) AuthError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) AuthError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// Is matches another AuthError of the same kind, so errors.Is(err, ErrExpired()) works
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	return ok && t.kind == e.kind
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new AuthError with the specified parameters
func NewError(kind Kind, httpStatus int, description string, message string) AuthError {
	return &baseError{
		kind:        kind,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrNoKeyAvailable creates a no_key_available error
func ErrNoKeyAvailable(reason string) AuthError {
	return NewError(KindNoKeyAvailable, http.StatusServiceUnavailable,
		"No usable key is available in the key ring", "no key available: "+reason)
}

// ErrUnknownKeyVersion creates an unknown_key_version error
func ErrUnknownKeyVersion(keyID string) AuthError {
	return NewError(KindUnknownKeyVersion, http.StatusUnauthorized,
		"The cookie was protected with a key this service does not hold",
		fmt.Sprintf("unknown key version %s", keyID)).
		WithMetadata("key_id", keyID)
}

// ErrMalformedCookie creates a malformed_cookie error
func ErrMalformedCookie(reason string) AuthError {
	return NewError(KindMalformedCookie, http.StatusUnauthorized,
		"The cookie value is not a valid ticket", "malformed cookie: "+reason).
		WithMetadata("reason", reason)
}

// ErrTamperedOrWrongKey creates a tampered_or_wrong_key error
func ErrTamperedOrWrongKey(keyID string) AuthError {
	return NewError(KindTamperedOrWrongKey, http.StatusUnauthorized,
		"The cookie failed authentication", "cookie authentication failed").
		WithMetadata("key_id", keyID)
}

// ErrExpired creates an expired error
func ErrExpired(expiresAt string) AuthError {
	return NewError(KindExpired, http.StatusUnauthorized,
		"The ticket has expired", "ticket expired at "+expiresAt).
		WithMetadata("expires_at", expiresAt)
}

// ErrInvalidIdentity creates an invalid_identity error
func ErrInvalidIdentity(reason string) AuthError {
	return NewError(KindInvalidIdentity, http.StatusBadRequest,
		"The identity is not acceptable", "invalid identity: "+reason).
		WithMetadata("reason", reason)
}

// ErrInvalidConfig creates an invalid_config error
func ErrInvalidConfig(field string, reason string) AuthError {
	return NewError(KindInvalidConfig, http.StatusInternalServerError,
		"Configuration is invalid", fmt.Sprintf("invalid config %s: %s", field, reason)).
		WithMetadata("field", field)
}

// ErrKeyStore creates a key_store error
func ErrKeyStore(operation string, cause error) AuthError {
	return NewError(KindKeyStore, http.StatusServiceUnavailable,
		"The key store is unavailable", "key store "+operation+" failed").
		WithCause(cause).
		WithMetadata("operation", operation)
}

// ErrRateLimited creates a rate_limited error
func ErrRateLimited(retryAfter time.Duration) AuthError {
	return NewError(KindRateLimited, http.StatusTooManyRequests,
		"Too many requests, retry later", "rate limited for "+retryAfter.String()).
		WithMetadata("retry_after_seconds", int(math.Ceil(retryAfter.Seconds())))
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// AsAuthError finds the first AuthError in the error chain
func AsAuthError(err error) (AuthError, bool) {
	var authErr AuthError
	if stderrors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal when it carries none
func KindOf(err error) Kind {
	if authErr, ok := AsAuthError(err); ok {
		return authErr.Kind()
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsValidationFailure reports whether err is one of the cookie rejection kinds
func IsValidationFailure(err error) bool {
	switch KindOf(err) {
	case KindUnknownKeyVersion, KindMalformedCookie, KindTamperedOrWrongKey, KindExpired:
		return true
	}
	return false
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts an AuthError to an ErrorResponse
func ToErrorResponse(err AuthError) *ErrorResponse {
	resp := &ErrorResponse{
		Error:            err.Code(),
		ErrorDescription: err.Description(),
	}
	if len(err.Metadata()) > 0 {
		resp.Metadata = err.Metadata()
	}
	return resp
}

// ToGenericErrorResponse converts any error to an ErrorResponse
func ToGenericErrorResponse(err error) *ErrorResponse {
	if authErr, ok := AsAuthError(err); ok {
		return ToErrorResponse(authErr)
	}

	return &ErrorResponse{
		Error:            string(KindInternal),
		ErrorDescription: "An unexpected error occurred",
	}
}

// UnauthenticatedResponse is the only body returned for a rejected cookie
func UnauthenticatedResponse() *ErrorResponse {
	return &ErrorResponse{
		Error:            CodeUnauthenticated,
		ErrorDescription: "Authentication is required",
	}
}

// StatusOf returns the HTTP status for err
func StatusOf(err error) int {
	if authErr, ok := AsAuthError(err); ok {
		return authErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
