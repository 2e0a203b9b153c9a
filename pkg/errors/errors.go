package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Code values are
// stable machine-readable identifiers agents can branch on; Details carries
// structured context such as blocked keys or write mismatches.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"status"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the authorization pipeline and write policy.
var (
	ErrHTTPSRequired    = New("caa_https_required", http.StatusForbidden, "HTTPS is required for Agent API access")
	ErrMissingKey       = New("caa_missing_key", http.StatusUnauthorized, "missing API key")
	ErrInvalidKeyFormat = New("caa_invalid_key_format", http.StatusUnauthorized, "invalid API key format")
	ErrKeyNotFound      = New("caa_key_not_found", http.StatusUnauthorized, "API key not found")
	ErrKeyRevoked       = New("caa_key_revoked", http.StatusUnauthorized, "API key is not active")
	ErrKeyExpired       = New("caa_key_expired", http.StatusUnauthorized, "API key has expired")
	ErrKeyInvalid       = New("caa_key_invalid", http.StatusUnauthorized, "invalid API key")
	ErrIPDenied         = New("caa_ip_denied", http.StatusForbidden, "request IP is not allowed for this key")
	ErrRateLimited      = New("caa_rate_limited", http.StatusTooManyRequests, "rate limit exceeded for this API key")

	ErrSignatureMissing  = New("caa_signature_missing", http.StatusUnauthorized, "both signature and timestamp headers are required when signing requests")
	ErrSignatureInvalid  = New("caa_signature_invalid", http.StatusUnauthorized, "invalid signature timestamp")
	ErrSignatureExpired  = New("caa_signature_expired", http.StatusUnauthorized, "signed request timestamp is outside the allowed window")
	ErrSignatureMismatch = New("caa_signature_mismatch", http.StatusUnauthorized, "request signature mismatch")

	ErrScopeDenied        = New("caa_scope_denied", http.StatusForbidden, "API key does not grant the required scope(s)")
	ErrWritePolicyBlocked = New("caa_write_policy_blocked", http.StatusForbidden, "one or more keys are restricted on this route")
	ErrWriteIntegrity     = New("caa_write_integrity_failed", http.StatusConflict, "one or more writes were altered during persistence")

	ErrValidation = New("caa_validation_failed", http.StatusBadRequest, "validation failed")
	ErrNotFound   = New("caa_not_found", http.StatusNotFound, "resource not found")
	ErrInternal   = New("caa_internal_error", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithCause returns a copy of the error wrapping an underlying cause.
func WithCause(err *Error, cause error) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Err = cause
	return &clone
}

// WithDetails returns a copy of the error carrying structured details.
func WithDetails(err *Error, details map[string]any) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// Is reports whether err carries the same stable code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
