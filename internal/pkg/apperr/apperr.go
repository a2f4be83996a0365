// Package apperr classifies failures into the small set of kinds the HTTP
// layer knows how to report. Services return plain sentinel errors or
// *Error values; handlers pass whatever they get to httputil.WriteError.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the class of an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindRateLimited
	KindProvider
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindProvider:
		return "provider"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Stable error codes returned in the "error" field of the envelope.
const (
	CodeValidation          = "validation_error"
	CodeSuspiciousInput     = "suspicious_input"
	CodeNoRecipients        = "no_recipients"
	CodeRecipientSuppressed = "recipient_suppressed"
	CodeUnauthorized        = "unauthorized"
	CodeRateLimited         = "rate_limited"
	CodeDailyQuota          = "daily_quota_exceeded"
	CodeProvider            = "provider_error"
	CodeInternal            = "internal_error"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeUnsupportedMedia    = "unsupported_media_type"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error

	// RetryAfter is set on rate-limit errors.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a 400 error with the given stable code.
func Validation(code, format string, args ...any) *Error {
	if code == "" {
		code = CodeValidation
	}
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Auth builds a 401 error.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Code: CodeUnauthorized, Message: message}
}

// RateLimited builds a 429 error.
func RateLimited(code, message string, retryAfter time.Duration) *Error {
	if code == "" {
		code = CodeRateLimited
	}
	return &Error{Kind: KindRateLimited, Code: code, Message: message, RetryAfter: retryAfter}
}

// Provider wraps an upstream delivery failure. Its message is shown to the
// caller.
func Provider(err error) *Error {
	return &Error{Kind: KindProvider, Code: CodeProvider, Err: err}
}

// Internal wraps an unexpected failure. Its text is never shown to callers.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Err: err}
}

// NotFound builds a 404 error.
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

// Conflict builds a 409 error.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: CodeConflict, Message: message}
}

// As extracts the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
