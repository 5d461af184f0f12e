package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how callers should react to it
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindForbidden      Kind = "forbidden"
	KindResource       Kind = "resource"
	KindTransient      Kind = "transient"
	KindDataCorruption Kind = "data_corruption"
	KindNotFound       Kind = "not_found"
	KindInternal       Kind = "internal"
)

// Error is an application error carrying a user-facing message
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithDetails sets the diagnostic details shown alongside the message
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// Public is the stable {message, details} shape exposed at the boundary
type Public struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Public returns the boundary representation of e
func (e *Error) Public() Public {
	return Public{Message: e.Message, Details: e.Details}
}

// New creates an error of the given kind
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an error of the given kind around err
func Wrap(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func Authentication(code, message string) *Error {
	return New(KindAuthentication, code, message)
}

func Forbidden(code, message string) *Error {
	return New(KindForbidden, code, message)
}

func Resource(code, message string) *Error {
	return New(KindResource, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Configuration(code, message string) *Error {
	return New(KindConfiguration, code, message)
}

// Transient wraps a retryable network or backend failure
func Transient(err error, message string) *Error {
	return Wrap(err, KindTransient, "transient", message)
}

// DataCorruption wraps a failure to parse persisted data
func DataCorruption(err error, message string) *Error {
	return Wrap(err, KindDataCorruption, "data_corruption", message)
}

// Internal wraps an unexpected failure
func Internal(err error) *Error {
	return Wrap(err, KindInternal, "internal", "Internal server error")
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when err carries none
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// PublicOf converts any error to the boundary shape. Errors outside the
// taxonomy are reported generically.
func PublicOf(err error) Public {
	if e, ok := As(err); ok {
		return e.Public()
	}
	return Public{Message: "Internal server error"}
}

// HTTPStatus maps err to an HTTP status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindResource:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindConfiguration, KindDataCorruption, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether err is an anticipated user mistake, logged at info rather than error
func Expected(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindAuthentication, KindResource, KindNotFound, KindForbidden:
		return true
	default:
		return false
	}
}
