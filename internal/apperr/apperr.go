// Package apperr defines the closed error taxonomy shared by services,
// middleware and the HTTP boundary.  Every failure a service returns is an
// *Error carrying a Kind; the boundary maps kinds to HTTP statuses in one
// place and never improvises per-route codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates the failure classes the API can surface.
type Kind int

const (
	KindBadRequest   Kind = iota + 1 // malformed input not caught by field validators
	KindUnauthorized                 // missing, invalid or expired credential/token
	KindForbidden                    // authenticated but deactivated or insufficient role
	KindNotFound                     // referenced entity absent
	KindConflict                     // uniqueness violation
	KindValidation                   // business-rule violation with field details
	KindInternal                     // unexpected or store-layer fault
)

// FieldError carries field-level detail for validation failures.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the taxonomy's concrete type.  Message is safe to return to the
// caller; Err, when set, holds the underlying cause for server-side logging
// and is never serialized.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// BadRequest builds a 400-class error.
func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

// Unauthorized builds a 401-class error.
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

// Forbidden builds a 403-class error.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// NotFound builds a 404-class error for the named resource.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Conflict builds a 409-class error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Validation builds a 422-class error with optional field details.
func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Internal wraps an unanticipated error.  The caller-facing message stays
// generic; the cause is kept for logging.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf extracts the Kind from err.  Errors outside the taxonomy are
// treated as internal faults.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err belongs to the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// Status maps an error's kind to its HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
