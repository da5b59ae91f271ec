package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure. Each code maps to an HTTP status for the UI and
// tells callers whether repeating the operation can succeed.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	// CodeCheckoutIncomplete marks a multi-store checkout where at least one store failed.
	CodeCheckoutIncomplete Code = "CHECKOUT_INCOMPLETE"
)

// Metadata is how a code is rendered and whether it is worth retrying.
// ExposeMessage lets the caller's own message reach the UI in place of
// PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

const (
	retry   = 1 << iota
	details
	expose
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retry != 0,
		DetailsAllowed: flags&details != 0,
		ExposeMessage:  flags&expose != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         meta(http.StatusBadRequest, "validation failed", details|expose),
	CodeUnauthorized:       meta(http.StatusUnauthorized, "sign in to continue", details|expose),
	CodeForbidden:          meta(http.StatusForbidden, "access denied", expose),
	CodeNotFound:           meta(http.StatusNotFound, "not found", expose),
	CodeConflict:           meta(http.StatusConflict, "cart changed, reload and try again", expose),
	CodeIdempotency:        meta(http.StatusConflict, "idempotency key reused", details|expose),
	CodeRateLimit:          meta(http.StatusTooManyRequests, "too many requests", retry|expose),
	CodeInternal:           meta(http.StatusInternalServerError, "something went wrong", retry),
	CodeDependency:         meta(http.StatusServiceUnavailable, "marketplace unavailable", retry|details),
	CodeCheckoutIncomplete: meta(http.StatusBadGateway, "checkout did not complete for every store", retry|details|expose),
}

// MetadataFor falls back to the CodeInternal entry for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf returns the typed code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Retryable reports whether repeating the failed operation can succeed, for
// example a marketplace outage as opposed to a rejected payment method.
// A nil error is not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(CodeOf(err)).Retryable
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
