// Package apperror defines the typed errors services return and their
// single mapping to HTTP statuses. Handlers pass service errors through
// HTTPError instead of choosing statuses inline.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ValidationError indicates malformed or missing caller input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError indicates the request is well-formed but contradicts
// current state (duplicate request, already-resolved workflow item,
// missing precondition such as no primary doctor).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a referenced entity does not exist or is not
// visible to the caller.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NotFound(format string, args ...interface{}) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// ExternalSourceError indicates the upstream interaction source failed.
// It never reaches a client: resolvers degrade to a no-interaction result
// and log instead. The type exists so callers can detect and swallow it.
type ExternalSourceError struct {
	Msg string
	Err error
}

func (e *ExternalSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ExternalSourceError) Unwrap() error { return e.Err }

func ExternalSource(err error, format string, args ...interface{}) error {
	return &ExternalSourceError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// InvariantViolation indicates a broken internal invariant (for example
// two primary doctors observed for one patient). It is a bug signal, not
// a caller error.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return e.Msg }

func Invariant(format string, args ...interface{}) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var cf *ConflictError
	return errors.As(err, &cf)
}

// IsExternalSource reports whether err is (or wraps) an ExternalSourceError.
func IsExternalSource(err error) bool {
	var es *ExternalSourceError
	return errors.As(err, &es)
}

// HTTPError converts a service error into an echo HTTP error with the
// status the error type dictates. Unknown errors map to 500 with a
// generic message so internals never leak.
func HTTPError(err error) error {
	var (
		ve *ValidationError
		cf *ConflictError
		nf *NotFoundError
		iv *InvariantViolation
	)
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Msg)
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Msg)
	case errors.As(err, &cf):
		return echo.NewHTTPError(http.StatusConflict, cf.Msg)
	case errors.As(err, &iv):
		return echo.NewHTTPError(http.StatusInternalServerError, "internal invariant violated")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
