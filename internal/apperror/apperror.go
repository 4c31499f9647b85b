// Package apperror defines the error kinds that cross component boundaries.
// Components never leak raw SQL errors, solver internals, or stack traces to
// callers; instead they wrap the underlying cause in one of these kinds so a
// caller can dispatch on it with errors.Is/errors.As without string matching.
package apperror

import "errors"

// Kind classifies an error for caller-facing handling.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindAuthorization         Kind = "authorization"
	KindConcurrencyConflict   Kind = "concurrency_conflict"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInfeasible            Kind = "infeasible_optimization"
	KindNotFound              Kind = "not_found"
	KindInternal              Kind = "internal"
)

// Error is a kinded error that wraps an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, apperror.KindValidation) style checks by comparing
// the wrapped Kind against a sentinel constructed with New(kind, "", nil).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs a kinded error.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validationf builds a validation-kind error.
func Validationf(format string, cause error) *Error {
	return New(KindValidation, format, cause)
}

// Of reports the Kind of err, defaulting to KindInternal when err does not
// wrap an *Error.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
