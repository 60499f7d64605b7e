package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and transport mapping.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindStateConflict       Kind = "state_conflict"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindExternalService     Kind = "external_service"
	KindInvariantViolation  Kind = "invariant_violation"
	KindInternal            Kind = "internal"
)

// Error is a tagged application error. Two errors with the same Code match
// under errors.Is, so sentinels can be compared against decorated copies.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Generic kinds used where no specific sub-kind applies.
var (
	ErrValidation          = New(KindValidation, "VALIDATION_ERROR", "validation error")
	ErrNotFound            = New(KindNotFound, "NOT_FOUND", "resource not found")
	ErrConcurrencyConflict = New(KindConcurrencyConflict, "CONCURRENCY_CONFLICT", "concurrent modification detected")
	ErrExternalService     = New(KindExternalService, "EXTERNAL_SERVICE_ERROR", "external service unavailable")
	ErrInvariantViolation  = New(KindInvariantViolation, "INVARIANT_VIOLATION", "invariant violation")
)

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...any) *Error {
	return ErrValidation.WithMessage(format, args...)
}

// NotFound builds a not found error for the named entity.
func NotFound(entity string, id any) *Error {
	return ErrNotFound.WithMessage("%s %v not found", entity, id)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConcurrencyConflict
}

// IsClientError reports whether err was caused by the caller's input or by
// the current state of the entities it referenced.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindStateConflict:
		return true
	}
	return false
}
