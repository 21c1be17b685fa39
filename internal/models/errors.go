package models

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBelowMinimumAmount     = errors.New("below minimum amount")
	ErrExceedsAmountOwed      = errors.New("exceeds amount owed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrPersistence            = errors.New("persistence failure")
)

// Error is a typed domain failure carrying a human-readable reason and the id
// of the payment or request it relates to.
type Error struct {
	Kind   error
	Reason string
	Ref    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Fail builds a domain error of the given kind.
func Fail(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// WithRef sets the correlating id and returns e.
func (e *Error) WithRef(ref fmt.Stringer) *Error {
	e.Ref = ref.String()
	return e
}

// Persistence wraps a storage error. Domain errors pass through unchanged.
func Persistence(ref fmt.Stringer, op string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: ErrPersistence, Reason: op, Ref: ref.String(), Err: err}
}

// Code returns a stable snake_case identifier for err's kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrBelowMinimumAmount):
		return "below_minimum_amount"
	case errors.Is(err, ErrExceedsAmountOwed):
		return "exceeds_amount_owed"
	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "persistence_failure"
	}
}
