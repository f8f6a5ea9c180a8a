// Package apperr defines the typed error channel shared by the booking flow.
//
// Every failure the wizard can surface belongs to one Kind. Presentation
// layers switch on the kind to pick a response instead of inspecting
// messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for presentation.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindPayment    Kind = "payment"
	KindUnexpected Kind = "unexpected"
)

// Error carries a Kind plus the details needed to render it.
type Error struct {
	Kind    Kind
	Field   string // validation only
	Code    string // payment decline/error code, or network operation
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports an invalid or missing field. It is recoverable by the user.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// Network reports a failed call to a collaborator (transport error, non-2xx, or success=false).
func Network(op string, err error) error {
	return &Error{Kind: KindNetwork, Code: op, Message: op + " failed", Err: err}
}

// Payment reports a payment processor failure with user-facing copy.
func Payment(code, msg string, err error) error {
	return &Error{Kind: KindPayment, Code: code, Message: msg, Err: err}
}

// Unexpected wraps anything that does not fit the other kinds.
func Unexpected(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindUnexpected, Message: "unexpected error", Err: err}
}

// As extracts the typed error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnexpected for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnexpected
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }
