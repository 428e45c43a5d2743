// Package apperr classifies the failures a client can surface to the user.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how the UI reacts to them.
type Kind string

const (
	// KindValidation is an empty or malformed input caught before any request.
	KindValidation Kind = "validation"
	// KindAuth means the action needs a logged-in session.
	KindAuth       Kind = "auth"
	// KindBackend is a logical failure reported by the backend (success:false).
	KindBackend    Kind = "backend"
	// KindTransport covers rejected requests and undecodable responses.
	KindTransport  Kind = "transport"
	// KindDevice covers microphone permission and recorder failures.
	KindDevice     Kind = "device"
	KindInternal   Kind = "internal"
)

// Error is a classified error. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) error {
	return New(KindValidation, message, nil)
}

func Auth(message string) error {
	return New(KindAuth, message, nil)
}

func Backend(message string) error {
	return New(KindBackend, message, nil)
}

func Transport(message string, cause error) error {
	return New(KindTransport, message, cause)
}

func Device(message string, cause error) error {
	return New(KindDevice, message, cause)
}

// KindOf reports the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err. Unclassified errors fall
// back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		if ae.Cause != nil {
			return ae.Cause.Error()
		}
	}
	return err.Error()
}
