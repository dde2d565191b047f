package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, machine-readable class of an Error.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation_error"
	KindTransientStore ErrorKind = "transient_store_error"
	KindComputation    ErrorKind = "computation_error"
)

var (
	ErrValidation     = errors.New("domain: validation failed")
	ErrTransientStore = errors.New("domain: transient store failure")
	ErrComputation    = errors.New("domain: computation failed")
)

// Error carries a kind and a human message across the service boundary.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindValidation:
		return target == ErrValidation
	case KindTransientStore:
		return target == ErrTransientStore
	case KindComputation:
		return target == ErrComputation
	}
	return false
}

// NewValidationError reports malformed caller input.
func NewValidationError(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NewTransientStoreError wraps a retryable store failure.
func NewTransientStoreError(op string, err error) *Error {
	return &Error{Kind: KindTransientStore, Op: op, Message: "store temporarily unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not a domain Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
