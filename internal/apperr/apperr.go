// Package apperr defines the error taxonomy shared by every studio component.
//
// Every error that reaches the control API carries a Code so callers can tell
// "name taken" apart from "not supported on this OS" without parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Code categorizes an error.
type Code string

const (
	// Validation codes, produced locally before any engine call.
	DuplicateName         Code = "DUPLICATE_NAME"
	InvalidTransition     Code = "INVALID_TRANSITION"
	UnsupportedOnPlatform Code = "UNSUPPORTED_ON_PLATFORM"
	InvalidValue          Code = "INVALID_VALUE"

	// Engine codes, propagated unchanged.
	NotFound        Code = "NOT_FOUND"
	InUse           Code = "IN_USE"
	UnsupportedType Code = "UNSUPPORTED_TYPE"
	UnknownProperty Code = "UNKNOWN_PROPERTY"
	AlreadyActive   Code = "ALREADY_ACTIVE"
	Timeout         Code = "TIMEOUT"
	Unavailable     Code = "UNAVAILABLE"

	// Platform and store codes.
	NotAuthenticated       Code = "NOT_AUTHENTICATED"
	StoreTransactionFailed Code = "STORE_TRANSACTION_FAILED"

	Internal Code = "INTERNAL"
)

// Error is a categorized failure.
type Error struct {
	Code    Code
	Op      string // operation that failed, e.g. "engine.createScene"
	Message string
	Err     error // optional cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a formatted message.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or Internal.
// A nil error has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsValidation reports whether the code is raised by local validation.
func (c Code) IsValidation() bool {
	switch c {
	case DuplicateName, InvalidTransition, UnsupportedOnPlatform, InvalidValue:
		return true
	}
	return false
}
