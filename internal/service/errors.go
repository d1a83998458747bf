package service

import (
	"errors"

	"github.com/alfredjeanlab/rednight/internal/model"
	"github.com/alfredjeanlab/rednight/internal/store"
)

// Code is a stable, machine-readable error classification.
type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeStoreFailure    Code = "STORE_FAILURE"
)

// Error is the single structured error every coordinator operation returns.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Description returns the underlying cause, or the message when there is none.
func (e *Error) Description() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Err.Error()
}

// CodeOf extracts the code from err, defaulting to CodeStoreFailure for
// errors that did not come from a coordinator.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeStoreFailure
}

// newError classifies a store-level failure for the operation described by
// what, e.g. "get config".
func newError(what string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: what + ": not found", Err: err}
	case errors.Is(err, model.ErrInvalidCursor):
		return &Error{Code: CodeInvalidArgument, Message: what + ": invalid next_page", Err: err}
	default:
		return &Error{Code: CodeStoreFailure, Message: what + ": store failure", Err: err}
	}
}
