// Package errors provides structured error types for commitcanvas.
//
// Every failure that crosses a package boundary toward the session, the
// HTTP API or the CLI carries a machine-readable [Code]. The session turns
// coded errors into user notifications; the server maps them to HTTP status
// codes.
//
// # Error Codes
//
//   - INVALID_*: input validation failures
//   - NOT_FOUND: unknown tab, repository or commit
//   - FETCH_ERROR: the commit or status collaborator failed
//   - LAYOUT_ERROR: the layout engine rejected the graph
//   - PERSISTENCE_ERROR: the layout cache could not be read or written
//   - RENDER_ERROR: an image export failed
//   - NOT_DIFFABLE: a diff endpoint was the working copy
//   - BUSY: a fetch is already in flight
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotDiffable, "working copy cannot be diffed")
//	if errors.Is(err, errors.ErrCodeNotDiffable) {
//	    // keep the pointer armed
//	}
//
//	err := errors.Wrap(errors.ErrCodeFetch, origErr, "load commits for %s", repo)
package errors

import (
	"errors"
	"fmt"
)

// Code is the machine-readable category of an [Error].
type Code string

const (
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"
	ErrCodeNotFound     Code = "NOT_FOUND"

	ErrCodeFetch       Code = "FETCH_ERROR"
	ErrCodeLayout      Code = "LAYOUT_ERROR"
	ErrCodePersistence Code = "PERSISTENCE_ERROR"
	ErrCodeRender      Code = "RENDER_ERROR"

	// ErrCodeNotDiffable is returned when the working copy is used as a
	// diff endpoint.
	ErrCodeNotDiffable Code = "NOT_DIFFABLE"
	// ErrCodeBusy is returned while another page fetch is in flight.
	ErrCodeBusy Code = "BUSY"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error pairs a [Code] with a message for the user and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an error with code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return Wrap(code, nil, format, args...)
}

// Wrap is New with a cause attached.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// outermost returns the first *Error in err's chain, or nil.
func outermost(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Is reports whether the outermost *Error in err's chain has code. Codes
// further down the chain are ignored, so a FETCH_ERROR wrapping a
// NOT_FOUND is a fetch error.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the outermost code in err's chain, or "" if there is none.
func GetCode(err error) Code {
	if e := outermost(err); e != nil {
		return e.Code
	}
	return ""
}

// UserMessage returns the outermost coded message without the code prefix,
// falling back to err.Error() for uncoded errors.
func UserMessage(err error) string {
	if e := outermost(err); e != nil {
		return e.Message
	}
	return err.Error()
}
