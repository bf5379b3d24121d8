// Package errs defines the error kinds shared across the backstore layer.
package errs

import (
	"errors"
	"fmt"
)

// Kind sentinels. Callers match with errors.Is; the concrete error carries
// the message and any wrapped cause.
var (
	// ErrNotFound covers a device node with no udev database entry, or a
	// required binary missing at invocation time.
	ErrNotFound = errors.New("not found")

	// ErrInvalid covers a supplied path that does not refer to a block device.
	ErrInvalid = errors.New("invalid")

	// ErrIO covers failures opening or reading device nodes and failures
	// spawning processes.
	ErrIO = errors.New("io error")

	// ErrCommandFailed covers external tools exiting non-zero.
	ErrCommandFailed = errors.New("command failed")
)

// Error is a kinded error. Kind is one of the sentinels above.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind membership so errors.Is(err, errs.ErrNotFound) works
// without callers needing the concrete type.
func (e *Error) Is(target error) bool { return target == e.Kind }

// NotFound builds a NotFound-kind error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds an Invalid-kind error.
func Invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalid, Msg: fmt.Sprintf(format, args...)}
}

// IO wraps err as an IO-kind error.
func IO(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrIO, Msg: fmt.Sprintf(format, args...), Err: err}
}
