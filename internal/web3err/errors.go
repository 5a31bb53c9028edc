// Package web3err defines the error taxonomy surfaced to callers of the client core.
//
// Every error carries a Code. Errors compare equal under errors.Is when their codes
// match, so callers test against the exported sentinels:
//
//	if errors.Is(err, web3err.ErrTimeout) {
//	    // retry with a fresh poll window
//	}
package web3err

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an error.
type Code string

const (
	// CodeRequest marks a failure reported by the provider or the remote node.
	CodeRequest Code = "REQUEST"
	// CodeValidation marks an operation that is not valid in the current state,
	// e.g. polling an uninstalled filter or removing an unknown middleware.
	CodeValidation Code = "VALIDATION"
	// CodeValue marks malformed or inconsistent parameters.
	CodeValue Code = "VALUE"
	// CodeTimeout marks a liveness failure, e.g. a receipt that never arrived.
	CodeTimeout Code = "TIMEOUT"
	// CodeInsufficientData marks a computation that lacked enough samples.
	CodeInsufficientData Code = "INSUFFICIENT_DATA"
)

// retryable holds the default retry attribute of each code.
var retryable = map[Code]bool{
	CodeRequest: true,
	CodeTimeout: true,
}

var (
	ErrRequest          = &Error{code: CodeRequest}
	ErrValidation       = &Error{code: CodeValidation}
	ErrValue            = &Error{code: CodeValue}
	ErrTimeout          = &Error{code: CodeTimeout}
	ErrInsufficientData = &Error{code: CodeInsufficientData}
)

// Error is the single error type produced by this module.
type Error struct {
	code      Code
	message   string
	method    string
	cause     error
	retryable *bool
}

// Option customizes an Error at construction.
type Option func(*Error)

// WithRetryable overrides the default retry attribute of the error's code.
func WithRetryable(r bool) Option {
	return func(e *Error) {
		e.retryable = &r
	}
}

// Request wraps a provider failure for the given RPC method.
func Request(method string, cause error, opts ...Option) *Error {
	e := &Error{code: CodeRequest, method: method, cause: cause}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validation reports an operation that is invalid in the current state.
func Validation(format string, args ...any) *Error {
	return &Error{code: CodeValidation, message: fmt.Sprintf(format, args...)}
}

// Value reports malformed or inconsistent parameters.
func Value(format string, args ...any) *Error {
	return &Error{code: CodeValue, message: fmt.Sprintf(format, args...)}
}

// Timeout reports an exceeded deadline.
func Timeout(format string, args ...any) *Error {
	return &Error{code: CodeTimeout, message: fmt.Sprintf(format, args...)}
}

// InsufficientData reports a computation over too few samples.
func InsufficientData(format string, args ...any) *Error {
	return &Error{code: CodeInsufficientData, message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.method != "" && e.cause != nil:
		return fmt.Sprintf("request %s: %v", e.method, e.cause)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	case e.message == "":
		return string(e.code)
	default:
		return e.message
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Method returns the RPC method of a request error, empty otherwise.
func (e *Error) Method() string {
	return e.method
}

// Retryable reports whether repeating the failed operation may succeed.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return retryable[e.code]
}

// From extracts the *Error from err's chain.
func From(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err, or the empty code when err is not from this package.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return ""
}

// IsRetryable reports whether err carries a retryable code.
func IsRetryable(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable()
	}
	return false
}
