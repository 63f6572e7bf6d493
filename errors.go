package rxpromise

import (
	"errors"
	"fmt"
)

// DomainRXPromise is the error domain carried by every synthesized error
// this package produces, mirroring the Objective-C RXPromise library's
// NSError domain string.
const DomainRXPromise = "RXPromise"

// Numeric error codes, matching the synthesized-error contract: generic
// rejections and cancellations use -1000, timeouts use -1001.
const (
	CodeGeneric = -1000
	CodeTimeout = -1001
)

// Kind classifies the circumstance that produced an Error, for callers that
// want to branch on cause without string-matching Message.
type Kind string

const (
	KindUser      Kind = "user"
	KindCancelled Kind = "cancelled"
	KindTimeout   Kind = "timeout"
	KindParameter Kind = "parameter"
)

// Error is the synthesized error type this package wraps non-error
// rejection reasons in. Domain and Code follow the RXPromise contract;
// Value preserves the original rejection reason when it wasn't already an
// error.
type Error struct {
	Domain  string
	Code    int
	Kind    Kind
	Message string
	Value   any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s(%d): %s", e.Domain, e.Code, e.Message)
	}
	return fmt.Sprintf("%s(%d)", e.Domain, e.Code)
}

// Unwrap returns the wrapped cause, if any, for use with errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error with the same Kind, so callers can write
// errors.Is(err, ErrCancelled) without caring about the specific reason
// text.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind != "" && e.Kind == other.Kind
}

// ErrCancelled is the default cancellation reason used when Cancel is
// called with a nil reason: message "cancelled" under code -1000.
var ErrCancelled = &Error{Domain: DomainRXPromise, Code: CodeGeneric, Kind: KindCancelled, Message: "cancelled"}

// ErrParameter is returned by combinators given an empty or absent input
// sequence.
var ErrParameter = &Error{Domain: DomainRXPromise, Code: CodeGeneric, Kind: KindParameter, Message: "parameter error"}

// wrapRejection converts an arbitrary rejection reason into an error,
// wrapping non-error values in the synthesized Error type per the
// RXPromiseDomain/-1000 contract.
func wrapRejection(reason any) error {
	if reason == nil {
		return &Error{Domain: DomainRXPromise, Code: CodeGeneric, Kind: KindUser, Message: "rejected"}
	}
	if err, ok := reason.(error); ok {
		return err
	}
	return &Error{
		Domain:  DomainRXPromise,
		Code:    CodeGeneric,
		Kind:    KindUser,
		Message: fmt.Sprint(reason),
		Value:   reason,
	}
}

// cancelReason converts a Cancel argument into an error, defaulting to
// ErrCancelled when reason is nil.
func cancelReason(reason any) error {
	if reason == nil {
		return ErrCancelled
	}
	if err, ok := reason.(error); ok {
		return err
	}
	return &Error{
		Domain:  DomainRXPromise,
		Code:    CodeGeneric,
		Kind:    KindCancelled,
		Message: fmt.Sprint(reason),
		Value:   reason,
	}
}

// timeoutError builds the synthesized timeout error returned by
// GetWithTimeout and raised by SetTimeout on expiry.
func timeoutError() error {
	return &Error{Domain: DomainRXPromise, Code: CodeTimeout, Kind: KindTimeout, Message: "timeout"}
}

// parameterError builds the error combinators reject with on empty input.
func parameterError() error {
	return ErrParameter
}

// PanicError wraps a value recovered from a handler panic, converting it
// into a rejection of the handler's child promise rather than crashing the
// execution context's goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value if it was itself an error, enabling
// errors.Is/errors.As through a recovered panic.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// AggregateError is the rejection reason for Any when every input promise
// has rejected.
type AggregateError struct {
	Message string
	Errors  []error
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("all %d promises were rejected", len(e.Errors))
}

// Unwrap returns the individual errors for multi-error unwrapping
// (errors.Is/errors.As walk each member).
func (e *AggregateError) Unwrap() []error { return e.Errors }
