// Package errors defines the error taxonomy shared by every psconcurrent component.
package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the psconcurrent engine

var (
	// ErrInvalidConfiguration indicates a bad constructor argument, such as a
	// non-positive concurrency limit.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidState indicates that an operation was attempted in a state that
	// does not allow it, such as submitting to a closed scheduler.
	ErrInvalidState = errors.New("invalid state")

	// ErrLoopEnded indicates that work was handed to an event loop after it was completed.
	ErrLoopEnded = errors.New("event loop has ended")

	// ErrInvalidUsage indicates an API call that can never succeed from the
	// calling goroutine, such as a synchronous invocation from the loop owner.
	ErrInvalidUsage = errors.New("invalid usage")

	// ErrInvalidArgument indicates a bad argument value, such as an empty header.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsShutdown returns true if the error indicates that the target component no
// longer accepts work.
func IsShutdown(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrLoopEnded)
}

// ValidationError describes an invalid constructor or setter argument.
// It matches ErrInvalidConfiguration with errors.Is, or ErrInvalidArgument when
// created through NewArgumentError.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string

	kind error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Is reports whether target is the sentinel this validation error belongs to.
func (e *ValidationError) Is(target error) bool {
	kind := e.kind
	if kind == nil {
		kind = ErrInvalidConfiguration
	}
	return target == kind
}

// WithHint attaches a remediation hint and returns the same instance for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

// NewValidationError creates a ValidationError classified as ErrInvalidConfiguration.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NewArgumentError creates a ValidationError classified as ErrInvalidArgument.
func NewArgumentError(module, field string, value interface{}, reason string) *ValidationError {
	e := NewValidationError(module, field, value, reason)
	e.kind = ErrInvalidArgument
	return e
}

// OperationError describes a failed operation on a component.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// WithContext attaches additional context and returns the same instance for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

// NewOperationError creates an OperationError for module.operation failing with cause.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// PanicError is the leaf error produced when a job panics instead of returning.
type PanicError struct {
	Value interface{}
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
