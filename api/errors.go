// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for ipcdrop.

package api

import (
	"fmt"
)

// Common errors used across the module.
var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrAddrInUse       = fmt.Errorf("address in use")
	ErrConnectRefused  = fmt.Errorf("connection refused")
	ErrWriteFailed     = fmt.Errorf("write failed")
	ErrHalfClosed      = fmt.Errorf("connection half is closed")
	ErrRuntimeClosed   = fmt.Errorf("runtime is shut down")
	ErrExecutorClosed  = fmt.Errorf("executor is closed")
	ErrTaskDropped     = fmt.Errorf("task dropped")
	ErrTaskPanicked    = fmt.Errorf("task panicked")
)

// ErrorCode represents specific error conditions in the module.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeAddrInUse
	ErrCodeConnectRefused
	ErrCodeWriteFailed
	ErrCodeRuntimeGone
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeAddrInUse:
		return "addr_in_use"
	case ErrCodeConnectRefused:
		return "connect_refused"
	case ErrCodeWriteFailed:
		return "write_failed"
	case ErrCodeRuntimeGone:
		return "runtime_gone"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
// Err, when set, is exposed through Unwrap so errors.Is keeps working.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// Wrap creates a structured error around cause.
func Wrap(code ErrorCode, cause error, message string) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// DropPanic is raised from the runtime's shutdown path when a task's
// destructors panicked while the task was being dropped.
type DropPanic struct {
	Task  string
	Value any
	Stack []byte
}

func (p *DropPanic) Error() string {
	return fmt.Sprintf("panic while dropping task %q: %v", p.Task, p.Value)
}

// Unwrap exposes the panic value when it is an error.
func (p *DropPanic) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}
