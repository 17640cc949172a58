// Package errors provides structured error reporting for permission requests.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindPlatform indicates a platform channel or native bridge error.
	KindPlatform
	// KindParsing indicates an event parsing failure.
	KindParsing
	// KindProtocol indicates the host broke the request/result contract,
	// for example a result whose grant list does not match the request.
	KindProtocol
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindParsing:
		return "parsing"
	case KindProtocol:
		return "protocol"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// PermsError represents a structured error raised while requesting permissions.
type PermsError struct {
	// Op is the operation that failed (e.g., "perms.HandleResult").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Channel is the platform channel name, if applicable.
	Channel string
	// RequestCode is the correlation id of the request, zero when unknown.
	RequestCode int
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *PermsError) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	if e.Channel != "" {
		msg += " channel=" + e.Channel
	}
	if e.RequestCode != 0 {
		msg += fmt.Sprintf(" request=%d", e.RequestCode)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *PermsError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "perms.OnAllAccepted").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a failure to parse event data.
type ParseError struct {
	// Channel is the platform channel that received the event.
	Channel string
	// DataType is the expected type name.
	DataType string
	// Got is the actual data received.
	Got any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from channel %s: got %T", e.DataType, e.Channel, e.Got)
}

// ErrorHandler receives errors reported by the permission runtime.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *PermsError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
