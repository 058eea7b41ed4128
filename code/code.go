// Package code defines error code values used by the jrpc2 package.
package code

import (
	"context"
	"errors"
	"fmt"
)

// A Code is an error response code, that satisfies the error interface.
type Code int32

func (c Code) Error() string {
	if s, ok := stdError[c]; ok {
		return s
	}
	return fmt.Sprintf("error code %d", c)
}

// String returns the same text as Error, so a Code can be used directly as a
// default error message without an extra call to Error.
func (c Code) String() string { return c.Error() }

// Pre-defined error codes, including the standard ones from the JSON-RPC
// specification and some specific to this implementation.
const (
	ParseError     Code = -32700 // Invalid JSON received by the server
	InvalidRequest Code = -32600 // The JSON sent is not a valid request object
	MethodNotFound Code = -32601 // The method does not exist or is unavailable
	InvalidParams  Code = -32602 // Invalid method parameters
	InternalError  Code = -32603 // Internal JSON-RPC error

	// The JSON-RPC 2.0 specification reserves the range -32000 to -32099 for
	// implementation-defined server errors. Within that range, KeywordError,
	// TimeoutError, and ServiceUnavailable have fixed wire values; the
	// remaining internal sentinels are assigned the slots that are left.

	// KeywordError is returned when a caller supplies keyed (object) params
	// to a method invoked under a protocol version that does not support
	// them (v1.0).
	KeywordError Code = -32099

	// TimeoutError is returned when a registered per-call deadline elapses
	// before a handler produces a result, or cancelPending is called.
	TimeoutError Code = -32098

	// ServiceUnavailable is returned for requests received, or still
	// pending, while the dispatcher is draining for shutdown.
	ServiceUnavailable Code = -32097

	NoError          Code = -32092 // Denotes a nil error; never sent on the wire
	SystemError      Code = -32091 // Errors from the operating environment
	Cancelled        Code = -32090 // Request cancelled
	DeadlineExceeded Code = -32089 // Request deadline exceeded

	// ServerError is the generic code reported for a handler panic or an
	// error value returned from a handler that does not carry its own Code.
	ServerError Code = -32000
)

var stdError = map[Code]string{
	ParseError:     "Parse error",
	InvalidRequest: "invalid request",
	MethodNotFound: "Method not found",
	InvalidParams:  "invalid parameters",
	InternalError:  "internal error",

	NoError:          "no error (success)",
	SystemError:      "system error",
	Cancelled:        "request cancelled",
	DeadlineExceeded: "deadline exceeded",

	KeywordError:       "keyword arguments not supported",
	TimeoutError:       "Server Timeout",
	ServiceUnavailable: "service unavailable",
	ServerError:        "server error",
}

// FromError categorizes an arbitrary error value as a Code.
//
//   - If err == nil, it returns NoError.
//   - If err is (or wraps) a value with an ErrCode() Code method, it returns
//     the reported code.
//   - If err is context.Canceled, it returns Cancelled.
//   - If err is context.DeadlineExceeded, it returns DeadlineExceeded.
//   - Otherwise it returns SystemError.
func FromError(err error) Code {
	if err == nil {
		return NoError
	}
	var c interface{ ErrCode() Code }
	if errors.As(err, &c) {
		return c.ErrCode()
	} else if errors.Is(err, context.DeadlineExceeded) {
		return DeadlineExceeded
	} else if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return SystemError
}

// Register adds a new Code value with the specified message string.  This
// function will panic if the proposed value is already registered.
func Register(value int32, message string) Code {
	code := Code(value)
	if s, ok := stdError[code]; ok {
		panic(fmt.Sprintf("code %d is already registered for %q", code, s))
	}
	stdError[code] = message
	return code
}
