// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package jrpc2

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/txrpc/jrpc2/code"
)

// Error is the concrete type of errors returned from RPC calls.
// It also represents the JSON encoding of the JSON-RPC error object.
//
// For the v1.0 wire profile, a server may report a plain string in place of
// a structured error object; the message encoder renders that shape from
// the Message field alone.
type Error struct {
	Code    code.Code       `json:"code"`              // the machine-readable error code
	Message string          `json:"message,omitempty"` // the human-readable error message
	Data    json.RawMessage `json:"data,omitempty"`    // optional ancillary error data
}

// Error returns a human-readable description of e.
func (e Error) Error() string { return fmt.Sprintf("[%d] %s", e.Code, e.Message) }

// ErrCode reports the code of e; code.FromError consults this method.
func (e Error) ErrCode() code.Code { return e.Code }

// WithData marshals v as JSON and constructs a copy of e whose Data field
// includes the result. If v == nil or if marshaling v fails, e is returned
// without modification.
func (e *Error) WithData(v any) *Error {
	if v == nil {
		return e
	} else if data, err := json.Marshal(v); err == nil {
		return &Error{Code: e.Code, Message: e.Message, Data: data}
	}
	return e
}

// errServerStopped is returned by Server.Wait when the server was shut down by
// an explicit call to its Stop method or orderly termination of its channel.
var errServerStopped = errors.New("the server has been stopped")

// errClientStopped is the error reported when a client is shut down by an
// explicit call to its Close method.
var errClientStopped = errors.New("the client has been stopped")

// errEmptyMethod is the error reported for an empty request method name.
var errEmptyMethod = &Error{Code: code.InvalidRequest, Message: "empty method name"}

// errNoSuchMethod is the error reported for an unknown method name.
var errNoSuchMethod = &Error{Code: code.MethodNotFound, Message: code.MethodNotFound.String()}

// errDuplicateID is the error reported for a duplicated request ID.
var errDuplicateID = &Error{Code: code.InvalidRequest, Message: "duplicate request ID"}

// errInvalidRequest is the error reported for a message that is not valid JSON.
var errInvalidRequest = &Error{Code: code.ParseError, Message: "invalid request value"}

// errEmptyBatch is the error reported for an empty request batch.
var errEmptyBatch = &Error{Code: code.InvalidRequest, Message: "empty request batch"}

// errInvalidParams is the error reported for invalid request parameters.
var errInvalidParams = &Error{Code: code.InvalidParams, Message: code.InvalidParams.String()}

// errTaskNotExecuted is the internal sentinel error for an unassigned task.
var errTaskNotExecuted = new(Error)

// errNotEnoughArgs and errTooManyArgs are reported when a registered method's
// declared positional arity does not match the supplied parameter count.
var errNotEnoughArgs = &Error{Code: code.InvalidParams, Message: "not enough arguments"}
var errTooManyArgs = &Error{Code: code.InvalidParams, Message: "too many arguments"}

// errKeywordsUnsupported is reported when a caller supplies keyed parameters
// under a protocol version (v1.0) that does not permit them.
var errKeywordsUnsupported = &Error{Code: code.KeywordError, Message: code.KeywordError.String()}

// errMissingRequired is reported when a keyed parameter object omits one of
// a method's declared required keys.
var errMissingRequired = &Error{Code: code.InvalidParams, Message: "missing required parameter"}

// errDraining is returned for requests submitted or still pending while the
// server is draining for a graceful shutdown. A server may substitute a
// different code via StopServing.
var errDraining = &Error{Code: code.ServiceUnavailable, Message: code.ServiceUnavailable.String()}

// ErrConnClosed is returned by a server's push-to-client methods if they are
// called after the client connection is closed.
var ErrConnClosed = errors.New("client connection is closed")

// A ProtocolError describes an inbound message that is not a well-formed
// JSON-RPC response (missing version marker, missing id on a
// non-notification message, and similar structural failures). It is
// distinguished from a ClientError, which reports a response whose
// structure is sound but whose id does not correspond to any call the
// client is waiting for.
//
// The Client does not return ProtocolError values. A reply that is not valid
// JSON closes the client, and its pending calls fail with an *Error of code
// InternalError; a reply that fails validation is delivered to the call with
// its id as an *Error describing the failure. The Client does not check that
// a reply carries a version marker.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }

// A ClientError reports a structurally valid response that the Client
// Correlator could not match to a pending call (such responses are logged
// and discarded), or a request for which no unused request ID is available.
type ClientError struct {
	ID     string
	Reason string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: %s (id=%s)", e.Reason, e.ID)
}

// Errorf returns an error value of concrete type *Error having the specified
// code and formatted message string.
func Errorf(c code.Code, msg string, args ...any) *Error {
	return &Error{Code: c, Message: fmt.Sprintf(msg, args...)}
}
