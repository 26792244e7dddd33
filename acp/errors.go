package acp

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrConnClosed is returned when an operation is attempted on a closed
	// connection.
	ErrConnClosed = errors.New("connection closed")

	// ErrSessionNotFound is returned when a session ID is not known.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAuthRequired is returned when the client must authenticate first.
	ErrAuthRequired = errors.New("authentication required")
)

// RPCError represents a JSON-RPC error received from the peer.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ProtocolError represents a protocol-level error (e.g. malformed JSON on
// the wire).
type ProtocolError struct {
	Cause   error
	Message string
	Line    string
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}
