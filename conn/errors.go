package conn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mongowire/mongowire/internal"
)

var (
	// ErrUnknownCommandFailure occurs when a command fails for an unknown reason.
	ErrUnknownCommandFailure = errors.New("unknown command failure")
	// ErrNoCommandResponse occurs when the server sent no response document to a command.
	ErrNoCommandResponse = errors.New("no command response document")
	// ErrMultiDocCommandResponse occurs when the server sent multiple documents in response to a command.
	ErrMultiDocCommandResponse = errors.New("command returned multiple documents")
	// ErrNoDocCommandResponse occurs when the server indicated a response existed, but none was found.
	ErrNoDocCommandResponse = errors.New("command returned no documents")
)

// NetworkError is a failure of the underlying transport: a dial failure,
// a read or write fault, or a deadline hit while bytes were in flight.
// The connection it occurred on is no longer usable.
type NetworkError struct {
	ConnectionID string

	message string
	inner   error
}

func (e *NetworkError) Message() string {
	return e.message
}

func (e *NetworkError) Error() string {
	return internal.RolledUpErrorMessage(e)
}

// Inner gets the inner error if one exists.
func (e *NetworkError) Inner() error {
	return e.inner
}

// ProtocolError is a violation of the wire format by the peer: a
// malformed frame or a response correlated to a request that was never
// sent. The stream cannot be resynchronized and the connection is dead.
type ProtocolError struct {
	ConnectionID string

	message string
	inner   error
}

func (e *ProtocolError) Message() string {
	return e.message
}

func (e *ProtocolError) Error() string {
	return internal.RolledUpErrorMessage(e)
}

// Inner gets the inner error if one exists.
func (e *ProtocolError) Inner() error {
	return e.inner
}

// WriteFailureError wraps an error raised while a request was still
// being sent. The server never saw the request, so reissuing it cannot
// apply it twice.
type WriteFailureError struct {
	message string
	inner   error
}

func (e *WriteFailureError) Message() string {
	return e.message
}

func (e *WriteFailureError) Error() string {
	return internal.RolledUpErrorMessage(e)
}

// Inner gets the inner error if one exists.
func (e *WriteFailureError) Inner() error {
	return e.inner
}

// IsWriteFailure indicates whether err, anywhere along its wrapping
// chain, occurred while sending a request.
func IsWriteFailure(err error) bool {
	for err != nil {
		if _, ok := err.(*WriteFailureError); ok {
			return true
		}
		wrapped, ok := err.(internal.WrappedError)
		if !ok {
			break
		}
		err = wrapped.Inner()
	}
	return false
}

// IsNetworkError indicates whether err, anywhere along its wrapping
// chain, is a NetworkError.
func IsNetworkError(err error) bool {
	for err != nil {
		if _, ok := err.(*NetworkError); ok {
			return true
		}
		wrapped, ok := err.(internal.WrappedError)
		if !ok {
			break
		}
		err = wrapped.Inner()
	}
	return false
}

// IsProtocolError indicates whether err, anywhere along its wrapping
// chain, is a ProtocolError.
func IsProtocolError(err error) bool {
	for err != nil {
		if _, ok := err.(*ProtocolError); ok {
			return true
		}
		wrapped, ok := err.(internal.WrappedError)
		if !ok {
			break
		}
		err = wrapped.Inner()
	}
	return false
}

// CommandFailureError is an error with a failure response as a document.
type CommandFailureError struct {
	Msg      string
	Response interface{}
}

func (e *CommandFailureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Msg, e.Response)
}

// Message retrieves the message of the error.
func (e *CommandFailureError) Message() string {
	return e.Msg
}

// CommandResponseError is an error in the response to a command.
type CommandResponseError struct {
	Message string
}

// NewCommandResponseError creates a new CommandResponseError.
func NewCommandResponseError(msg string) *CommandResponseError {
	return &CommandResponseError{msg}
}

func (e *CommandResponseError) Error() string {
	return e.Message
}

// CommandError is an error reported by the server in the execution
// of a command.
type CommandError struct {
	Code    int32
	Message string
	Name    string
}

func (e *CommandError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("(%v) %v", e.Name, e.Message)
	}
	return e.Message
}

// IsNsNotFound indicates whether the error is a namespace-not-found
// command error.
func IsNsNotFound(err error) bool {
	e, ok := err.(*CommandError)
	return ok && (e.Code == 26)
}

// IsCommandNotFound indicates whether the error means the server does
// not implement the command.
func IsCommandNotFound(err error) bool {
	e, ok := err.(*CommandError)
	return ok && (e.Code == 59 || e.Code == 13390 || strings.HasPrefix(e.Message, "no such cmd:"))
}

// IsNotPrimary indicates whether the error is the server's report that
// it is no longer the primary the request took it for.
func IsNotPrimary(err error) bool {
	e, ok := err.(*CommandError)
	if !ok {
		return false
	}
	switch e.Code {
	case 10058, 10107, 13435: // LegacyNotPrimary, NotMaster, NotMasterNoSlaveOk
		return true
	}
	return e.Code == 0 && strings.Contains(e.Message, "not master")
}

// IsRecovering indicates whether the error is the server's report that
// it is shutting down or catching up on replication and cannot serve
// requests.
func IsRecovering(err error) bool {
	e, ok := err.(*CommandError)
	if !ok {
		return false
	}
	switch e.Code {
	// InterruptedAtShutdown, InterruptedDueToReplStateChange,
	// NotMasterOrSecondary, PrimarySteppedDown, ShutdownInProgress
	case 11600, 11602, 13436, 189, 91:
		return true
	}
	return e.Code == 0 && strings.Contains(e.Message, "node is recovering")
}

// IsStateChangeError indicates whether err, anywhere along its wrapping
// chain, reports a replica state change. The topology view that routed
// the request is stale and must be refreshed before the server is used
// again.
func IsStateChangeError(err error) bool {
	for err != nil {
		if IsNotPrimary(err) || IsRecovering(err) {
			return true
		}
		wrapped, ok := err.(internal.WrappedError)
		if !ok {
			break
		}
		err = wrapped.Inner()
	}
	return false
}
