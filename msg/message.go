package msg

import (
	"fmt"
	"sync/atomic"

	"gopkg.in/mgo.v2/bson"
)

var globalRequestID int32

// CurrentRequestID gets the current request id.
func CurrentRequestID() int32 {
	return atomic.AddInt32(&globalRequestID, 0)
}

// NextRequestID gets the next request id.
func NextRequestID() int32 {
	return atomic.AddInt32(&globalRequestID, 1)
}

type opcode uint32

const (
	replyOpcode      opcode = 1
	queryOpcode      opcode = 2004
	compressedOpcode opcode = 2012
	msgOpcode        opcode = 2013
)

// OpmsgWireVersion is the minimum wire version at which
// commands are sent as OP_MSG rather than OP_QUERY.
const OpmsgWireVersion = 6

// Message represents a MongoDB message.
type Message interface {
	msg()
}

// Request is a message sent to the server.
type Request interface {
	Message
	RequestID() int32
}

// Response is a message received from the server.
type Response interface {
	Message
	ResponseTo() int32
}

// CommandResponse is a response carrying a single command
// result document.
type CommandResponse interface {
	Response
	// CommandDocument unmarshals the command result document into result.
	CommandDocument(result interface{}) error
}

func (m *Query) msg() {}
func (m *Reply) msg() {}
func (m *Msg) msg()   {}

// MalformedError indicates that a message violated the framing rules or
// the declared lengths of its parts. It is never produced for a healthy
// peer; receiving one means the stream can no longer be trusted.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed message: " + e.Reason
}

func malformedf(format string, args ...interface{}) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// CommandNameOf reports the name of a command document, which is the name
// of its first element. Document shapes the driver itself produces are
// inspected directly; anything else is marshaled first.
func CommandNameOf(cmd interface{}) string {
	switch t := cmd.(type) {
	case bson.D:
		if len(t) > 0 {
			return t[0].Name
		}
	case *bson.D:
		if t != nil && len(*t) > 0 {
			return (*t)[0].Name
		}
	case bson.RawD:
		if len(t) > 0 {
			return t[0].Name
		}
	default:
		raw, err := bson.Marshal(cmd)
		if err != nil {
			return ""
		}
		var doc bson.RawD
		if bson.Unmarshal(raw, &doc) != nil {
			return ""
		}
		if len(doc) > 0 {
			return doc[0].Name
		}
	}
	return ""
}
