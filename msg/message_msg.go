package msg

import "gopkg.in/mgo.v2/bson"

// Msg is an OP_MSG message. It is used both for requests and, when
// decoded off the wire, for responses.
type Msg struct {
	ReqID    int32
	RespTo   int32
	FlagBits MsgFlags

	// Request side. Database and Command form the kind-0 body section;
	// $db and the Meta fields are folded into the body during encoding.
	Database  string
	Command   interface{}
	Meta      map[string]interface{}
	Sequences []DocumentSequence

	// Response side: the raw kind-0 body document.
	BodyBytes []byte
}

// MsgFlags are the flags in an OP_MSG.
type MsgFlags uint32

// MsgFlags constants.
const (
	ChecksumPresent MsgFlags = 1 << iota
	MoreToCome

	ExhaustAllowed MsgFlags = 1 << 16
)

// requiredFlags are the flag bits a receiver must understand.
// Unknown bits in this range make the message undecodable.
const requiredFlagsMask = MsgFlags(1<<16 - 1)
const knownRequiredFlags = ChecksumPresent | MoreToCome

// DocumentSequence is a kind-1 section: zero or more documents
// belonging to the named field of the command.
type DocumentSequence struct {
	Identifier string
	// Documents holds the concatenated BSON documents.
	Documents []byte
}

// NewMsg creates a new OP_MSG command request.
func NewMsg(requestID int32, dbName string, cmd interface{}) *Msg {
	return &Msg{
		ReqID:    requestID,
		Database: dbName,
		Command:  cmd,
	}
}

// RequestID gets the request id of the message.
func (m *Msg) RequestID() int32 { return m.ReqID }

// ResponseTo gets the request id the message was in response to.
func (m *Msg) ResponseTo() int32 { return m.RespTo }

// CommandDocument unmarshals the body section into result.
func (m *Msg) CommandDocument(result interface{}) error {
	if len(m.BodyBytes) == 0 {
		return &MalformedError{Reason: "OP_MSG has no body section"}
	}
	return bson.Unmarshal(m.BodyBytes, result)
}
