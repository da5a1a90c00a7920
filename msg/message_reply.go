package msg

import "gopkg.in/mgo.v2/bson"

// Reply is a legacy OP_REPLY message received from the server.
type Reply struct {
	ReqID          int32
	RespTo         int32
	ResponseFlags  ReplyFlags
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	DocumentsBytes []byte
}

// ResponseTo gets the request id the message was in response to.
func (m *Reply) ResponseTo() int32 { return m.RespTo }

// CommandDocument unmarshals the first returned document into result.
func (m *Reply) CommandDocument(result interface{}) error {
	ok, err := m.Iter().One(result)
	if err != nil {
		return err
	}
	if !ok {
		return &MalformedError{Reason: "command reply has no documents"}
	}
	return nil
}

// ReplyFlags are the flags in a Reply.
type ReplyFlags int32

// ReplyFlags constants.
const (
	CursorNotFound ReplyFlags = 1 << iota
	QueryFailure
	_
	AwaitCapable
)

// Iter returns a ReplyIter to iterate over each document
// returned by the server.
func (m *Reply) Iter() *ReplyIter {
	return &ReplyIter{
		documentsBytes: m.DocumentsBytes,
	}
}

// ReplyIter iterates over the documents returned
// in a Reply.
type ReplyIter struct {
	documentsBytes []byte
	pos            int

	err error
}

// One reads a single document from the iterator.
func (i *ReplyIter) One(result interface{}) (bool, error) {
	if !i.Next(result) {
		return false, i.err
	}

	return true, nil
}

// Next unmarshals the next document into the provided result and returns
// a value indicating whether or not it was successful.
func (i *ReplyIter) Next(result interface{}) bool {
	if i.pos >= len(i.documentsBytes) {
		return false
	}
	n, err := partitionDocument(i.documentsBytes[i.pos:])
	if err != nil {
		i.err = err
		return false
	}

	err = bson.Unmarshal(i.documentsBytes[i.pos:i.pos+n], result)
	if err != nil {
		i.err = err
		return false
	}

	i.pos += n
	return true
}

// Err indicates if there was an error unmarshalling the last document
// attempted.
func (i *ReplyIter) Err() error {
	return i.err
}
