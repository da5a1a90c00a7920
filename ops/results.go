package ops

import (
	"fmt"

	"gopkg.in/mgo.v2/bson"
)

// CursorResult describes the initial results of a cursor.
type CursorResult interface {
	// Namespace the cursor is in.
	Namespace() Namespace
	// InitialBatch is the first batch of results, which may be empty.
	InitialBatch() []bson.Raw
	// CursorID is the cursor id, which may be zero if no cursor was established.
	CursorID() int64
}

type cursorRequest struct {
	BatchSize int32 `bson:"batchSize,omitempty"`
}

// The result of a command that returns a cursor.
type cursorReturningResult struct {
	Cursor firstBatchCursorResult `bson:"cursor"`
}

// The first batch of a cursor.
type firstBatchCursorResult struct {
	FirstBatch []bson.Raw `bson:"firstBatch"`
	NS         string     `bson:"ns"`
	ID         int64      `bson:"id"`
}

func (cursorResult *firstBatchCursorResult) Namespace() Namespace {
	return ParseNamespace(cursorResult.NS)
}

func (cursorResult *firstBatchCursorResult) InitialBatch() []bson.Raw {
	return cursorResult.FirstBatch
}

func (cursorResult *firstBatchCursorResult) CursorID() int64 {
	return cursorResult.ID
}

// WriteError is an error that occurred while applying one operation of
// a write command. Index identifies the failed operation by its
// position in the command the caller issued.
type WriteError struct {
	Index  int    `bson:"index"`
	Code   int32  `bson:"code"`
	ErrMsg string `bson:"errmsg"`
}

func (we WriteError) Error() string {
	return fmt.Sprintf("write error at index %d (%d): %s", we.Index, we.Code, we.ErrMsg)
}

// WriteConcernError is a failure to satisfy the requested write
// concern. The write itself may have been applied.
type WriteConcernError struct {
	Code   int32  `bson:"code"`
	ErrMsg string `bson:"errmsg"`
}

func (wce *WriteConcernError) Error() string {
	return fmt.Sprintf("write concern error (%d): %s", wce.Code, wce.ErrMsg)
}

// InsertResult is the result of an insert command.
type InsertResult struct {
	N                 int                `bson:"n"`
	WriteErrors       []WriteError       `bson:"writeErrors"`
	WriteConcernError *WriteConcernError `bson:"writeConcernError"`
}

// UpdateResult is the result of an update command.
type UpdateResult struct {
	N                 int                `bson:"n"`
	NModified         int                `bson:"nModified"`
	Upserted          []Upsert           `bson:"upserted"`
	WriteErrors       []WriteError       `bson:"writeErrors"`
	WriteConcernError *WriteConcernError `bson:"writeConcernError"`
}

// Upsert identifies the document inserted on behalf of an update that
// matched nothing.
type Upsert struct {
	Index int         `bson:"index"`
	ID    interface{} `bson:"_id"`
}

// DeleteResult is the result of a delete command.
type DeleteResult struct {
	N                 int                `bson:"n"`
	WriteErrors       []WriteError       `bson:"writeErrors"`
	WriteConcernError *WriteConcernError `bson:"writeConcernError"`
}
