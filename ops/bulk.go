package ops

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/writeconcern"
)

// ErrEmptyBulk occurs when a bulk operation is executed with no
// queued operations.
var ErrEmptyBulk = errors.New("bulk operation is empty")

// default limits used when the server did not advertise its own
const (
	defaultMaxBatchCount   = 1000
	defaultMaxDocumentSize = 16 * 1000 * 1000
	defaultMaxMessageSize  = 48 * 1000 * 1000
)

type bulkOpKind int

const (
	bulkInsert bulkOpKind = iota
	bulkUpdate
	bulkDelete
)

func (k bulkOpKind) String() string {
	switch k {
	case bulkInsert:
		return "insert"
	case bulkUpdate:
		return "update"
	case bulkDelete:
		return "delete"
	}
	return "unknown"
}

type bulkOp struct {
	kind     bulkOpKind
	document interface{} // insert
	update   updateDoc   // update
	delete   deleteDoc   // delete
}

// Bulk accumulates a mixed sequence of write operations and executes
// them in as few write commands as the server's advertised limits
// allow. Operations keep the index at which they were queued; write
// errors are reported against that index.
type Bulk struct {
	ns      Namespace
	ordered bool
	ops     []bulkOp
}

// NewBulk returns an empty bulk operation against the given namespace.
// When ordered is true, execution stops at the first write error and
// operations queued after the failed one are not attempted.
func NewBulk(ns Namespace, ordered bool) *Bulk {
	return &Bulk{
		ns:      ns,
		ordered: ordered,
	}
}

// Insert queues a document insert.
func (b *Bulk) Insert(doc interface{}) {
	b.ops = append(b.ops, bulkOp{kind: bulkInsert, document: doc})
}

// Update queues an update of every document matching the filter.
func (b *Bulk) Update(filter, update interface{}) {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdate, update: updateDoc{Q: filter, U: update, Multi: true}})
}

// UpdateOne queues an update of the first document matching the filter.
func (b *Bulk) UpdateOne(filter, update interface{}) {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdate, update: updateDoc{Q: filter, U: update}})
}

// Replace queues a replacement of the first document matching the
// filter with the given document.
func (b *Bulk) Replace(filter, replacement interface{}) {
	b.ops = append(b.ops, bulkOp{kind: bulkUpdate, update: updateDoc{Q: filter, U: replacement}})
}

// Upsert marks the most recently queued update or replace as an
// upsert.
func (b *Bulk) Upsert() {
	if len(b.ops) == 0 {
		return
	}
	last := &b.ops[len(b.ops)-1]
	if last.kind == bulkUpdate {
		last.update.Upsert = true
	}
}

// Delete queues a delete of every document matching the filter.
func (b *Bulk) Delete(filter interface{}) {
	b.ops = append(b.ops, bulkOp{kind: bulkDelete, delete: deleteDoc{Q: filter, Limit: 0}})
}

// DeleteOne queues a delete of the first document matching the filter.
func (b *Bulk) DeleteOne(filter interface{}) {
	b.ops = append(b.ops, bulkOp{kind: bulkDelete, delete: deleteDoc{Q: filter, Limit: 1}})
}

// BulkResult is the combined result of every batch a bulk operation
// executed. WriteErrors index into the sequence of queued operations.
type BulkResult struct {
	InsertedCount     int64
	MatchedCount      int64
	ModifiedCount     int64
	DeletedCount      int64
	UpsertedCount     int64
	UpsertedIDs       map[int64]interface{}
	WriteErrors       []WriteError
	WriteConcernError *WriteConcernError
}

// Execute runs the queued operations against the selected server.
// Contiguous operations of the same kind are sent together, split into
// batches honoring the server's maxWriteBatchSize, maxBsonObjectSize,
// and maxMessageSizeBytes. A server-reported write error does not make
// Execute fail; it is recorded in the result. Execute fails only when a
// batch could not be executed at all.
func (b *Bulk) Execute(ctx context.Context, s *SelectedServer, writeConcern *writeconcern.WriteConcern) (*BulkResult, error) {
	if err := b.ns.validate(); err != nil {
		return nil, err
	}
	if len(b.ops) == 0 {
		return nil, ErrEmptyBulk
	}

	maxBatchCount, maxDocumentSize, maxMessageSize := b.limits(s)

	result := &BulkResult{
		UpsertedIDs: make(map[int64]interface{}),
	}

	for _, run := range b.runs() {
		stop, err := b.executeRun(ctx, s, writeConcern, run, maxBatchCount, maxDocumentSize, maxMessageSize, result)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}

	return result, nil
}

func (b *Bulk) limits(s *SelectedServer) (int, int, int) {
	maxBatchCount := defaultMaxBatchCount
	maxDocumentSize := defaultMaxDocumentSize
	maxMessageSize := defaultMaxMessageSize

	if m := s.Model(); m != nil {
		if m.MaxBatchCount != 0 {
			maxBatchCount = int(m.MaxBatchCount)
		}
		if m.MaxDocumentSize != 0 {
			maxDocumentSize = int(m.MaxDocumentSize)
		}
		if m.MaxMessageSize != 0 {
			maxMessageSize = int(m.MaxMessageSize)
		}
	}

	return maxBatchCount, maxDocumentSize, maxMessageSize
}

type bulkRun struct {
	kind  bulkOpKind
	start int
	ops   []bulkOp
}

// runs groups contiguous operations of the same kind, preserving the
// order in which they were queued.
func (b *Bulk) runs() []bulkRun {
	var runs []bulkRun
	for i, op := range b.ops {
		if len(runs) == 0 || runs[len(runs)-1].kind != op.kind {
			runs = append(runs, bulkRun{kind: op.kind, start: i})
		}
		last := &runs[len(runs)-1]
		last.ops = append(last.ops, op)
	}
	return runs
}

// executeRun sends one run as one or more write commands. It reports
// whether execution of the remaining runs should stop.
func (b *Bulk) executeRun(ctx context.Context, s *SelectedServer, writeConcern *writeconcern.WriteConcern,
	run bulkRun, maxBatchCount, maxDocumentSize, maxMessageSize int, result *BulkResult) (bool, error) {

	batchStart := 0
	batchBytes := 0

	flush := func(end int) (bool, error) {
		if end == batchStart {
			return false, nil
		}
		res, err := b.executeBatch(ctx, s, writeConcern, run.kind, run.ops[batchStart:end])
		if err != nil {
			return false, internal.WrapErrorf(err, "failed to execute %s batch", run.kind)
		}

		b.mergeBatchResult(result, run.kind, res, run.start+batchStart)

		batchStart = end
		batchBytes = 0

		if b.ordered && len(res.WriteErrors) > 0 {
			return true, nil
		}
		return false, nil
	}

	for i, op := range run.ops {
		size, err := op.size()
		if err != nil {
			return false, err
		}
		if size > maxDocumentSize {
			return false, fmt.Errorf("operation at index %d exceeds the maximum document size (%d > %d)",
				run.start+i, size, maxDocumentSize)
		}

		if i-batchStart >= maxBatchCount || (batchBytes > 0 && batchBytes+size > maxMessageSize) {
			stop, err := flush(i)
			if err != nil || stop {
				return stop, err
			}
		}

		batchBytes += size
	}

	return flush(len(run.ops))
}

// size is the marshaled size of the batch entry this operation
// contributes.
func (op *bulkOp) size() (int, error) {
	var entry interface{}
	switch op.kind {
	case bulkInsert:
		entry = op.document
	case bulkUpdate:
		entry = op.update
	case bulkDelete:
		entry = op.delete
	}

	raw, err := bson.Marshal(entry)
	if err != nil {
		return 0, internal.WrapError(err, "failed to marshal bulk operation")
	}
	return len(raw), nil
}

type bulkCommandResult struct {
	N                 int                `bson:"n"`
	NModified         int                `bson:"nModified"`
	Upserted          []Upsert           `bson:"upserted"`
	WriteErrors       []WriteError       `bson:"writeErrors"`
	WriteConcernError *WriteConcernError `bson:"writeConcernError"`
}

func (b *Bulk) executeBatch(ctx context.Context, s *SelectedServer, writeConcern *writeconcern.WriteConcern,
	kind bulkOpKind, batch []bulkOp) (*bulkCommandResult, error) {

	var command interface{}

	switch kind {
	case bulkInsert:
		docs := make([]interface{}, 0, len(batch))
		for _, op := range batch {
			docs = append(docs, op.document)
		}
		command = struct {
			Collection   string                     `bson:"insert"`
			Documents    []interface{}              `bson:"documents"`
			Ordered      bool                       `bson:"ordered"`
			WriteConcern *writeconcern.WriteConcern `bson:"writeConcern,omitempty"`
		}{b.ns.Collection, docs, b.ordered, writeConcern}
	case bulkUpdate:
		updates := make([]updateDoc, 0, len(batch))
		for _, op := range batch {
			updates = append(updates, op.update)
		}
		command = struct {
			Collection   string                     `bson:"update"`
			Updates      []updateDoc                `bson:"updates"`
			Ordered      bool                       `bson:"ordered"`
			WriteConcern *writeconcern.WriteConcern `bson:"writeConcern,omitempty"`
		}{b.ns.Collection, updates, b.ordered, writeConcern}
	case bulkDelete:
		deletes := make([]deleteDoc, 0, len(batch))
		for _, op := range batch {
			deletes = append(deletes, op.delete)
		}
		command = struct {
			Collection   string                     `bson:"delete"`
			Deletes      []deleteDoc                `bson:"deletes"`
			Ordered      bool                       `bson:"ordered"`
			WriteConcern *writeconcern.WriteConcern `bson:"writeConcern,omitempty"`
		}{b.ns.Collection, deletes, b.ordered, writeConcern}
	}

	var result bulkCommandResult
	if err := runMustUsePrimary(ctx, s, b.ns.DB, command, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// mergeBatchResult folds one batch's result into the combined result,
// shifting batch-relative indexes back to the caller's queue order.
func (b *Bulk) mergeBatchResult(result *BulkResult, kind bulkOpKind, res *bulkCommandResult, offset int) {
	switch kind {
	case bulkInsert:
		result.InsertedCount += int64(res.N)
	case bulkUpdate:
		result.MatchedCount += int64(res.N - len(res.Upserted))
		result.ModifiedCount += int64(res.NModified)
		result.UpsertedCount += int64(len(res.Upserted))
		for _, upsert := range res.Upserted {
			result.UpsertedIDs[int64(offset+upsert.Index)] = upsert.ID
		}
	case bulkDelete:
		result.DeletedCount += int64(res.N)
	}

	for _, we := range res.WriteErrors {
		we.Index += offset
		result.WriteErrors = append(result.WriteErrors, we)
	}

	if res.WriteConcernError != nil {
		result.WriteConcernError = res.WriteConcernError
	}
}
