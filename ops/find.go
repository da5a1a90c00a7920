package ops

import (
	"context"
	"time"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/readconcern"
)

// FindOptions are the options for the find command.
type FindOptions struct {
	// Sort specifies the order in which to return results.
	Sort interface{}
	// Projection limits the fields returned for matching documents.
	Projection interface{}
	// Skip is the number of documents to skip before returning.
	Skip int64
	// Limit is the maximum number of documents to return. A zero
	// value indicates no limit.
	Limit int64
	// The batch size for fetching results. A zero value indicates the server's default batch size.
	BatchSize int32
	// The maximum execution time.  A zero value indicates no maximum.
	MaxTime time.Duration
}

// Find executes a query with the given filter and options.
func Find(ctx context.Context, s *SelectedServer, ns Namespace, readConcern *readconcern.ReadConcern,
	filter interface{}, options FindOptions) (Cursor, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	findCommand := struct {
		Collection  string                   `bson:"find"`
		Filter      interface{}              `bson:"filter,omitempty"`
		Sort        interface{}              `bson:"sort,omitempty"`
		Projection  interface{}              `bson:"projection,omitempty"`
		Skip        int64                    `bson:"skip,omitempty"`
		Limit       int64                    `bson:"limit,omitempty"`
		SingleBatch bool                     `bson:"singleBatch,omitempty"`
		BatchSize   int32                    `bson:"batchSize,omitempty"`
		MaxTimeMS   int64                    `bson:"maxTimeMS,omitempty"`
		ReadConcern *readconcern.ReadConcern `bson:"readConcern,omitempty"`
	}{
		Collection:  ns.Collection,
		Filter:      filter,
		Sort:        options.Sort,
		Projection:  options.Projection,
		Skip:        options.Skip,
		Limit:       options.Limit,
		BatchSize:   options.BatchSize,
		MaxTimeMS:   int64(options.MaxTime / time.Millisecond),
		ReadConcern: readConcern,
	}

	// the whole result fits in the first reply, so no server-side
	// cursor needs to outlive it
	if options.Limit != 0 && options.BatchSize != 0 && options.Limit <= int64(options.BatchSize) {
		findCommand.SingleBatch = true
	}

	var result cursorReturningResult

	err := runMayUseSecondary(ctx, s, ns.DB, findCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute find")
	}

	return NewCursor(&result.Cursor, options.BatchSize, s.Server)
}

// FindOne executes a query for a single document. A false result with
// a nil error means nothing matched.
func FindOne(ctx context.Context, s *SelectedServer, ns Namespace, readConcern *readconcern.ReadConcern,
	filter interface{}, result interface{}) (bool, error) {

	cursor, err := Find(ctx, s, ns, readConcern, filter, FindOptions{Limit: 1, BatchSize: 1})
	if err != nil {
		return false, err
	}

	found := cursor.Next(ctx, result)
	if err = cursor.Close(ctx); err != nil {
		return false, err
	}

	return found, nil
}
