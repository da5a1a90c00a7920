package ops

import (
	"context"
	"time"

	"github.com/mongowire/mongowire/internal"
)

// ListCollectionsOptions are the options for listing collections.
type ListCollectionsOptions struct {
	// A query filter for the collections.
	Filter interface{}
	// The batch size for fetching results. A zero value indicates the server's default batch size.
	BatchSize int32
	// The maximum execution time.  A zero value indicates no maximum.
	MaxTime time.Duration
}

// ListCollections lists the collections in the given database with the given options.
func ListCollections(ctx context.Context, s *SelectedServer, db string, options ListCollectionsOptions) (Cursor, error) {
	if err := validateDB(db); err != nil {
		return nil, err
	}

	listCollectionsCommand := struct {
		ListCollections int32          `bson:"listCollections"`
		Filter          interface{}    `bson:"filter,omitempty"`
		MaxTimeMS       int64          `bson:"maxTimeMS,omitempty"`
		Cursor          *cursorRequest `bson:"cursor"`
	}{
		ListCollections: 1,
		Filter:          options.Filter,
		MaxTimeMS:       int64(options.MaxTime / time.Millisecond),
		Cursor: &cursorRequest{
			BatchSize: options.BatchSize,
		},
	}

	var result cursorReturningResult

	err := runMayUseSecondary(ctx, s, db, listCollectionsCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute listCollections")
	}

	return NewCursor(&result.Cursor, options.BatchSize, s.Server)
}
