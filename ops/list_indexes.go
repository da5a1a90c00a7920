package ops

import (
	"context"

	"github.com/mongowire/mongowire/internal"
)

// ListIndexesOptions are the options for listing indexes.
type ListIndexesOptions struct {
	// The batch size for fetching results. A zero value indicates the server's default batch size.
	BatchSize int32
}

// ListIndexes lists the indexes on the given namespace.
func ListIndexes(ctx context.Context, s *SelectedServer, ns Namespace, options ListIndexesOptions) (Cursor, error) {
	if err := ns.validate(); err != nil {
		return nil, err
	}

	listIndexesCommand := struct {
		ListIndexes string `bson:"listIndexes"`
	}{
		ListIndexes: ns.Collection,
	}

	var result cursorReturningResult

	err := runMayUseSecondary(ctx, s, ns.DB, listIndexesCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute listIndexes")
	}

	return NewCursor(&result.Cursor, options.BatchSize, s.Server)
}
