package ops

import (
	"context"
	"time"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/readconcern"
)

// CountOptions are the options for the count command.
type CountOptions struct {
	// The number of documents to skip before counting.
	Skip int64
	// The maximum number of documents to count. A zero value
	// indicates no limit.
	Limit int64
	// The maximum execution time.  A zero value indicates no maximum.
	MaxTime time.Duration
}

// Count executes the count command with the given filter.
func Count(ctx context.Context, s *SelectedServer, ns Namespace, readConcern *readconcern.ReadConcern,
	filter interface{}, options CountOptions) (int64, error) {

	if err := ns.validate(); err != nil {
		return 0, err
	}

	countCommand := struct {
		Collection  string                   `bson:"count"`
		Query       interface{}              `bson:"query,omitempty"`
		Skip        int64                    `bson:"skip,omitempty"`
		Limit       int64                    `bson:"limit,omitempty"`
		MaxTimeMS   int64                    `bson:"maxTimeMS,omitempty"`
		ReadConcern *readconcern.ReadConcern `bson:"readConcern,omitempty"`
	}{
		Collection:  ns.Collection,
		Query:       filter,
		Skip:        options.Skip,
		Limit:       options.Limit,
		MaxTimeMS:   int64(options.MaxTime / time.Millisecond),
		ReadConcern: readConcern,
	}

	var result struct {
		N int64 `bson:"n"`
	}

	err := runMayUseSecondary(ctx, s, ns.DB, countCommand, &result)
	if err != nil {
		return 0, internal.WrapError(err, "failed to execute count")
	}

	return result.N, nil
}
