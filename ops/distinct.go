package ops

import (
	"context"
	"time"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/readconcern"
)

// DistinctOptions are the options for the distinct command.
type DistinctOptions struct {
	// The maximum execution time.  A zero value indicates no maximum.
	MaxTime time.Duration
}

// Distinct returns the distinct values of the field for documents
// matching the filter.
func Distinct(ctx context.Context, s *SelectedServer, ns Namespace, readConcern *readconcern.ReadConcern,
	field string, filter interface{}, options DistinctOptions) ([]interface{}, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	distinctCommand := struct {
		Collection  string                   `bson:"distinct"`
		Key         string                   `bson:"key"`
		Query       interface{}              `bson:"query,omitempty"`
		MaxTimeMS   int64                    `bson:"maxTimeMS,omitempty"`
		ReadConcern *readconcern.ReadConcern `bson:"readConcern,omitempty"`
	}{
		Collection:  ns.Collection,
		Key:         field,
		Query:       filter,
		MaxTimeMS:   int64(options.MaxTime / time.Millisecond),
		ReadConcern: readConcern,
	}

	var result struct {
		Values []interface{} `bson:"values"`
	}

	err := runMayUseSecondary(ctx, s, ns.DB, distinctCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute distinct")
	}

	return result.Values, nil
}
