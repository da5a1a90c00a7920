package ops

import (
	"context"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/writeconcern"
)

// InsertOptions are the options for the insert command.
type InsertOptions struct {
	// Ordered indicates whether the server should stop applying
	// documents at the first failure. The default is true.
	Ordered *bool
}

// Insert executes an insert command for the given set of documents.
func Insert(ctx context.Context, s *SelectedServer, ns Namespace, writeConcern *writeconcern.WriteConcern,
	docs []interface{}, options InsertOptions) (*InsertResult, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	insertCommand := struct {
		Collection   string                     `bson:"insert"`
		Documents    []interface{}              `bson:"documents"`
		Ordered      *bool                      `bson:"ordered,omitempty"`
		WriteConcern *writeconcern.WriteConcern `bson:"writeConcern,omitempty"`
	}{
		Collection:   ns.Collection,
		Documents:    docs,
		Ordered:      options.Ordered,
		WriteConcern: writeConcern,
	}

	var result InsertResult

	err := runMustUsePrimary(ctx, s, ns.DB, insertCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute insert")
	}

	return &result, nil
}
