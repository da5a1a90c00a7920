package ops

import (
	"context"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/writeconcern"
)

// DeleteOptions are the options for the delete command.
type DeleteOptions struct {
	// Many removes every matching document instead of the first.
	Many bool
}

// Delete executes a delete command against the documents matching the
// filter.
func Delete(ctx context.Context, s *SelectedServer, ns Namespace, writeConcern *writeconcern.WriteConcern,
	filter interface{}, options DeleteOptions) (*DeleteResult, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	limit := 1
	if options.Many {
		limit = 0
	}

	deleteCommand := struct {
		Collection   string                     `bson:"delete"`
		Deletes      []deleteDoc                `bson:"deletes"`
		WriteConcern *writeconcern.WriteConcern `bson:"writeConcern,omitempty"`
	}{
		Collection: ns.Collection,
		Deletes: []deleteDoc{
			{Q: filter, Limit: limit},
		},
		WriteConcern: writeConcern,
	}

	var result DeleteResult

	err := runMustUsePrimary(ctx, s, ns.DB, deleteCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute delete")
	}

	return &result, nil
}

type deleteDoc struct {
	Q     interface{} `bson:"q"`
	Limit int         `bson:"limit"`
}
