package ops

import (
	"context"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/writeconcern"
)

// UpdateOptions are the options for the update command.
type UpdateOptions struct {
	// Upsert inserts a new document when no document matches the
	// filter.
	Upsert bool
	// Multi applies the update to every matching document instead of
	// the first.
	Multi bool
}

// Update executes an update command against the documents matching the
// filter.
func Update(ctx context.Context, s *SelectedServer, ns Namespace, writeConcern *writeconcern.WriteConcern,
	filter interface{}, update interface{}, options UpdateOptions) (*UpdateResult, error) {

	if err := ns.validate(); err != nil {
		return nil, err
	}

	updateCommand := struct {
		Collection   string                     `bson:"update"`
		Updates      []updateDoc                `bson:"updates"`
		WriteConcern *writeconcern.WriteConcern `bson:"writeConcern,omitempty"`
	}{
		Collection: ns.Collection,
		Updates: []updateDoc{
			{
				Q:      filter,
				U:      update,
				Upsert: options.Upsert,
				Multi:  options.Multi,
			},
		},
		WriteConcern: writeConcern,
	}

	var result UpdateResult

	err := runMustUsePrimary(ctx, s, ns.DB, updateCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute update")
	}

	return &result, nil
}

type updateDoc struct {
	Q      interface{} `bson:"q"`
	U      interface{} `bson:"u"`
	Upsert bool        `bson:"upsert,omitempty"`
	Multi  bool        `bson:"multi,omitempty"`
}
