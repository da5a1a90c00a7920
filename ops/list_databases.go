package ops

import (
	"context"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/internal"
)

// ListDatabasesOptions are the options for listing databases.
type ListDatabasesOptions struct {
	// The maximum execution time.  A zero value indicates no maximum.
	MaxTime time.Duration
}

// ListDatabases lists the databases with the given options.
func ListDatabases(ctx context.Context, s *SelectedServer, options ListDatabasesOptions) (Cursor, error) {
	listDatabasesCommand := struct {
		ListDatabases int32 `bson:"listDatabases"`
		MaxTimeMS     int64 `bson:"maxTimeMS,omitempty"`
	}{
		ListDatabases: 1,
		MaxTimeMS:     int64(options.MaxTime / time.Millisecond),
	}

	var result struct {
		Databases []bson.Raw `bson:"databases"`
	}

	err := runMayUseSecondary(ctx, s, "admin", listDatabasesCommand, &result)
	if err != nil {
		return nil, internal.WrapError(err, "failed to execute listDatabases")
	}

	return &listDatabasesCursor{
		databases: result.Databases,
		current:   0,
	}, nil
}

// listDatabases returns its whole result in one reply, so the cursor
// never goes back to the server.
type listDatabasesCursor struct {
	databases []bson.Raw
	current   int
	err       error
}

func (cursor *listDatabasesCursor) Next(_ context.Context, result interface{}) bool {
	if cursor.current < len(cursor.databases) {
		err := bson.Unmarshal(cursor.databases[cursor.current].Data, result)
		if err != nil {
			cursor.err = err
			return false
		}
		cursor.current++
		return true
	}
	return false
}

func (cursor *listDatabasesCursor) Err() error {
	return cursor.err
}

func (cursor *listDatabasesCursor) Close(_ context.Context) error {
	return cursor.err
}
