package ops

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/msg"
)

// KillCursors kills one or more cursors on the given server.
func KillCursors(ctx context.Context, s Server, ns Namespace, cursorIDs []int64) error {
	killCursorsCommand := struct {
		Collection string  `bson:"killCursors"`
		Cursors    []int64 `bson:"cursors"`
	}{
		Collection: ns.Collection,
		Cursors:    cursorIDs,
	}

	request := msg.NewCommand(
		msg.NextRequestID(),
		ns.DB,
		false,
		killCursorsCommand,
	)

	connection, err := s.Connection(ctx)
	if err != nil {
		return err
	}
	defer connection.Close()

	return conn.ExecuteCommand(ctx, connection, request, &bson.D{})
}
