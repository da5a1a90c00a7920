package ops_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/internal/msgtest"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/msg"
	. "github.com/mongowire/mongowire/ops"
)

// commandServer hands out connections that answer command requests
// from a scripted reply queue and record everything sent.
type commandServer struct {
	kind    model.ServerKind
	desc    *model.Server
	replies []*msg.Reply
	sent    []msg.Request
	connErr error
	dials   int
}

func (s *commandServer) Connection(ctx context.Context) (conn.Connection, error) {
	if s.connErr != nil {
		return nil, s.connErr
	}
	s.dials++
	return &commandConn{server: s}, nil
}

func (s *commandServer) Model() *model.Server {
	if s.desc != nil {
		return s.desc
	}
	return &model.Server{Kind: s.kind}
}

func (s *commandServer) queue(docs ...bson.D) {
	for _, doc := range docs {
		s.replies = append(s.replies, msgtest.CreateCommandReply(doc))
	}
}

type commandConn struct {
	server *commandServer
	dead   bool
}

func (c *commandConn) Alive() bool { return !c.dead }

func (c *commandConn) Close() error { c.dead = true; return nil }

func (c *commandConn) Desc() *conn.Desc { return &conn.Desc{} }

func (c *commandConn) Expired() bool { return c.dead }

func (c *commandConn) Write(ctx context.Context, reqs ...msg.Request) error {
	c.server.sent = append(c.server.sent, reqs...)
	return nil
}

func (c *commandConn) Read(ctx context.Context, responseTo int32) (msg.Response, error) {
	if len(c.server.replies) == 0 {
		return nil, fmt.Errorf("no reply queued")
	}
	resp := c.server.replies[0]
	c.server.replies = c.server.replies[1:]
	resp.RespTo = responseTo
	return resp, nil
}

func selected(s *commandServer) *SelectedServer {
	return &SelectedServer{Server: s, ClusterKind: model.ReplicaSetWithPrimary}
}

// commandDoc decodes the command document of a sent request for
// assertions.
func commandDoc(t *testing.T, req msg.Request) bson.M {
	raw, err := bson.Marshal(req.(*msg.Query).Query)
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func rawDocs(t *testing.T, docs ...interface{}) []bson.Raw {
	var raws []bson.Raw
	for _, doc := range docs {
		data, err := bson.Marshal(doc)
		require.NoError(t, err)
		raws = append(raws, bson.Raw{Kind: 3, Data: data})
	}
	return raws
}
