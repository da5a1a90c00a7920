package cluster_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	. "github.com/mongowire/mongowire/cluster"
	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/internal/msgtest"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/msg"
	"github.com/mongowire/mongowire/server"
)

// standaloneConn answers the monitor's handshake commands as a
// standalone mongod.
type standaloneConn struct {
	dead    bool
	pending []*msg.Reply
}

func (c *standaloneConn) Alive() bool { return !c.dead }

func (c *standaloneConn) Close() error { c.dead = true; return nil }

func (c *standaloneConn) Desc() *conn.Desc { return &conn.Desc{} }

func (c *standaloneConn) Expired() bool { return c.dead }

func (c *standaloneConn) Write(ctx context.Context, reqs ...msg.Request) error {
	for _, req := range reqs {
		var doc bson.D
		switch msg.CommandNameOf(req.(*msg.Query).Query) {
		case "ismaster":
			doc = bson.D{
				{Name: "ok", Value: 1},
				{Name: "ismaster", Value: true},
				{Name: "minWireVersion", Value: 0},
				{Name: "maxWireVersion", Value: 6},
			}
		case "buildInfo":
			doc = bson.D{
				{Name: "ok", Value: 1},
				{Name: "version", Value: "4.0.0"},
				{Name: "versionArray", Value: []int{4, 0, 0}},
			}
		default:
			return fmt.Errorf("unexpected command")
		}

		reply := msgtest.CreateCommandReply(doc)
		reply.RespTo = req.RequestID()
		c.pending = append(c.pending, reply)
	}
	return nil
}

func (c *standaloneConn) Read(ctx context.Context, responseTo int32) (msg.Response, error) {
	if len(c.pending) == 0 {
		return nil, fmt.Errorf("no response pending")
	}
	resp := c.pending[0]
	c.pending = c.pending[1:]
	return resp, nil
}

func standaloneDialer() conn.Dialer {
	return func(ctx context.Context, addr model.Addr, opts ...conn.Option) (conn.Connection, error) {
		return &standaloneConn{}, nil
	}
}

func unreachableDialer() conn.Dialer {
	return func(ctx context.Context, addr model.Addr, opts ...conn.Option) (conn.Connection, error) {
		return nil, fmt.Errorf("connection refused")
	}
}

func TestSelectServer_finds_standalone(t *testing.T) {
	t.Parallel()

	c, err := New(
		WithSeedList(model.Addr("localhost:27017")),
		WithServerOptions(server.WithConnectionDialer(standaloneDialer())),
	)
	require.NoError(t, err)
	defer c.Close()

	s, err := c.SelectServer(context.Background(), WriteSelector())
	require.NoError(t, err)
	require.Equal(t, model.Addr("localhost:27017"), s.Addr())

	// selecting again returns the same server, not a new one
	s2, err := c.SelectServer(context.Background(), WriteSelector())
	require.NoError(t, err)
	require.True(t, s == s2)
}

func TestSelectServer_is_safe_for_concurrent_use(t *testing.T) {
	t.Parallel()

	c, err := New(
		WithSeedList(model.Addr("localhost:27017")),
		WithServerOptions(server.WithConnectionDialer(standaloneDialer())),
	)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SelectServer(context.Background(), WriteSelector())
	require.NoError(t, err)

	const goroutines = 8
	errs := make(chan error, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := c.SelectServer(context.Background(), WriteSelector()); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestSelectServer_times_out(t *testing.T) {
	t.Parallel()

	c, err := New(
		WithSeedList(model.Addr("localhost:27017")),
		WithServerOptions(server.WithConnectionDialer(unreachableDialer())),
		WithServerSelectionTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.SelectServer(context.Background(), WriteSelector())
	require.Equal(t, ErrNoSuitableServer, err)
}

func TestSelectServer_honors_context(t *testing.T) {
	t.Parallel()

	c, err := New(
		WithSeedList(model.Addr("localhost:27017")),
		WithServerOptions(server.WithConnectionDialer(unreachableDialer())),
	)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.SelectServer(ctx, WriteSelector())
	require.Error(t, err)
	require.NotEqual(t, ErrNoSuitableServer, err)
}
