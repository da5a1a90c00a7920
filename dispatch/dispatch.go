// Package dispatch binds operations to servers. Each entry point
// selects a suitable server from the cluster, executes the operation
// against it, and applies the retry policy: an operation that failed
// with a network error may be reissued exactly once against a freshly
// selected server, but only when the failure cannot have left the
// first attempt applied.
package dispatch

import (
	"context"

	"github.com/mongowire/mongowire/cluster"
	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/ops"
	"github.com/mongowire/mongowire/readpref"
)

func readBinding(ctx context.Context, c cluster.Cluster, rp *readpref.ReadPref) (*ops.SelectedServer, error) {
	if rp == nil {
		rp = readpref.Primary()
	}

	s, err := c.SelectServer(ctx, cluster.ReadPrefSelector(rp))
	if err != nil {
		return nil, err
	}

	return &ops.SelectedServer{
		Server:      s,
		ClusterKind: c.Model().Kind,
		ReadPref:    rp,
	}, nil
}

func writeBinding(ctx context.Context, c cluster.Cluster) (*ops.SelectedServer, error) {
	s, err := c.SelectServer(ctx, cluster.WriteSelector())
	if err != nil {
		return nil, err
	}

	return &ops.SelectedServer{
		Server:      s,
		ClusterKind: c.Model().Kind,
	}, nil
}

// retryRead executes op against a selected server and retries it once
// on a network error. Reads are safe to reissue; the server either
// never saw the request or its answer was lost.
func retryRead(ctx context.Context, c cluster.Cluster, rp *readpref.ReadPref, op func(*ops.SelectedServer) error) error {
	s, err := readBinding(ctx, c, rp)
	if err != nil {
		return err
	}

	err = op(s)
	if err == nil || !conn.IsNetworkError(err) {
		return err
	}

	// the failed attempt is evidence against the server it ran on;
	// select again rather than reuse the binding
	s, serr := readBinding(ctx, c, rp)
	if serr != nil {
		return err
	}

	return op(s)
}

// retryWrite executes op against a selected server and retries it once,
// but only when the failure occurred while the request was being sent.
// A write that failed awaiting the reply may have been applied and is
// not reissued. Server-reported errors are never retried.
func retryWrite(ctx context.Context, c cluster.Cluster, op func(*ops.SelectedServer) error) error {
	s, err := writeBinding(ctx, c)
	if err != nil {
		return err
	}

	err = op(s)
	if err == nil || !conn.IsNetworkError(err) || !conn.IsWriteFailure(err) {
		return err
	}

	s, serr := writeBinding(ctx, c)
	if serr != nil {
		return err
	}

	return op(s)
}
