package dispatch

import (
	"context"

	"github.com/mongowire/mongowire/cluster"
	"github.com/mongowire/mongowire/ops"
	"github.com/mongowire/mongowire/writeconcern"
)

// Insert executes an insert command against a writable server.
func Insert(ctx context.Context, c cluster.Cluster, ns ops.Namespace, wc *writeconcern.WriteConcern,
	docs []interface{}, options ops.InsertOptions) (*ops.InsertResult, error) {

	var result *ops.InsertResult
	err := retryWrite(ctx, c, func(s *ops.SelectedServer) error {
		var err error
		result, err = ops.Insert(ctx, s, ns, wc, docs, options)
		return err
	})
	return result, err
}

// Update executes an update command against a writable server.
func Update(ctx context.Context, c cluster.Cluster, ns ops.Namespace, wc *writeconcern.WriteConcern,
	filter interface{}, update interface{}, options ops.UpdateOptions) (*ops.UpdateResult, error) {

	var result *ops.UpdateResult
	err := retryWrite(ctx, c, func(s *ops.SelectedServer) error {
		var err error
		result, err = ops.Update(ctx, s, ns, wc, filter, update, options)
		return err
	})
	return result, err
}

// Delete executes a delete command against a writable server.
func Delete(ctx context.Context, c cluster.Cluster, ns ops.Namespace, wc *writeconcern.WriteConcern,
	filter interface{}, options ops.DeleteOptions) (*ops.DeleteResult, error) {

	var result *ops.DeleteResult
	err := retryWrite(ctx, c, func(s *ops.SelectedServer) error {
		var err error
		result, err = ops.Delete(ctx, s, ns, wc, filter, options)
		return err
	})
	return result, err
}

// Bulk executes a bulk operation against a writable server. Bulk
// execution spans multiple commands, so a mid-flight failure leaves it
// ambiguous which batches applied; it is never retried.
func Bulk(ctx context.Context, c cluster.Cluster, b *ops.Bulk, wc *writeconcern.WriteConcern) (*ops.BulkResult, error) {
	s, err := writeBinding(ctx, c)
	if err != nil {
		return nil, err
	}
	return b.Execute(ctx, s, wc)
}
