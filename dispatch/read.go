package dispatch

import (
	"context"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/cluster"
	"github.com/mongowire/mongowire/ops"
	"github.com/mongowire/mongowire/readconcern"
	"github.com/mongowire/mongowire/readpref"
)

// Find executes a query against a server satisfying the read
// preference.
func Find(ctx context.Context, c cluster.Cluster, ns ops.Namespace, rp *readpref.ReadPref,
	rc *readconcern.ReadConcern, filter interface{}, options ops.FindOptions) (ops.Cursor, error) {

	var cursor ops.Cursor
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		cursor, err = ops.Find(ctx, s, ns, rc, filter, options)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// FindOne executes a query for a single document.
func FindOne(ctx context.Context, c cluster.Cluster, ns ops.Namespace, rp *readpref.ReadPref,
	rc *readconcern.ReadConcern, filter interface{}, result interface{}) (bool, error) {

	var found bool
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		found, err = ops.FindOne(ctx, s, ns, rc, filter, result)
		return err
	})
	return found, err
}

// Aggregate executes the aggregate command. A pipeline ending in an
// $out stage writes its results and therefore runs against a writable
// server without a retry.
func Aggregate(ctx context.Context, c cluster.Cluster, ns ops.Namespace, rp *readpref.ReadPref,
	rc *readconcern.ReadConcern, pipeline interface{}, options ops.AggregationOptions) (ops.Cursor, error) {

	if hasOutStage(pipeline) {
		s, err := writeBinding(ctx, c)
		if err != nil {
			return nil, err
		}
		return ops.Aggregate(ctx, s, ns, rc, pipeline, options)
	}

	var cursor ops.Cursor
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		cursor, err = ops.Aggregate(ctx, s, ns, rc, pipeline, options)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// Count executes the count command.
func Count(ctx context.Context, c cluster.Cluster, ns ops.Namespace, rp *readpref.ReadPref,
	rc *readconcern.ReadConcern, filter interface{}, options ops.CountOptions) (int64, error) {

	var count int64
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		count, err = ops.Count(ctx, s, ns, rc, filter, options)
		return err
	})
	return count, err
}

// Distinct executes the distinct command.
func Distinct(ctx context.Context, c cluster.Cluster, ns ops.Namespace, rp *readpref.ReadPref,
	rc *readconcern.ReadConcern, field string, filter interface{}, options ops.DistinctOptions) ([]interface{}, error) {

	var values []interface{}
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		values, err = ops.Distinct(ctx, s, ns, rc, field, filter, options)
		return err
	})
	return values, err
}

// ListCollections lists the collections in the given database.
func ListCollections(ctx context.Context, c cluster.Cluster, db string, rp *readpref.ReadPref,
	options ops.ListCollectionsOptions) (ops.Cursor, error) {

	var cursor ops.Cursor
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		cursor, err = ops.ListCollections(ctx, s, db, options)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// ListDatabases lists the databases in the cluster.
func ListDatabases(ctx context.Context, c cluster.Cluster, rp *readpref.ReadPref,
	options ops.ListDatabasesOptions) (ops.Cursor, error) {

	var cursor ops.Cursor
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		cursor, err = ops.ListDatabases(ctx, s, options)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// ListIndexes lists the indexes on the given namespace.
func ListIndexes(ctx context.Context, c cluster.Cluster, ns ops.Namespace, rp *readpref.ReadPref,
	options ops.ListIndexesOptions) (ops.Cursor, error) {

	var cursor ops.Cursor
	err := retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
		var err error
		cursor, err = ops.ListIndexes(ctx, s, ns, options)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

// RunCommand executes an arbitrary command against the given database.
// Only commands the caller marks read-only are retried; an arbitrary
// command may have side effects the dispatcher cannot judge.
func RunCommand(ctx context.Context, c cluster.Cluster, db string, rp *readpref.ReadPref,
	command interface{}, result interface{}, readOnly bool) error {

	if readOnly {
		return retryRead(ctx, c, rp, func(s *ops.SelectedServer) error {
			return ops.Run(ctx, s, db, command, result)
		})
	}

	s, err := readBinding(ctx, c, rp)
	if err != nil {
		return err
	}
	return ops.Run(ctx, s, db, command, result)
}

// hasOutStage reports whether the final stage of the pipeline is $out.
func hasOutStage(pipeline interface{}) bool {
	raw, err := bson.Marshal(struct {
		P interface{} `bson:"p"`
	}{pipeline})
	if err != nil {
		return false
	}

	var doc struct {
		P []bson.RawD `bson:"p"`
	}
	if bson.Unmarshal(raw, &doc) != nil || len(doc.P) == 0 {
		return false
	}

	for _, elem := range doc.P[len(doc.P)-1] {
		if elem.Name == "$out" {
			return true
		}
	}
	return false
}
