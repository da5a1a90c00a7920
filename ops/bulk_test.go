package ops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/msg"
	. "github.com/mongowire/mongowire/ops"
)

func sentCommandNames(sent []msg.Request) []string {
	var names []string
	for _, req := range sent {
		names = append(names, msg.CommandNameOf(req.(*msg.Query).Query))
	}
	return names
}

func TestBulk_empty(t *testing.T) {
	t.Parallel()

	b := NewBulk(NewNamespace("foo", "bar"), true)
	_, err := b.Execute(context.Background(), selected(&commandServer{}), nil)
	require.Equal(t, ErrEmptyBulk, err)
}

func TestBulk_groups_contiguous_operations(t *testing.T) {
	t.Parallel()

	s := &commandServer{}
	s.queue(
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 2}},
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}},
	)

	b := NewBulk(NewNamespace("foo", "bar"), true)
	b.Insert(bson.D{{Name: "_id", Value: 1}})
	b.Insert(bson.D{{Name: "_id", Value: 2}})
	b.DeleteOne(bson.D{{Name: "_id", Value: 1}})

	result, err := b.Execute(context.Background(), selected(s), nil)
	require.NoError(t, err)

	require.Equal(t, []string{"insert", "delete"}, sentCommandNames(s.sent))
	require.Equal(t, int64(2), result.InsertedCount)
	require.Equal(t, int64(1), result.DeletedCount)

	insert := commandDoc(t, s.sent[0])
	require.Len(t, insert["documents"], 2)
}

func TestBulk_splits_batches_at_the_server_limit(t *testing.T) {
	t.Parallel()

	s := &commandServer{desc: &model.Server{Kind: model.RSPrimary, MaxBatchCount: 2}}
	s.queue(
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 2}},
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 2}},
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}},
	)

	b := NewBulk(NewNamespace("foo", "bar"), true)
	for i := 0; i < 5; i++ {
		b.Insert(bson.D{{Name: "_id", Value: i}})
	}

	result, err := b.Execute(context.Background(), selected(s), nil)
	require.NoError(t, err)

	require.Equal(t, []string{"insert", "insert", "insert"}, sentCommandNames(s.sent))
	require.Equal(t, int64(5), result.InsertedCount)

	for i, want := range []int{2, 2, 1} {
		doc := commandDoc(t, s.sent[i])
		require.Len(t, doc["documents"], want)
	}
}

func TestBulk_ordered_stops_at_the_first_write_error(t *testing.T) {
	t.Parallel()

	s := &commandServer{}
	s.queue(
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}},
		bson.D{
			{Name: "ok", Value: 1},
			{Name: "n", Value: 0},
			{Name: "writeErrors", Value: []bson.D{
				{{Name: "index", Value: 0}, {Name: "code", Value: 11000}, {Name: "errmsg", Value: "duplicate key"}},
			}},
		},
	)

	b := NewBulk(NewNamespace("foo", "bar"), true)
	b.Insert(bson.D{{Name: "_id", Value: 1}})
	b.DeleteOne(bson.D{{Name: "_id", Value: 9}})
	b.Insert(bson.D{{Name: "_id", Value: 2}})

	result, err := b.Execute(context.Background(), selected(s), nil)
	require.NoError(t, err)

	// the trailing insert run was never attempted
	require.Equal(t, []string{"insert", "delete"}, sentCommandNames(s.sent))

	require.Len(t, result.WriteErrors, 1)
	require.Equal(t, 1, result.WriteErrors[0].Index)
	require.Equal(t, int32(11000), result.WriteErrors[0].Code)
	require.Equal(t, int64(1), result.InsertedCount)
}

func TestBulk_unordered_continues_past_write_errors(t *testing.T) {
	t.Parallel()

	s := &commandServer{}
	s.queue(
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}},
		bson.D{
			{Name: "ok", Value: 1},
			{Name: "n", Value: 0},
			{Name: "writeErrors", Value: []bson.D{
				{{Name: "index", Value: 0}, {Name: "code", Value: 11000}, {Name: "errmsg", Value: "duplicate key"}},
			}},
		},
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}},
	)

	b := NewBulk(NewNamespace("foo", "bar"), false)
	b.Insert(bson.D{{Name: "_id", Value: 1}})
	b.DeleteOne(bson.D{{Name: "_id", Value: 9}})
	b.Insert(bson.D{{Name: "_id", Value: 2}})

	result, err := b.Execute(context.Background(), selected(s), nil)
	require.NoError(t, err)

	require.Equal(t, []string{"insert", "delete", "insert"}, sentCommandNames(s.sent))

	require.Len(t, result.WriteErrors, 1)
	require.Equal(t, 1, result.WriteErrors[0].Index)
	require.Equal(t, int64(2), result.InsertedCount)
}

func TestBulk_reports_upserts_by_queue_index(t *testing.T) {
	t.Parallel()

	s := &commandServer{}
	s.queue(
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}},
		bson.D{
			{Name: "ok", Value: 1},
			{Name: "n", Value: 2},
			{Name: "nModified", Value: 1},
			{Name: "upserted", Value: []bson.D{
				{{Name: "index", Value: 1}, {Name: "_id", Value: "fresh"}},
			}},
		},
	)

	b := NewBulk(NewNamespace("foo", "bar"), true)
	b.Insert(bson.D{{Name: "_id", Value: 1}})
	b.UpdateOne(bson.D{{Name: "_id", Value: 1}}, bson.D{{Name: "$set", Value: bson.D{{Name: "x", Value: 1}}}})
	b.Replace(bson.D{{Name: "_id", Value: 9}}, bson.D{{Name: "x", Value: 2}})
	b.Upsert()

	result, err := b.Execute(context.Background(), selected(s), nil)
	require.NoError(t, err)

	require.Equal(t, int64(1), result.MatchedCount)
	require.Equal(t, int64(1), result.ModifiedCount)
	require.Equal(t, int64(1), result.UpsertedCount)
	require.Equal(t, "fresh", result.UpsertedIDs[2])
}
