package ops_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/msg"
	. "github.com/mongowire/mongowire/ops"
	"github.com/mongowire/mongowire/readpref"
)

func TestFind_returns_a_cursor_over_the_first_batch(t *testing.T) {
	t.Parallel()

	s := &commandServer{kind: model.RSPrimary}
	s.queue(bson.D{
		{Name: "ok", Value: 1},
		{Name: "cursor", Value: bson.D{
			{Name: "firstBatch", Value: rawDocs(t, bson.D{{Name: "x", Value: 1}})},
			{Name: "ns", Value: "foo.bar"},
			{Name: "id", Value: int64(0)},
		}},
	})

	cursor, err := Find(context.Background(), selected(s), NewNamespace("foo", "bar"), nil,
		bson.D{{Name: "x", Value: 1}}, FindOptions{BatchSize: 5})
	require.NoError(t, err)

	sent := commandDoc(t, s.sent[0])
	require.Equal(t, "bar", sent["find"])
	require.Equal(t, 5, sent["batchSize"])
	require.NotContains(t, sent, "singleBatch")

	var doc struct {
		X int `bson:"x"`
	}
	require.True(t, cursor.Next(context.Background(), &doc))
	require.Equal(t, 1, doc.X)
	require.False(t, cursor.Next(context.Background(), &doc))
	require.NoError(t, cursor.Err())
}

func TestFind_limit_within_one_batch_requests_a_single_batch(t *testing.T) {
	t.Parallel()

	s := &commandServer{kind: model.RSPrimary}
	s.queue(bson.D{
		{Name: "ok", Value: 1},
		{Name: "cursor", Value: bson.D{
			{Name: "firstBatch", Value: []bson.Raw{}},
			{Name: "ns", Value: "foo.bar"},
			{Name: "id", Value: int64(0)},
		}},
	})

	_, err := Find(context.Background(), selected(s), NewNamespace("foo", "bar"), nil,
		nil, FindOptions{Limit: 3, BatchSize: 5})
	require.NoError(t, err)

	sent := commandDoc(t, s.sent[0])
	require.Equal(t, true, sent["singleBatch"])
}

func TestFind_rejects_invalid_namespaces(t *testing.T) {
	t.Parallel()

	_, err := Find(context.Background(), selected(&commandServer{}), NewNamespace("", "bar"), nil, nil, FindOptions{})
	require.Error(t, err)
}

func TestRun_sets_slaveOk_for_secondary_reads(t *testing.T) {
	t.Parallel()

	s := &commandServer{kind: model.RSSecondary}
	s.queue(bson.D{{Name: "ok", Value: 1}})

	rp, err := readpref.Secondary()
	require.NoError(t, err)

	ss := selected(s)
	ss.ReadPref = rp

	require.NoError(t, Run(context.Background(), ss, "admin", bson.D{{Name: "ping", Value: 1}}, &bson.D{}))

	query := s.sent[0].(*msg.Query)
	require.NotZero(t, query.Flags&msg.SlaveOK)
}

func TestRun_attaches_readPreference_for_mongos(t *testing.T) {
	t.Parallel()

	s := &commandServer{kind: model.Mongos}
	s.queue(bson.D{{Name: "ok", Value: 1}})

	rp, err := readpref.Secondary(readpref.WithTags("dc", "ny"))
	require.NoError(t, err)

	ss := selected(s)
	ss.ClusterKind = model.Sharded
	ss.ReadPref = rp

	require.NoError(t, Run(context.Background(), ss, "admin", bson.D{{Name: "ping", Value: 1}}, &bson.D{}))

	query := s.sent[0].(*msg.Query)
	require.Contains(t, query.Meta, "$readPreference")
}

func TestInsert_decodes_the_write_result(t *testing.T) {
	t.Parallel()

	s := &commandServer{kind: model.RSPrimary}
	s.queue(bson.D{
		{Name: "ok", Value: 1},
		{Name: "n", Value: 1},
		{Name: "writeErrors", Value: []bson.D{
			{{Name: "index", Value: 1}, {Name: "code", Value: 11000}, {Name: "errmsg", Value: "duplicate key"}},
		}},
	})

	result, err := Insert(context.Background(), selected(s), NewNamespace("foo", "bar"), nil,
		[]interface{}{
			bson.D{{Name: "_id", Value: 1}},
			bson.D{{Name: "_id", Value: 1}},
		}, InsertOptions{})
	require.NoError(t, err)

	require.Equal(t, 1, result.N)
	require.Len(t, result.WriteErrors, 1)
	require.Equal(t, 1, result.WriteErrors[0].Index)
}

func TestUpdate_builds_the_update_document(t *testing.T) {
	t.Parallel()

	s := &commandServer{kind: model.RSPrimary}
	s.queue(bson.D{
		{Name: "ok", Value: 1},
		{Name: "n", Value: 3},
		{Name: "nModified", Value: 2},
	})

	result, err := Update(context.Background(), selected(s), NewNamespace("foo", "bar"), nil,
		bson.D{{Name: "x", Value: 1}},
		bson.D{{Name: "$inc", Value: bson.D{{Name: "x", Value: 1}}}},
		UpdateOptions{Multi: true})
	require.NoError(t, err)

	require.Equal(t, 3, result.N)
	require.Equal(t, 2, result.NModified)

	sent := commandDoc(t, s.sent[0])
	expected := []interface{}{
		bson.M{
			"q":     bson.M{"x": 1},
			"u":     bson.M{"$inc": bson.M{"x": 1}},
			"multi": true,
		},
	}
	require.Empty(t, cmp.Diff(expected, sent["updates"]))
}

func TestDelete_limits_to_one_document_unless_many(t *testing.T) {
	t.Parallel()

	s := &commandServer{kind: model.RSPrimary}
	s.queue(
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}},
		bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 4}},
	)

	_, err := Delete(context.Background(), selected(s), NewNamespace("foo", "bar"), nil,
		bson.D{{Name: "x", Value: 1}}, DeleteOptions{})
	require.NoError(t, err)

	result, err := Delete(context.Background(), selected(s), NewNamespace("foo", "bar"), nil,
		bson.D{{Name: "x", Value: 1}}, DeleteOptions{Many: true})
	require.NoError(t, err)
	require.Equal(t, 4, result.N)

	one := commandDoc(t, s.sent[0])["deletes"].([]interface{})[0].(bson.M)
	require.Equal(t, 1, one["limit"])

	many := commandDoc(t, s.sent[1])["deletes"].([]interface{})[0].(bson.M)
	require.Equal(t, 0, many["limit"])
}
