package writeconcern_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/connstring"
	"github.com/mongowire/mongowire/writeconcern"
)

func TestWriteConcern_GetBSON(t *testing.T) {
	t.Parallel()

	wc := writeconcern.New(
		writeconcern.WMajority(),
		writeconcern.J(true),
		writeconcern.WTimeout(5*time.Second),
	)

	v, err := wc.GetBSON()
	require.NoError(t, err)

	doc, ok := v.(bson.D)
	require.True(t, ok)
	require.Equal(t, bson.D{
		{Name: "w", Value: "majority"},
		{Name: "j", Value: true},
		{Name: "wtimeout", Value: int64(5000)},
	}, doc)
}

func TestWriteConcern_w0_with_journal_is_invalid(t *testing.T) {
	t.Parallel()

	wc := writeconcern.New(writeconcern.W(0), writeconcern.J(true))

	require.False(t, wc.IsValid())
	_, err := wc.GetBSON()
	require.Equal(t, writeconcern.ErrInconsistent, err)
}

func TestFromConnString(t *testing.T) {
	t.Parallel()

	cs, err := connstring.Parse("mongodb://localhost/?w=majority&journal=true&wtimeoutMS=2500")
	require.NoError(t, err)

	wc := writeconcern.FromConnString(cs)
	require.NotNil(t, wc)

	v, err := wc.GetBSON()
	require.NoError(t, err)
	require.Equal(t, bson.D{
		{Name: "w", Value: "majority"},
		{Name: "j", Value: true},
		{Name: "wtimeout", Value: int64(2500)},
	}, v)

	cs, err = connstring.Parse("mongodb://localhost")
	require.NoError(t, err)
	require.Nil(t, writeconcern.FromConnString(cs))
}

func TestWriteConcern_Acknowledged(t *testing.T) {
	t.Parallel()

	require.True(t, writeconcern.New(writeconcern.W(1)).Acknowledged())
	require.True(t, writeconcern.New(writeconcern.WMajority()).Acknowledged())
	require.False(t, writeconcern.New(writeconcern.W(0)).Acknowledged())
	require.True(t, writeconcern.New(writeconcern.W(0), writeconcern.J(true)).Acknowledged())
}
