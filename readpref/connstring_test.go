package readpref_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mongowire/mongowire/connstring"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/readpref"
)

func TestFromConnString(t *testing.T) {
	t.Parallel()

	cs, err := connstring.Parse("mongodb://localhost/?readPreference=secondaryPreferred&readPreferenceTags=dc:ny&maxStalenessSeconds=90")
	require.NoError(t, err)

	rp, err := readpref.FromConnString(cs)
	require.NoError(t, err)
	require.Equal(t, readpref.SecondaryPreferredMode, rp.Mode())
	require.Equal(t, []model.TagSet{model.NewTagSet("dc", "ny")}, rp.TagSets())

	staleness, ok := rp.MaxStaleness()
	require.True(t, ok)
	require.Equal(t, 90*time.Second, staleness)
}

func TestFromConnString_without_a_read_preference(t *testing.T) {
	t.Parallel()

	cs, err := connstring.Parse("mongodb://localhost")
	require.NoError(t, err)

	rp, err := readpref.FromConnString(cs)
	require.NoError(t, err)
	require.Nil(t, rp)
}

func TestFromConnString_tags_require_a_mode(t *testing.T) {
	t.Parallel()

	cs, err := connstring.Parse("mongodb://localhost/?readPreferenceTags=dc:ny")
	require.NoError(t, err)

	_, err = readpref.FromConnString(cs)
	require.Error(t, err)
}
