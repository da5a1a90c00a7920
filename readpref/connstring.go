package readpref

import (
	"errors"

	"github.com/mongowire/mongowire/connstring"
	"github.com/mongowire/mongowire/model"
)

// FromConnString builds the default read preference carried by a
// connection string. It returns nil when the string sets none.
func FromConnString(cs connstring.ConnString) (*ReadPref, error) {
	var opts []Option

	if tagSets := model.NewTagSetsFromMaps(cs.ReadPreferenceTagSets); len(tagSets) > 0 {
		opts = append(opts, WithTagSets(tagSets...))
	}

	if cs.MaxStalenessSet {
		opts = append(opts, WithMaxStaleness(cs.MaxStaleness))
	}

	if cs.ReadPreference == "" {
		if len(opts) > 0 {
			return nil, errors.New("readPreferenceTags and maxStalenessSeconds require a readPreference mode")
		}
		return nil, nil
	}

	mode, err := ModeFromString(cs.ReadPreference)
	if err != nil {
		return nil, err
	}

	return New(mode, opts...)
}
