package readpref

import (
	"errors"
	"time"

	"github.com/mongowire/mongowire/model"
)

// ErrInvalidTagSet indicates that an invalid set of tags was specified.
var ErrInvalidTagSet = errors.New("an even number of tags must be specified")

// ErrInvalidReadPreference indicates that an invalid combination of
// mode and options was specified.
var ErrInvalidReadPreference = errors.New("a primary read preference admits no options")

// Option configures a read preference.
type Option func(*ReadPref) error

// WithMaxStaleness sets the maximum staleness a
// server is allowed.
func WithMaxStaleness(ms time.Duration) Option {
	return func(rp *ReadPref) error {
		rp.maxStaleness = ms
		rp.maxStalenessSet = true
		return nil
	}
}

// WithTags sets a single tag set used to match
// a server. The last call to WithTags or WithTagSets
// overrides all previous calls to either method.
func WithTags(tags ...string) Option {
	return func(rp *ReadPref) error {
		if len(tags)%2 != 0 {
			return ErrInvalidTagSet
		}
		rp.tagSets = []model.TagSet{model.NewTagSet(tags...)}
		return nil
	}
}

// WithTagSets sets the tag sets used to match
// a server. The last call to WithTags or WithTagSets
// overrides all previous calls to either method.
func WithTagSets(tagSets ...model.TagSet) Option {
	return func(rp *ReadPref) error {
		rp.tagSets = tagSets
		return nil
	}
}
