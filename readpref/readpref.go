package readpref

import (
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/model"
)

var primary = ReadPref{mode: PrimaryMode}

// Primary constructs a read preference with a PrimaryMode.
func Primary() *ReadPref {
	return &primary
}

// PrimaryPreferred constructs a read preference with a PrimaryPreferredMode.
func PrimaryPreferred(opts ...Option) (*ReadPref, error) {
	return New(PrimaryPreferredMode, opts...)
}

// SecondaryPreferred constructs a read preference with a SecondaryPreferredMode.
func SecondaryPreferred(opts ...Option) (*ReadPref, error) {
	return New(SecondaryPreferredMode, opts...)
}

// Secondary constructs a read preference with a SecondaryMode.
func Secondary(opts ...Option) (*ReadPref, error) {
	return New(SecondaryMode, opts...)
}

// Nearest constructs a read preference with a NearestMode.
func Nearest(opts ...Option) (*ReadPref, error) {
	return New(NearestMode, opts...)
}

// New creates a new ReadPref.
func New(mode Mode, opts ...Option) (*ReadPref, error) {
	rp := &ReadPref{
		mode: mode,
	}

	if mode == PrimaryMode && len(opts) != 0 {
		return nil, ErrInvalidReadPreference
	}

	for _, opt := range opts {
		err := opt(rp)
		if err != nil {
			return nil, err
		}
	}

	return rp, nil
}

// ReadPref determines which servers are considered suitable for reads.
// It is immutable after construction.
type ReadPref struct {
	maxStaleness    time.Duration
	maxStalenessSet bool
	mode            Mode
	tagSets         []model.TagSet
}

// MaxStaleness is the maximum amount of time to allow
// a server to be considered eligible for selection. The
// second return value indicates if this value has been set.
func (r *ReadPref) MaxStaleness() (time.Duration, bool) {
	return r.maxStaleness, r.maxStalenessSet
}

// Mode indicates the mode of the read preference.
func (r *ReadPref) Mode() Mode {
	return r.mode
}

// TagSets are multiple tag sets indicating
// which servers should be considered.
func (r *ReadPref) TagSets() []model.TagSet {
	return r.tagSets
}

// Document renders the read preference in its wire form, suitable for
// the $readPreference metadata field.
func (r *ReadPref) Document() bson.D {
	doc := bson.D{{Name: "mode", Value: r.mode.String()}}

	if len(r.tagSets) > 0 {
		sets := make([]bson.D, 0, len(r.tagSets))
		for _, ts := range r.tagSets {
			set := bson.D{}
			for _, tag := range ts {
				set = append(set, bson.DocElem{Name: tag.Name, Value: tag.Value})
			}
			sets = append(sets, set)
		}
		doc = append(doc, bson.DocElem{Name: "tags", Value: sets})
	}

	if r.maxStalenessSet {
		doc = append(doc, bson.DocElem{
			Name:  "maxStalenessSeconds",
			Value: int(r.maxStaleness / time.Second),
		})
	}

	return doc
}
