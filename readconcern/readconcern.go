// Package readconcern defines read concerns, which control the
// consistency and isolation properties of reads.
package readconcern

import (
	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/connstring"
)

// A ReadConcern defines the consistency and isolation properties of
// the data read from replica sets and shards.
type ReadConcern struct {
	Level string
}

// FromConnString builds the default read concern carried by a
// connection string. It returns nil when the string sets none.
func FromConnString(cs connstring.ConnString) *ReadConcern {
	if cs.ReadConcernLevel == "" {
		return nil
	}
	return &ReadConcern{Level: cs.ReadConcernLevel}
}

// Local returns a ReadConcern that requests data from the instance
// with no durability guarantee.
func Local() *ReadConcern {
	return &ReadConcern{Level: "local"}
}

// Majority returns a ReadConcern that requests data acknowledged by a
// majority of the replica set members.
func Majority() *ReadConcern {
	return &ReadConcern{Level: "majority"}
}

// Linearizable returns a ReadConcern that requests data reflecting all
// majority-acknowledged writes completed before the read started.
func Linearizable() *ReadConcern {
	return &ReadConcern{Level: "linearizable"}
}

// Available returns a ReadConcern that requests data with no guarantee
// that it has been majority committed.
func Available() *ReadConcern {
	return &ReadConcern{Level: "available"}
}

// Snapshot returns a ReadConcern that requests majority-committed data
// from a single point in time.
func Snapshot() *ReadConcern {
	return &ReadConcern{Level: "snapshot"}
}

// GetBSON serializes the ReadConcern for inclusion in a command
// document.
func (rc *ReadConcern) GetBSON() (interface{}, error) {
	return bson.D{{Name: "level", Value: rc.Level}}, nil
}
