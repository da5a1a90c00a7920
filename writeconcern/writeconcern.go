// Package writeconcern defines the level of acknowledgement requested
// from the server for write operations.
package writeconcern

import (
	"errors"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/connstring"
)

// ErrInconsistent indicates a write concern requesting a journaled
// unacknowledged write, which the server cannot provide.
var ErrInconsistent = errors.New("a write concern cannot have both w=0 and j=true")

// WriteConcern describes the level of acknowledgement requested from
// the server for write operations.
type WriteConcern struct {
	w        interface{}
	j        bool
	wTimeout time.Duration
}

// Option is an option to provide when creating a WriteConcern.
type Option func(concern *WriteConcern)

// New constructs a new WriteConcern.
func New(options ...Option) *WriteConcern {
	concern := &WriteConcern{}

	for _, option := range options {
		option(concern)
	}

	return concern
}

// FromConnString builds the default write concern carried by a
// connection string. It returns nil when the string sets none.
func FromConnString(cs connstring.ConnString) *WriteConcern {
	var opts []Option

	if cs.WString != "" {
		opts = append(opts, WTagSet(cs.WString))
	} else if cs.WNumberSet {
		opts = append(opts, W(cs.WNumber))
	}

	if cs.JournalSet {
		opts = append(opts, J(cs.Journal))
	}

	if cs.WTimeoutSet {
		opts = append(opts, WTimeout(cs.WTimeout))
	}

	if len(opts) == 0 {
		return nil
	}

	return New(opts...)
}

// W requests acknowledgement that write operations propagate to the
// specified number of instances.
func W(w int) Option {
	return func(concern *WriteConcern) {
		concern.w = w
	}
}

// WMajority requests acknowledgement that write operations propagate
// to the majority of the instances.
func WMajority() Option {
	return func(concern *WriteConcern) {
		concern.w = "majority"
	}
}

// WTagSet requests acknowledgement that write operations propagate to
// the instances matching the named tag set.
func WTagSet(tag string) Option {
	return func(concern *WriteConcern) {
		concern.w = tag
	}
}

// J requests acknowledgement that write operations are written to
// the journal.
func J(j bool) Option {
	return func(concern *WriteConcern) {
		concern.j = j
	}
}

// WTimeout specifies a time limit for the write concern.
func WTimeout(d time.Duration) Option {
	return func(concern *WriteConcern) {
		concern.wTimeout = d
	}
}

// GetBSON serializes the WriteConcern for inclusion in a command
// document.
func (wc *WriteConcern) GetBSON() (interface{}, error) {
	if !wc.IsValid() {
		return nil, ErrInconsistent
	}

	doc := bson.D{}

	if wc.w != nil {
		doc = append(doc, bson.DocElem{Name: "w", Value: wc.w})
	}

	if wc.j {
		doc = append(doc, bson.DocElem{Name: "j", Value: wc.j})
	}

	if wc.wTimeout != 0 {
		doc = append(doc, bson.DocElem{Name: "wtimeout", Value: int64(wc.wTimeout / time.Millisecond)})
	}

	return doc, nil
}

// Acknowledged indicates whether a write with the write concern will be
// acknowledged by the server.
func (wc *WriteConcern) Acknowledged() bool {
	if wc == nil || wc.j {
		return true
	}

	if v, ok := wc.w.(int); ok && v == 0 {
		return false
	}

	return true
}

// IsValid reports whether the combination of options is one the server
// can honor.
func (wc *WriteConcern) IsValid() bool {
	if !wc.j {
		return true
	}

	if v, ok := wc.w.(int); ok && v == 0 {
		return false
	}

	return true
}
