package msgtest

import (
	"bytes"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/msg"
)

// CreateCommandReply builds a server reply carrying the given command
// result document.
func CreateCommandReply(cmd interface{}) *msg.Reply {
	doc, _ := bson.Marshal(cmd)
	reply := &msg.Reply{
		NumberReturned: 1,
		DocumentsBytes: doc,
	}

	// encode it, then decode it to exercise the same path a real
	// response takes
	codec := msg.NewWireProtocolCodec()
	var b bytes.Buffer
	err := codec.Encode(&b, reply)
	if err != nil {
		panic(err)
	}
	resp, err := codec.Decode(&b)
	if err != nil {
		panic(err)
	}

	return resp.(*msg.Reply)
}
