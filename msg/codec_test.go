package msg_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	. "github.com/mongowire/mongowire/msg"
	"github.com/mongowire/mongowire/msg/compress"
)

func encodeBytes(t *testing.T, codec Codec, msgs ...Message) []byte {
	var buf bytes.Buffer
	err := codec.Encode(&buf, msgs...)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestCodec_EncodeQuery(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()

	cmd := NewCommand(7, "admin", true, bson.D{{Name: "ismaster", Value: 1}})
	b := encodeBytes(t, codec, cmd)

	// messageLength must equal the number of bytes produced.
	require.Equal(t, int32(len(b)), int32(b[0])|int32(b[1])<<8|int32(b[2])<<16|int32(b[3])<<24)
	// requestID
	require.Equal(t, byte(7), b[4])
	// opcode 2004
	require.Equal(t, int32(2004), int32(b[12])|int32(b[13])<<8|int32(b[14])<<16|int32(b[15])<<24)
	// slaveOK flag
	require.Equal(t, byte(4), b[16])
	require.Contains(t, string(b), "admin.$cmd")
}

func TestCodec_ReplyRoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()

	doc, err := bson.Marshal(bson.D{{Name: "ok", Value: 1}})
	require.NoError(t, err)

	in := &Reply{
		ReqID:          3,
		RespTo:         2,
		CursorID:       42,
		NumberReturned: 1,
		DocumentsBytes: doc,
	}

	b := encodeBytes(t, codec, in)

	decoded, err := codec.Decode(bytes.NewReader(b))
	require.NoError(t, err)

	out, ok := decoded.(*Reply)
	require.True(t, ok)
	require.Equal(t, int32(2), out.ResponseTo())
	require.Equal(t, int64(42), out.CursorID)
	require.Equal(t, int32(1), out.NumberReturned)

	var result struct {
		OK int `bson:"ok"`
	}
	require.NoError(t, out.CommandDocument(&result))
	require.Equal(t, 1, result.OK)
}

func TestCodec_MsgRoundTrip(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()

	docs, err := bson.Marshal(bson.D{{Name: "x", Value: 1}})
	require.NoError(t, err)

	in := NewMsg(9, "db1", bson.D{{Name: "insert", Value: "coll"}})
	in.Meta = map[string]interface{}{"$readPreference": bson.D{{Name: "mode", Value: "secondary"}}}
	in.Sequences = []DocumentSequence{{Identifier: "documents", Documents: docs}}

	b := encodeBytes(t, codec, in)

	decoded, err := codec.Decode(bytes.NewReader(b))
	require.NoError(t, err)

	out, ok := decoded.(*Msg)
	require.True(t, ok)

	var body bson.M
	require.NoError(t, out.CommandDocument(&body))
	require.Equal(t, "coll", body["insert"])
	require.Equal(t, "db1", body["$db"])
	require.Contains(t, body, "$readPreference")

	require.Len(t, out.Sequences, 1)
	require.Equal(t, "documents", out.Sequences[0].Identifier)

	var seqDoc bson.M
	require.NoError(t, bson.Unmarshal(out.Sequences[0].Documents, &seqDoc))
	require.Equal(t, 1, seqDoc["x"])
}

func TestCodec_ConvertToMsg(t *testing.T) {
	t.Parallel()

	cmd := NewCommand(11, "db1", false, bson.D{{Name: "count", Value: "coll"}})
	AddMeta(cmd, map[string]interface{}{"$readPreference": bson.D{{Name: "mode", Value: "nearest"}}})

	converted := ConvertToMsg(cmd)
	m, ok := converted.(*Msg)
	require.True(t, ok)
	require.Equal(t, int32(11), m.RequestID())
	require.Equal(t, "db1", m.Database)
	require.Contains(t, m.Meta, "$readPreference")
}

func TestCodec_CompressedRoundTrip(t *testing.T) {
	t.Parallel()

	snappy, ok := compress.ByName("snappy")
	require.True(t, ok)

	codec := NewCompressedWireProtocolCodec(snappy)

	in := NewMsg(5, "db1", bson.D{{Name: "find", Value: "coll"}})
	b := encodeBytes(t, codec, in)

	// opcode 2012
	require.Equal(t, int32(2012), int32(b[12])|int32(b[13])<<8|int32(b[14])<<16|int32(b[15])<<24)

	decoded, err := codec.Decode(bytes.NewReader(b))
	require.NoError(t, err)

	out, ok := decoded.(*Msg)
	require.True(t, ok)

	var body bson.M
	require.NoError(t, out.CommandDocument(&body))
	require.Equal(t, "coll", body["find"])
}

func TestCodec_HandshakeIsNeverCompressed(t *testing.T) {
	t.Parallel()

	snappy, ok := compress.ByName("snappy")
	require.True(t, ok)

	codec := NewCompressedWireProtocolCodec(snappy)

	cmd := NewCommand(5, "admin", true, bson.D{{Name: "ismaster", Value: 1}})
	b := encodeBytes(t, codec, cmd)

	require.Equal(t, int32(2004), int32(b[12])|int32(b[13])<<8|int32(b[14])<<16|int32(b[15])<<24)
}

func TestCodec_RejectsMalformedFrames(t *testing.T) {
	t.Parallel()

	codec := NewWireProtocolCodec()

	tests := []struct {
		name  string
		frame []byte
	}{
		{
			name:  "length smaller than header",
			frame: []byte{8, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "unknown opcode",
			frame: []byte{
				16, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
				99, 0, 0, 0,
			},
		},
		{
			name: "reply too short",
			frame: []byte{
				20, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
				1, 0, 0, 0,
				0, 0, 0, 0,
			},
		},
		{
			name: "reply document exceeds frame",
			frame: []byte{
				41, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
				1, 0, 0, 0,
				0, 0, 0, 0, // flags
				0, 0, 0, 0, 0, 0, 0, 0, // cursor id
				0, 0, 0, 0, // starting from
				1, 0, 0, 0, // number returned
				99, 0, 0, 0, 0, // declares a 99 byte document
			},
		},
		{
			name: "op_msg with unknown required flag",
			frame: []byte{
				26, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
				221, 7, 0, 0, // opcode 2013
				8, 0, 0, 0, // flag bit 3 is not defined
				0,
				5, 0, 0, 0, 0,
			},
		},
		{
			name: "op_msg without body",
			frame: []byte{
				20, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
				221, 7, 0, 0,
				0, 0, 0, 0,
			},
		},
		{
			name: "compressed with unknown compressor",
			frame: []byte{
				26, 0, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0,
				220, 7, 0, 0, // opcode 2012
				1, 0, 0, 0, // original opcode
				5, 0, 0, 0, // uncompressed size
				250, // compressor id
				0,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := codec.Decode(bytes.NewReader(test.frame))
			require.Error(t, err)
			_, ok := err.(*MalformedError)
			require.True(t, ok, "expected a MalformedError, got %T: %v", err, err)
		})
	}
}

func TestNextRequestID(t *testing.T) {
	t.Parallel()

	a := NextRequestID()
	b := NextRequestID()
	require.NotEqual(t, a, b)
}
