package msg

import (
	"hash/crc32"
	"io"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/msg/compress"
)

// MaxMessageSize is the absolute cap on a single wire message. Frames
// declaring a larger length are rejected before any allocation.
const MaxMessageSize = 48 * 1000 * 1000

const headerSize = 16

const defaultEncodeBufferSize = 256

// Encoder encodes messages.
type Encoder interface {
	// Encode encodes a number of messages to the writer.
	Encode(io.Writer, ...Message) error
}

// Decoder decodes messages.
type Decoder interface {
	// Decode decodes one message from the reader.
	Decode(io.Reader) (Message, error)
}

// Codec encodes and decodes messages.
type Codec interface {
	Encoder
	Decoder
}

// NewWireProtocolCodec creates a Codec for the binary message format.
func NewWireProtocolCodec() Codec {
	return &wireProtocolCodec{
		lengthBytes: make([]byte, 4),
	}
}

// NewCompressedWireProtocolCodec creates a Codec that wraps outgoing
// requests in OP_COMPRESSED using the provided compressor. Incoming
// OP_COMPRESSED frames are always understood, whichever compressor
// produced them.
func NewCompressedWireProtocolCodec(compressor compress.Compressor) Codec {
	return &wireProtocolCodec{
		lengthBytes: make([]byte, 4),
		compressor:  compressor,
	}
}

type wireProtocolCodec struct {
	lengthBytes []byte
	compressor  compress.Compressor
}

// Commands that carry credentials or negotiate the compressor itself
// are never compressed.
var uncompressibleCommands = map[string]bool{
	"ismaster":        true,
	"isMaster":        true,
	"hello":           true,
	"saslStart":       true,
	"saslContinue":    true,
	"getnonce":        true,
	"authenticate":    true,
	"createUser":      true,
	"updateUser":      true,
	"copydbsaslstart": true,
	"copydbgetnonce":  true,
	"copydb":          true,
}

func (c *wireProtocolCodec) Decode(reader io.Reader) (Message, error) {
	_, err := io.ReadFull(reader, c.lengthBytes)
	if err != nil {
		return nil, internal.WrapError(err, "unable to decode message length")
	}

	length := readInt32(c.lengthBytes, 0)
	if length < headerSize {
		return nil, malformedf("message length %d is smaller than the header", length)
	}
	if length > MaxMessageSize {
		return nil, malformedf("message length %d exceeds the %d byte cap", length, MaxMessageSize)
	}

	b := make([]byte, length)

	b[0] = c.lengthBytes[0]
	b[1] = c.lengthBytes[1]
	b[2] = c.lengthBytes[2]
	b[3] = c.lengthBytes[3]

	_, err = io.ReadFull(reader, b[4:])
	if err != nil {
		return nil, internal.WrapError(err, "unable to decode message")
	}

	return c.decode(b)
}

func (c *wireProtocolCodec) Encode(writer io.Writer, msgs ...Message) error {

	b := make([]byte, 0, defaultEncodeBufferSize)

	var err error
	for _, m := range msgs {
		b, err = c.encodeOne(b, m)
		if err != nil {
			return err
		}
	}

	_, err = writer.Write(b)
	if err != nil {
		return internal.WrapError(err, "unable to encode messages")
	}
	return nil
}

func (c *wireProtocolCodec) encodeOne(b []byte, m Message) ([]byte, error) {
	start := len(b)

	var err error
	switch typedM := m.(type) {
	case *Query:
		b = addHeader(b, 0, typedM.ReqID, 0, int32(queryOpcode))
		b = addInt32(b, int32(typedM.Flags))
		b = addCString(b, typedM.FullCollectionName)
		b = addInt32(b, typedM.NumberToSkip)
		b = addInt32(b, typedM.NumberToReturn)
		query := typedM.Query
		if len(typedM.Meta) > 0 {
			wrapped := bson.D{{Name: "$query", Value: query}}
			for k, v := range typedM.Meta {
				wrapped = append(wrapped, bson.DocElem{Name: k, Value: v})
			}
			query = wrapped
		}
		b, err = addMarshalled(b, query)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal query")
		}
		if typedM.ReturnFieldsSelector != nil {
			b, err = addMarshalled(b, typedM.ReturnFieldsSelector)
			if err != nil {
				return nil, internal.WrapError(err, "unable to marshal return fields selector")
			}
		}
	case *Msg:
		b = addHeader(b, 0, typedM.ReqID, typedM.RespTo, int32(msgOpcode))
		b = addInt32(b, int32(typedM.FlagBits&^ChecksumPresent))
		b = append(b, 0) // kind 0: body
		b, err = addMsgBody(b, typedM)
		if err != nil {
			return nil, internal.WrapError(err, "unable to marshal command body")
		}
		for _, seq := range typedM.Sequences {
			b = append(b, 1) // kind 1: document sequence
			sectionStart := len(b)
			b = addInt32(b, 0)
			b = addCString(b, seq.Identifier)
			b = append(b, seq.Documents...)
			setInt32(b, int32(sectionStart), int32(len(b)-sectionStart))
		}
	case *Reply:
		b = addHeader(b, 0, typedM.ReqID, typedM.RespTo, int32(replyOpcode))
		b = addInt32(b, int32(typedM.ResponseFlags))
		b = addInt64(b, typedM.CursorID)
		b = addInt32(b, typedM.StartingFrom)
		b = addInt32(b, typedM.NumberReturned)
		b = append(b, typedM.DocumentsBytes...)
	}

	setInt32(b, int32(start), int32(len(b)-start))

	if len(b)-start > MaxMessageSize {
		return nil, malformedf("message of %d bytes exceeds the %d byte cap", len(b)-start, MaxMessageSize)
	}

	if c.compressor != nil && compressible(m) {
		return c.compressFrame(b, start)
	}

	return b, nil
}

// compressFrame replaces the frame at b[start:] with its OP_COMPRESSED
// wrapping.
func (c *wireProtocolCodec) compressFrame(b []byte, start int) ([]byte, error) {
	frame := b[start:]
	originalOpcode := readInt32(frame, 12)
	uncompressed := frame[headerSize:]

	compressed, err := c.compressor.Compress(uncompressed)
	if err != nil {
		return nil, internal.WrapError(err, "unable to compress message")
	}

	out := b[:start]
	out = addHeader(out, 0, readInt32(frame, 4), readInt32(frame, 8), int32(compressedOpcode))
	out = addInt32(out, originalOpcode)
	out = addInt32(out, int32(len(uncompressed)))
	out = append(out, c.compressor.ID())
	out = append(out, compressed...)
	setInt32(out, int32(start), int32(len(out)-start))
	return out, nil
}

func compressible(m Message) bool {
	switch typedM := m.(type) {
	case *Query:
		return !uncompressibleCommands[CommandNameOf(typedM.Query)]
	case *Msg:
		return !uncompressibleCommands[CommandNameOf(typedM.Command)]
	}
	return true
}

func (c *wireProtocolCodec) decode(b []byte) (Message, error) {
	requestID := readInt32(b, 4)
	responseTo := readInt32(b, 8)
	op := readInt32(b, 12)

	switch opcode(op) {
	case replyOpcode:
		return decodeReply(b, requestID, responseTo)
	case msgOpcode:
		return decodeMsg(b, requestID, responseTo)
	case compressedOpcode:
		return c.decodeCompressed(b, requestID, responseTo)
	}

	return nil, malformedf("unknown opcode %d", op)
}

func decodeReply(b []byte, requestID, responseTo int32) (Message, error) {
	if len(b) < 36 {
		return nil, malformedf("reply of %d bytes is too short", len(b))
	}

	reply := &Reply{
		ReqID:  requestID,
		RespTo: responseTo,
	}
	reply.ResponseFlags = ReplyFlags(readInt32(b, 16))
	reply.CursorID = readInt64(b, 20)
	reply.StartingFrom = readInt32(b, 28)
	reply.NumberReturned = readInt32(b, 32)
	reply.DocumentsBytes = b[36:]

	if err := validateDocuments(reply.DocumentsBytes); err != nil {
		return nil, err
	}

	return reply, nil
}

func decodeMsg(b []byte, requestID, responseTo int32) (Message, error) {
	if len(b) < headerSize+4 {
		return nil, malformedf("OP_MSG of %d bytes is too short", len(b))
	}

	m := &Msg{
		ReqID:    requestID,
		RespTo:   responseTo,
		FlagBits: MsgFlags(readInt32(b, 16)),
	}

	if unknown := m.FlagBits & requiredFlagsMask &^ knownRequiredFlags; unknown != 0 {
		return nil, malformedf("OP_MSG has unknown required flag bits %#x", uint32(unknown))
	}

	end := len(b)
	if m.FlagBits&ChecksumPresent != 0 {
		if end < headerSize+4+4 {
			return nil, malformedf("OP_MSG is too short to hold its checksum")
		}
		end -= 4
		sum := crc32.Checksum(b[:end], crc32c)
		if sum != uint32(readInt32(b, int32(end))) {
			return nil, malformedf("OP_MSG checksum mismatch")
		}
	}

	pos := headerSize + 4
	for pos < end {
		kind := b[pos]
		pos++
		switch kind {
		case 0:
			if m.BodyBytes != nil {
				return nil, malformedf("OP_MSG has more than one body section")
			}
			n, err := partitionDocument(b[pos:end])
			if err != nil {
				return nil, err
			}
			m.BodyBytes = b[pos : pos+n]
			pos += n
		case 1:
			if end-pos < 4 {
				return nil, malformedf("OP_MSG document sequence is missing its size")
			}
			size := int(readInt32(b, int32(pos)))
			if size < 5 || pos+size > end {
				return nil, malformedf("OP_MSG document sequence size %d is out of bounds", size)
			}
			sectionEnd := pos + size
			idStart := pos + 4
			idEnd := idStart
			for idEnd < sectionEnd && b[idEnd] != 0 {
				idEnd++
			}
			if idEnd == sectionEnd {
				return nil, malformedf("OP_MSG document sequence identifier is unterminated")
			}
			docs := b[idEnd+1 : sectionEnd]
			if err := validateDocuments(docs); err != nil {
				return nil, err
			}
			m.Sequences = append(m.Sequences, DocumentSequence{
				Identifier: string(b[idStart:idEnd]),
				Documents:  docs,
			})
			pos = sectionEnd
		default:
			return nil, malformedf("OP_MSG has unknown section kind %d", kind)
		}
	}

	if m.BodyBytes == nil {
		return nil, malformedf("OP_MSG has no body section")
	}

	return m, nil
}

func (c *wireProtocolCodec) decodeCompressed(b []byte, requestID, responseTo int32) (Message, error) {
	if len(b) < headerSize+9 {
		return nil, malformedf("OP_COMPRESSED of %d bytes is too short", len(b))
	}

	originalOpcode := readInt32(b, 16)
	uncompressedSize := readInt32(b, 20)
	compressorID := b[24]

	if uncompressedSize < 0 || uncompressedSize > MaxMessageSize {
		return nil, malformedf("OP_COMPRESSED declares uncompressed size %d", uncompressedSize)
	}

	compressor, ok := compress.ByID(compressorID)
	if !ok {
		return nil, malformedf("unknown compressor id %d", compressorID)
	}

	body, err := compressor.Decompress(b[25:], uncompressedSize)
	if err != nil {
		return nil, internal.WrapError(err, "unable to decompress message")
	}
	if len(body) != int(uncompressedSize) {
		return nil, malformedf("OP_COMPRESSED body decompressed to %d bytes, expected %d", len(body), uncompressedSize)
	}

	inner := make([]byte, 0, headerSize+len(body))
	inner = addHeader(inner, int32(headerSize+len(body)), requestID, responseTo, originalOpcode)
	inner = append(inner, body...)

	if opcode(originalOpcode) == compressedOpcode {
		return nil, malformedf("OP_COMPRESSED wraps another OP_COMPRESSED")
	}

	return c.decode(inner)
}

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// addMsgBody appends the command document with $db and any metadata
// fields folded in.
func addMsgBody(b []byte, m *Msg) ([]byte, error) {
	extra := bson.D{{Name: "$db", Value: m.Database}}
	for k, v := range m.Meta {
		extra = append(extra, bson.DocElem{Name: k, Value: v})
	}

	cmdBytes, err := bson.Marshal(m.Command)
	if err != nil {
		return nil, err
	}
	extraBytes, err := bson.Marshal(extra)
	if err != nil {
		return nil, err
	}

	return append(b, mergeDocuments(cmdBytes, extraBytes)...), nil
}

// mergeDocuments appends the elements of extra to base, producing a
// single document.
func mergeDocuments(base, extra []byte) []byte {
	merged := make([]byte, 0, len(base)+len(extra)-5)
	merged = append(merged, base[:len(base)-1]...)
	merged = append(merged, extra[4:len(extra)-1]...)
	merged = append(merged, 0)
	setInt32(merged, 0, int32(len(merged)))
	return merged
}

// validateDocuments checks that bytes is a well-formed concatenation of
// BSON documents.
func validateDocuments(b []byte) error {
	pos := 0
	for pos < len(b) {
		n, err := partitionDocument(b[pos:])
		if err != nil {
			return err
		}
		pos += n
	}
	return nil
}

func addCString(b []byte, s string) []byte {
	b = append(b, []byte(s)...)
	return append(b, 0)
}

func addInt32(b []byte, i int32) []byte {
	return append(b, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
}

func addInt64(b []byte, i int64) []byte {
	return append(b, byte(i), byte(i>>8), byte(i>>16), byte(i>>24), byte(i>>32), byte(i>>40), byte(i>>48), byte(i>>56))
}

func addMarshalled(b []byte, data interface{}) ([]byte, error) {
	if data == nil {
		return append(b, 5, 0, 0, 0, 0), nil
	}

	dataBytes, err := bson.Marshal(data)
	if err != nil {
		return nil, err
	}

	return append(b, dataBytes...), nil
}

func setInt32(b []byte, pos int32, i int32) {
	b[pos] = byte(i)
	b[pos+1] = byte(i >> 8)
	b[pos+2] = byte(i >> 16)
	b[pos+3] = byte(i >> 24)
}

func addHeader(b []byte, length, requestID, responseTo, opCode int32) []byte {
	b = addInt32(b, length)
	b = addInt32(b, requestID)
	b = addInt32(b, responseTo)
	return addInt32(b, opCode)
}

func readInt32(b []byte, pos int32) int32 {
	return (int32(b[pos+0])) |
		(int32(b[pos+1]) << 8) |
		(int32(b[pos+2]) << 16) |
		(int32(b[pos+3]) << 24)
}

func readInt64(b []byte, pos int32) int64 {
	return (int64(b[pos+0])) |
		(int64(b[pos+1]) << 8) |
		(int64(b[pos+2]) << 16) |
		(int64(b[pos+3]) << 24) |
		(int64(b[pos+4]) << 32) |
		(int64(b[pos+5]) << 40) |
		(int64(b[pos+6]) << 48) |
		(int64(b[pos+7]) << 56)
}

// partitionDocument reports the length of the BSON document at the
// start of bytes, validating it fits.
func partitionDocument(bytes []byte) (int, error) {
	if len(bytes) < 4 {
		return 0, malformedf("document length requires 4 bytes but only %d available", len(bytes))
	}

	n := int(readInt32(bytes, 0))
	if n < 5 {
		return 0, malformedf("document length %d is impossibly small", n)
	}
	if n > len(bytes) {
		return 0, malformedf("document length %d exceeds the %d available bytes", n, len(bytes))
	}
	if bytes[n-1] != 0 {
		return 0, malformedf("document is not null-terminated")
	}

	return n, nil
}
