package conn_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/mgo.v2/bson"

	. "github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/msg"
)

// fakeServer answers wire frames on the server half of a net.Pipe. It
// pattern-matches handshake commands and hands anything else to serve.
type fakeServer struct {
	t         *testing.T
	transport net.Conn
	codec     msg.Codec

	maxWireVersion uint8

	// frames seen after the handshake
	opcodes chan int32
}

func newFakeServer(t *testing.T, transport net.Conn, maxWireVersion uint8) *fakeServer {
	return &fakeServer{
		t:              t,
		transport:      transport,
		codec:          msg.NewWireProtocolCodec(),
		maxWireVersion: maxWireVersion,
		opcodes:        make(chan int32, 16),
	}
}

func (s *fakeServer) run() {
	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		for {
			frame, err := readFrame(s.transport)
			if err != nil {
				return
			}
			frames <- frame
		}
	}()

	for frame := range frames {
		reqID := int32(frame[4]) | int32(frame[5])<<8 | int32(frame[6])<<16 | int32(frame[7])<<24
		opcode := int32(frame[12]) | int32(frame[13])<<8 | int32(frame[14])<<16 | int32(frame[15])<<24

		switch {
		case bytes.Contains(frame, []byte("ismaster")):
			s.reply(reqID, bson.D{
				{Name: "ok", Value: 1},
				{Name: "ismaster", Value: true},
				{Name: "minWireVersion", Value: 0},
				{Name: "maxWireVersion", Value: int(s.maxWireVersion)},
				{Name: "maxBsonObjectSize", Value: 16777216},
				{Name: "maxMessageSizeBytes", Value: 48000000},
				{Name: "maxWriteBatchSize", Value: 100000},
			})
		case bytes.Contains(frame, []byte("buildInfo")):
			s.reply(reqID, bson.D{
				{Name: "ok", Value: 1},
				{Name: "version", Value: "4.0.0"},
				{Name: "versionArray", Value: []int{4, 0, 0}},
			})
		case bytes.Contains(frame, []byte("getLastError")):
			s.reply(reqID, bson.D{
				{Name: "ok", Value: 1},
				{Name: "connectionId", Value: 42},
			})
		default:
			s.opcodes <- opcode
			s.reply(reqID, bson.D{{Name: "ok", Value: 1}})
		}
	}
}

func (s *fakeServer) reply(responseTo int32, doc bson.D) {
	docBytes, err := bson.Marshal(doc)
	require.NoError(s.t, err)

	err = s.codec.Encode(s.transport, &msg.Reply{
		RespTo:         responseTo,
		NumberReturned: 1,
		DocumentsBytes: docBytes,
	})
	require.NoError(s.t, err)
}

func readFrame(r net.Conn) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := int(header[0]) | int(header[1])<<8 | int(header[2])<<16 | int(header[3])<<24
	frame := make([]byte, length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[4:]); err != nil {
		return nil, err
	}
	return frame, nil
}

func dialFake(t *testing.T, maxWireVersion uint8, opts ...Option) (Connection, *fakeServer) {
	clientSide, serverSide := net.Pipe()

	server := newFakeServer(t, serverSide, maxWireVersion)
	go server.run()

	opts = append(opts, WithDialer(func(_ context.Context, _, _ string) (net.Conn, error) {
		return clientSide, nil
	}))

	c, err := Dial(context.Background(), model.Addr("localhost:27017"), opts...)
	require.NoError(t, err)
	return c, server
}

func TestDial_handshake(t *testing.T) {
	t.Parallel()

	c, _ := dialFake(t, 6)
	defer c.Close()

	desc := c.Desc()
	require.Equal(t, uint8(6), desc.WireVersion.Max)
	require.Equal(t, "4.0.0", desc.Version.String())
	require.Equal(t, uint32(16777216), desc.MaxBSONObjectSize)
	require.True(t, c.Alive())
}

func TestConnection_uses_op_msg_when_supported(t *testing.T) {
	t.Parallel()

	c, server := dialFake(t, 6)
	defer c.Close()

	var result bson.M
	req := msg.NewCommand(msg.NextRequestID(), "test", false, bson.D{{Name: "ping", Value: 1}})
	require.NoError(t, ExecuteCommand(context.Background(), c, req, &result))

	require.Equal(t, int32(2013), <-server.opcodes)
}

func TestConnection_uses_op_query_on_old_servers(t *testing.T) {
	t.Parallel()

	c, server := dialFake(t, 4)
	defer c.Close()

	var result bson.M
	req := msg.NewCommand(msg.NextRequestID(), "test", false, bson.D{{Name: "ping", Value: 1}})
	require.NoError(t, ExecuteCommand(context.Background(), c, req, &result))

	require.Equal(t, int32(2004), <-server.opcodes)
}

func TestConnection_socket_timeout_bounds_reads(t *testing.T) {
	t.Parallel()

	c, _ := dialFake(t, 6, WithSocketTimeout(50*time.Millisecond))
	defer c.Close()

	// nothing is in flight, so a read can only end by deadline
	start := time.Now()
	_, err := c.Read(context.Background(), 0)
	require.Error(t, err)
	require.True(t, IsNetworkError(err), "expected a network error, got %v", err)
	require.True(t, time.Since(start) < 5*time.Second)
}

func TestConnection_out_of_order_response_kills_the_connection(t *testing.T) {
	t.Parallel()

	clientSide, serverSide := net.Pipe()
	server := newFakeServer(t, serverSide, 6)
	go server.run()

	c, err := Dial(context.Background(), model.Addr("localhost:27017"),
		WithDialer(func(_ context.Context, _, _ string) (net.Conn, error) {
			return clientSide, nil
		}))
	require.NoError(t, err)

	req := msg.NewCommand(msg.NextRequestID(), "test", false, bson.D{{Name: "ping", Value: 1}})
	require.NoError(t, c.Write(context.Background(), req))

	// the fake server correlates responses correctly, so ask for a
	// different request id to simulate a misaligned stream
	_, err = c.Read(context.Background(), req.RequestID()+1)
	require.Error(t, err)
	require.True(t, IsProtocolError(err), "expected a protocol error, got %v", err)
	require.False(t, c.Alive())
}

func TestConnection_malformed_frame_is_a_protocol_error(t *testing.T) {
	t.Parallel()

	c, server := dialFake(t, 6)

	// a frame whose length field is smaller than a header
	go server.transport.Write([]byte{8, 0, 0, 0, 0, 0, 0, 0})

	_, err := c.Read(context.Background(), 0)
	require.Error(t, err)
	require.True(t, IsProtocolError(err), "expected a protocol error, got %v", err)
	require.False(t, c.Alive())
}

func TestConnection_peer_hangup_is_a_network_error(t *testing.T) {
	t.Parallel()

	c, server := dialFake(t, 6)

	server.transport.Close()

	_, err := c.Read(context.Background(), 0)
	require.Error(t, err)
	require.True(t, IsNetworkError(err), "expected a network error, got %v", err)
	require.False(t, c.Alive())
}
