package conn

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync/atomic"
	"time"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/msg"
	"github.com/mongowire/mongowire/msg/compress"
)

var globalClientConnectionID int32

func nextClientConnectionID() int32 {
	return atomic.AddInt32(&globalClientConnectionID, 1)
}

// Dialer dials a connection.
type Dialer func(ctx context.Context, addr model.Addr, opts ...Option) (Connection, error)

// Connection is responsible for reading and writing messages.
type Connection interface {
	// Alive indicates whether the connection is still usable. A
	// connection that has seen a transport fault or a protocol
	// violation is no longer alive.
	Alive() bool
	// Close closes the connection.
	Close() error
	// Desc gets a description of the connection.
	Desc() *Desc
	// Expired indicates if the connection has outlived its deadlines.
	Expired() bool
	// Read reads a message from the connection. The response must
	// correlate to responseTo; anything else is a protocol violation.
	Read(ctx context.Context, responseTo int32) (msg.Response, error)
	// Write writes a number of messages to the connection.
	Write(ctx context.Context, reqs ...msg.Request) error
}

// Dial opens a connection to a server and performs the handshake.
func Dial(ctx context.Context, addr model.Addr, opts ...Option) (Connection, error) {
	cfg := newConfig(opts...)

	if cfg.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.connectTimeout)
		defer cancel()
	}

	transport, err := cfg.dialer(ctx, addr.Network(), addr.String())
	if err != nil {
		return nil, &NetworkError{
			ConnectionID: addr.String(),
			message:      fmt.Sprintf("failed dialing %s", addr),
			inner:        err,
		}
	}

	if cfg.tlsConfig != nil {
		transport, err = wrapTLS(ctx, transport, addr, cfg.tlsConfig)
		if err != nil {
			return nil, &NetworkError{
				ConnectionID: addr.String(),
				message:      fmt.Sprintf("failed dialing %s", addr),
				inner:        err,
			}
		}
	}

	c := &connectionImpl{
		id:            fmt.Sprintf("%s[-%d]", addr, nextClientConnectionID()),
		addr:          addr,
		codec:         cfg.codec,
		transport:     transport,
		socketTimeout: cfg.socketTimeout,
		alive:         1,
	}

	if cfg.idleTimeout > 0 {
		c.idleTimeout = cfg.idleTimeout
		c.idleDeadline = time.Now().Add(cfg.idleTimeout)
	}
	if cfg.lifeTimeout > 0 {
		c.lifetimeDeadline = time.Now().Add(cfg.lifeTimeout)
	}

	err = c.initialize(ctx, cfg)
	if err != nil {
		c.transport.Close()
		return nil, internal.WrapErrorf(err, "failed initializing connection to %s", addr)
	}

	return c, nil
}

type connectionImpl struct {
	// id carries the client ordinal until the handshake learns the
	// server-assigned connection id.
	id        string
	addr      model.Addr
	codec     msg.Codec
	desc      *Desc
	transport net.Conn

	alive            int32
	idleTimeout      time.Duration
	idleDeadline     time.Time
	lifetimeDeadline time.Time
	socketTimeout    time.Duration
}

func (c *connectionImpl) Alive() bool {
	return atomic.LoadInt32(&c.alive) == 1
}

func (c *connectionImpl) Close() error {
	atomic.StoreInt32(&c.alive, 0)
	err := c.transport.Close()
	if err != nil {
		return c.networkError(err, "failed closing")
	}

	return nil
}

func (c *connectionImpl) Desc() *Desc {
	return c.desc
}

func (c *connectionImpl) Expired() bool {
	now := time.Now()
	if !c.idleDeadline.IsZero() && now.After(c.idleDeadline) {
		return true
	}
	if !c.lifetimeDeadline.IsZero() && now.After(c.lifetimeDeadline) {
		return true
	}
	return !c.Alive()
}

func (c *connectionImpl) Read(ctx context.Context, responseTo int32) (msg.Response, error) {
	if !c.Alive() {
		return nil, c.networkError(nil, "connection is dead")
	}

	if err := c.applyDeadline(ctx); err != nil {
		return nil, c.fault(c.networkError(err, "failed setting read deadline"))
	}

	message, err := c.codec.Decode(c.transport)
	if err != nil {
		if isMalformed(err) {
			return nil, c.fault(c.protocolError(err, "failed reading"))
		}
		return nil, c.fault(c.networkError(err, "failed reading"))
	}

	resp, ok := message.(msg.Response)
	if !ok {
		return nil, c.fault(c.protocolError(nil, fmt.Sprintf("received a %T, which is not a response", message)))
	}

	if resp.ResponseTo() != responseTo {
		// The stream is now misaligned with our requests and can't be
		// trusted for any in-flight or future reads.
		return nil, c.fault(c.protocolError(nil,
			fmt.Sprintf("received out of order response: expected %d but got %d", responseTo, resp.ResponseTo())))
	}

	c.bumpIdleDeadline()
	return resp, nil
}

func (c *connectionImpl) Write(ctx context.Context, requests ...msg.Request) error {
	if !c.Alive() {
		return c.networkError(nil, "connection is dead")
	}

	if err := c.applyDeadline(ctx); err != nil {
		return c.fault(c.networkError(err, "failed setting write deadline"))
	}

	messages := make([]msg.Message, 0, len(requests))
	for _, request := range requests {
		if c.supportsOpMsg() {
			request = msg.ConvertToMsg(request)
		}
		messages = append(messages, request)
	}

	err := c.codec.Encode(c.transport, messages...)
	if err != nil {
		if isMalformed(err) {
			return c.fault(c.protocolError(err, "failed writing"))
		}
		return c.fault(c.networkError(err, "failed writing"))
	}

	c.bumpIdleDeadline()
	return nil
}

func (c *connectionImpl) String() string {
	return c.id
}

func (c *connectionImpl) supportsOpMsg() bool {
	return c.desc != nil && c.desc.WireVersion.Includes(msg.OpmsgWireVersion)
}

func (c *connectionImpl) applyDeadline(ctx context.Context) error {
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	} else if c.socketTimeout > 0 {
		deadline = time.Now().Add(c.socketTimeout)
	}
	return c.transport.SetDeadline(deadline)
}

func (c *connectionImpl) bumpIdleDeadline() {
	if c.idleTimeout > 0 {
		c.idleDeadline = time.Now().Add(c.idleTimeout)
	}
}

// fault marks the connection dead and returns err unchanged.
func (c *connectionImpl) fault(err error) error {
	atomic.StoreInt32(&c.alive, 0)
	return err
}

func (c *connectionImpl) networkError(inner error, message string) error {
	return &NetworkError{
		ConnectionID: c.id,
		message:      fmt.Sprintf("connection(%s) error: %s", c.id, message),
		inner:        inner,
	}
}

func (c *connectionImpl) protocolError(inner error, message string) error {
	return &ProtocolError{
		ConnectionID: c.id,
		message:      fmt.Sprintf("connection(%s) error: %s", c.id, message),
		inner:        inner,
	}
}

func (c *connectionImpl) initialize(ctx context.Context, cfg *config) error {
	isMasterResult, buildInfoResult, err := describeServer(ctx, c, createClientDoc(cfg.appName), cfg.compressors)
	if err != nil {
		return err
	}

	c.desc = &Desc{
		Addr:                c.addr,
		GitVersion:          buildInfoResult.GitVersion,
		Compression:         isMasterResult.Compression,
		SaslSupportedMechs:  isMasterResult.SaslSupportedMechs,
		Version: model.Version{
			Desc:  buildInfoResult.Version,
			Parts: buildInfoResult.VersionArray,
		},
		MaxBSONObjectSize:   isMasterResult.MaxBSONObjectSize,
		MaxMessageSizeBytes: isMasterResult.MaxMessageSizeBytes,
		MaxWriteBatchSize:   isMasterResult.MaxWriteBatchSize,
		ReadOnly:            isMasterResult.ReadOnly,
		WireVersion: model.Range{
			Min: isMasterResult.MinWireVersion,
			Max: isMasterResult.MaxWireVersion,
		},
	}

	if compressor := compress.Negotiate(cfg.compressors, isMasterResult.Compression); compressor != nil {
		c.codec = msg.NewCompressedWireProtocolCodec(compressor)
	}

	getLastErrorReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "getLastError", Value: 1}},
	)

	var getLastErrorResult internal.GetLastErrorResult
	err = ExecuteCommand(ctx, c, getLastErrorReq, &getLastErrorResult)
	// The result is cosmetic. Without it we simply can't correlate
	// our logs with the server's.
	if err == nil {
		c.id = fmt.Sprintf("%s[%d]", c.addr, getLastErrorResult.ConnectionID)
	}

	return nil
}

func isMalformed(err error) bool {
	for err != nil {
		if _, ok := err.(*msg.MalformedError); ok {
			return true
		}
		wrapped, ok := err.(internal.WrappedError)
		if !ok {
			break
		}
		err = wrapped.Inner()
	}
	return false
}

func createClientDoc(appName string) bson.M {
	clientDoc := bson.M{
		"driver": bson.M{
			"name":    "mongowire",
			"version": internal.Version,
		},
		"os": bson.M{
			"type":         runtime.GOOS,
			"architecture": runtime.GOARCH,
		},
	}
	if appName != "" {
		clientDoc["application"] = bson.M{"name": appName}
	}

	return clientDoc
}

func describeServer(ctx context.Context, c Connection, clientDoc bson.M, compressors []string) (*internal.IsMasterResult, *internal.BuildInfoResult, error) {
	isMasterCmd := bson.D{{Name: "ismaster", Value: 1}}
	if clientDoc != nil {
		isMasterCmd = append(isMasterCmd, bson.DocElem{
			Name:  "client",
			Value: clientDoc,
		})
	}
	if len(compressors) > 0 {
		isMasterCmd = append(isMasterCmd, bson.DocElem{
			Name:  "compression",
			Value: compressors,
		})
	}

	isMasterReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		isMasterCmd,
	)
	buildInfoReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "buildInfo", Value: 1}},
	)

	var isMasterResult internal.IsMasterResult
	var buildInfoResult internal.BuildInfoResult
	err := ExecuteCommands(ctx, c, []msg.Request{isMasterReq, buildInfoReq}, []interface{}{&isMasterResult, &buildInfoResult})
	if err != nil {
		return nil, nil, err
	}

	return &isMasterResult, &buildInfoResult, nil
}
