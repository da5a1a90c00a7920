package server

import (
	"context"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/msg"
)

// serverConn is a pooled connection that reports faults back to its
// server.
type serverConn struct {
	conn.Connection
	server *Server
}

// Read reads a message from the connection. Replies carrying a "not
// primary" or "node is recovering" error are reported to the server so
// the topology is refreshed immediately instead of at the next
// heartbeat.
func (c *serverConn) Read(ctx context.Context, responseTo int32) (msg.Response, error) {
	resp, err := c.Connection.Read(ctx, responseTo)
	if err != nil {
		c.server.fault(err)
		return resp, err
	}

	if cmdErr := commandErrorOf(resp); cmdErr != nil && conn.IsStateChangeError(cmdErr) {
		c.server.fault(cmdErr)
	}

	return resp, nil
}

// Write writes a number of messages to the connection.
func (c *serverConn) Write(ctx context.Context, reqs ...msg.Request) error {
	err := c.Connection.Write(ctx, reqs...)
	if err != nil {
		c.server.fault(err)
	}

	return err
}

// commandErrorOf sniffs a response for a server-reported error without
// consuming it. Responses that are not commands, or that cannot be
// decoded, are left for the protocol layer to deal with.
func commandErrorOf(resp msg.Response) error {
	cmdResp, ok := resp.(msg.CommandResponse)
	if !ok {
		return nil
	}

	var status struct {
		Ok       float64 `bson:"ok"`
		Code     int32   `bson:"code"`
		ErrMsg   string  `bson:"errmsg"`
		CodeName string  `bson:"codeName"`
	}
	if cmdResp.CommandDocument(&status) != nil || status.Ok == 1 {
		return nil
	}

	return &conn.CommandError{
		Code:    status.Code,
		Message: status.ErrMsg,
		Name:    status.CodeName,
	}
}
