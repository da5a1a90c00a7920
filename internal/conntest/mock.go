package conntest

import (
	"context"
	"fmt"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/msg"
)

// MockConnection is used to mock a connection for testing purposes.
type MockConnection struct {
	Dead      bool
	DescVal   *conn.Desc
	Sent      []msg.Request
	ResponseQ []*msg.Reply
	ReadErr   error
	WriteErr  error

	SkipResponseToFixup bool
}

// Alive returns whether the MockConnection is alive.
func (c *MockConnection) Alive() bool {
	return !c.Dead
}

// Close closes the MockConnection.
func (c *MockConnection) Close() error {
	c.Dead = true
	return nil
}

// MarkDead marks the MockConnection as dead.
func (c *MockConnection) MarkDead() {
	c.Dead = true
}

// Desc returns the description of the MockConnection.
func (c *MockConnection) Desc() *conn.Desc {
	if c.DescVal != nil {
		return c.DescVal
	}
	return &conn.Desc{}
}

// Expired returns whether the MockConnection is expired.
func (c *MockConnection) Expired() bool {
	return c.Dead
}

// Read reads a queued server response from the MockConnection.
func (c *MockConnection) Read(ctx context.Context, responseTo int32) (msg.Response, error) {
	if c.ReadErr != nil {
		err := c.ReadErr
		c.ReadErr = nil
		c.Dead = true
		return nil, err
	}

	if len(c.ResponseQ) == 0 {
		return nil, fmt.Errorf("no response queued")
	}
	resp := c.ResponseQ[0]
	c.ResponseQ = c.ResponseQ[1:]
	return resp, nil
}

// Write writes a wire protocol message to the MockConnection.
func (c *MockConnection) Write(ctx context.Context, reqs ...msg.Request) error {
	if c.WriteErr != nil {
		err := c.WriteErr
		c.WriteErr = nil
		c.Dead = true
		return err
	}

	for i, req := range reqs {
		c.Sent = append(c.Sent, req)
		if !c.SkipResponseToFixup && i < len(c.ResponseQ) {
			c.ResponseQ[i].RespTo = req.RequestID()
		}
	}
	return nil
}
