package server

import (
	"time"

	"github.com/mongowire/mongowire/conn"
)

func newConfig(opts ...Option) *config {
	cfg := &config{
		dialer:            conn.Dial,
		heartbeatInterval: 10 * time.Second,
		maxConns:          100,
	}

	cfg.apply(opts...)

	return cfg
}

// Option configures a server.
type Option func(*config)

type config struct {
	connOpts          []conn.Option
	dialer            conn.Dialer
	heartbeatInterval time.Duration
	maxConns          uint64
	minConns          uint64
	maxIdleTime       time.Duration
}

func (c *config) reconfig(opts ...Option) *config {
	cfg := &config{
		connOpts:          c.connOpts,
		dialer:            c.dialer,
		heartbeatInterval: c.heartbeatInterval,
		maxConns:          c.maxConns,
		minConns:          c.minConns,
		maxIdleTime:       c.maxIdleTime,
	}

	cfg.apply(opts...)
	return cfg
}

func (c *config) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithConnectionDialer configures the dialer to use
// to create a new connection.
func WithConnectionDialer(dialer conn.Dialer) Option {
	return func(c *config) {
		c.dialer = dialer
	}
}

// WithConnectionOptions configures server's connections.
func WithConnectionOptions(opts ...conn.Option) Option {
	return func(c *config) {
		c.connOpts = opts
	}
}

// WithHeartbeatInterval configures a server's heartbeat interval.
// This option will be ignored when creating a Server with a
// pre-existing monitor.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *config) {
		c.heartbeatInterval = interval
	}
}

// WithMaxConnections configures the maximum number of connections to
// allow for a given server.
func WithMaxConnections(max uint64) Option {
	return func(c *config) {
		c.maxConns = max
	}
}

// WithMinConnections configures the number of pooled connections the
// idle reaper leaves alone.
func WithMinConnections(min uint64) Option {
	return func(c *config) {
		c.minConns = min
	}
}

// WithMaxIdleTime configures how long a connection can sit idle in the
// server's pool before being closed.
func WithMaxIdleTime(d time.Duration) Option {
	return func(c *config) {
		c.maxIdleTime = d
	}
}
