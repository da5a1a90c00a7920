package conn

import (
	"crypto/tls"
	"time"

	"github.com/mongowire/mongowire/msg"
)

func newConfig(opts ...Option) *config {
	cfg := &config{
		codec:          msg.NewWireProtocolCodec(),
		dialer:         dialNet,
		connectTimeout: 30 * time.Second,
		keepAlive:      true,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Option configures a connection.
type Option func(*config)

type config struct {
	appName        string
	codec          msg.Codec
	compressors    []string
	connectTimeout time.Duration
	dialer         NetDialer
	idleTimeout    time.Duration
	keepAlive      bool
	lifeTimeout    time.Duration
	socketTimeout  time.Duration
	tlsConfig      *tls.Config
}

// WithAppName sets the application name which gets
// sent to the server during the handshake.
func WithAppName(name string) Option {
	return func(c *config) {
		c.appName = name
	}
}

// WithCodec sets the codec to use to encode and
// decode messages.
func WithCodec(codec msg.Codec) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// WithCompressors sets the wire compressors to offer during the
// handshake, in preference order. A compressor is only used when the
// server also supports it.
func WithCompressors(names ...string) Option {
	return func(c *config) {
		c.compressors = names
	}
}

// WithConnectTimeout sets the timeout for dialing the transport.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.connectTimeout = timeout
	}
}

// WithDialer defines the dialer for the transport.
func WithDialer(dialer NetDialer) Option {
	return func(c *config) {
		c.dialer = dialer
	}
}

// WithIdleTimeout sets how long a connection may sit unused
// before it expires.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.idleTimeout = timeout
	}
}

// WithLifeTimeout sets how long a connection may live
// before it expires.
func WithLifeTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.lifeTimeout = timeout
	}
}

// WithSocketTimeout sets the deadline applied to each read and write
// when the operation's context carries no deadline of its own.
func WithSocketTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.socketTimeout = timeout
	}
}

// WithTLSConfig sets the TLS configuration for the transport. The
// configuration is consumed as-is; loading certificates is the
// caller's concern.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *config) {
		c.tlsConfig = tlsConfig
	}
}
