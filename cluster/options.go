package cluster

import (
	"crypto/tls"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mongowire/mongowire/auth"
	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/connstring"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/server"
)

func newConfig(opts ...Option) *config {
	cfg := &config{
		seedList:               []model.Addr{model.Addr("localhost:27017")},
		serverSelectionTimeout: 30 * time.Second,
		localThreshold:         15 * time.Millisecond,
	}

	cfg.apply(opts...)

	return cfg
}

// Option configures a cluster.
type Option func(*config)

type config struct {
	mode                   MonitorMode
	replicaSetName         string
	seedList               []model.Addr
	serverOpts             []server.Option
	serverSelectionTimeout time.Duration
	localThreshold         time.Duration
}

func (c *config) reconfig(opts ...Option) *config {
	cfg := &config{
		mode:                   c.mode,
		replicaSetName:         c.replicaSetName,
		seedList:               c.seedList,
		serverOpts:             c.serverOpts,
		serverSelectionTimeout: c.serverSelectionTimeout,
		localThreshold:         c.localThreshold,
	}

	cfg.apply(opts...)
	return cfg
}

func (c *config) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithConnString configures the cluster using the connection string.
func WithConnString(cs connstring.ConnString) Option {
	return func(c *config) {
		var connOpts []conn.Option

		if cs.AppName != "" {
			connOpts = append(connOpts, conn.WithAppName(cs.AppName))
		}

		if len(cs.Compressors) > 0 {
			connOpts = append(connOpts, conn.WithCompressors(cs.Compressors...))
		}

		if cs.ConnectTimeoutSet {
			connOpts = append(connOpts, conn.WithConnectTimeout(cs.ConnectTimeout))
		}

		if len(cs.Hosts) > 0 {
			c.seedList = nil
			for _, host := range cs.Hosts {
				c.seedList = append(c.seedList, model.Addr(host).Canonicalize())
			}
		}

		if cs.HeartbeatIntervalSet {
			c.serverOpts = append(c.serverOpts, server.WithHeartbeatInterval(cs.HeartbeatInterval))
		}

		if cs.LocalThresholdSet {
			c.localThreshold = cs.LocalThreshold
		}

		if cs.MaxConnIdleTimeSet {
			connOpts = append(connOpts, conn.WithIdleTimeout(cs.MaxConnIdleTime))
			c.serverOpts = append(c.serverOpts, server.WithMaxIdleTime(cs.MaxConnIdleTime))
		}

		if cs.MaxPoolSizeSet {
			c.serverOpts = append(c.serverOpts, server.WithMaxConnections(cs.MaxPoolSize))
		}

		if cs.MinPoolSizeSet {
			c.serverOpts = append(c.serverOpts, server.WithMinConnections(cs.MinPoolSize))
		}

		if cs.ReplicaSet != "" {
			c.replicaSetName = cs.ReplicaSet
		}

		if cs.ServerSelectionTimeoutSet {
			c.serverSelectionTimeout = cs.ServerSelectionTimeout
		}

		if cs.SocketTimeoutSet {
			connOpts = append(connOpts, conn.WithSocketTimeout(cs.SocketTimeout))
		}

		if cs.SSL {
			connOpts = append(connOpts, conn.WithTLSConfig(&tls.Config{}))
		}

		if cs.Username != "" {
			source := "admin"
			if cs.AuthSource != "" {
				source = cs.AuthSource
			} else if cs.Database != "" {
				source = cs.Database
			}

			cred := &auth.Cred{
				Source:      source,
				Username:    cs.Username,
				Password:    cs.Password,
				PasswordSet: cs.PasswordSet,
			}

			authenticator, err := auth.CreateAuthenticator(cs.AuthMechanism, cred)
			if err != nil {
				logrus.WithError(err).Warn("ignoring unusable auth configuration")
			} else {
				c.serverOpts = append(
					c.serverOpts,
					server.WithConnectionDialer(auth.Dialer(conn.Dial, authenticator)),
				)
			}
		}

		if len(connOpts) > 0 {
			c.serverOpts = append(c.serverOpts, server.WithConnectionOptions(connOpts...))
		}
	}
}

// WithLocalThreshold configures the latency window within which servers
// are considered equally close.
func WithLocalThreshold(threshold time.Duration) Option {
	return func(c *config) {
		c.localThreshold = threshold
	}
}

// WithMode configures the cluster's monitor mode.
// This option will be ignored when the cluster is created with a
// pre-existing monitor.
func WithMode(mode MonitorMode) Option {
	return func(c *config) {
		c.mode = mode
	}
}

// WithReplicaSetName configures the cluster's default replica set name.
// This option will be ignored when the cluster is created with a
// pre-existing monitor.
func WithReplicaSetName(name string) Option {
	return func(c *config) {
		c.replicaSetName = name
	}
}

// WithSeedList configures a cluster's seed list.
// This option will be ignored when the cluster is created with a
// pre-existing monitor.
func WithSeedList(addrs ...model.Addr) Option {
	return func(c *config) {
		c.seedList = addrs
	}
}

// WithServerSelectionTimeout configures a cluster's server selection
// timeout.
func WithServerSelectionTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.serverSelectionTimeout = timeout
	}
}

// WithServerOptions configures a cluster's server options for
// when a new server needs to get created. The options provided
// overwrite all previously configured options.
func WithServerOptions(opts ...server.Option) Option {
	return func(c *config) {
		c.serverOpts = opts
	}
}

// WithMoreServerOptions configures a cluster's server options for
// when a new server needs to get created. The options provided are
// appended to any current options and may override previously
// configured options.
func WithMoreServerOptions(opts ...server.Option) Option {
	return func(c *config) {
		c.serverOpts = append(c.serverOpts, opts...)
	}
}
