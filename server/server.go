package server

import (
	"context"
	"sync"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/model"
)

// New creates a new server. Internally, it creates a new Monitor with
// which to monitor the state of the server. When the Server is closed,
// the monitor will be stopped.
func New(addr model.Addr, opts ...Option) (*Server, error) {
	monitor, err := StartMonitor(addr, opts...)
	if err != nil {
		return nil, err
	}

	s := NewWithMonitor(monitor)
	s.ownsMonitor = true
	return s, nil
}

// NewWithMonitor creates a new Server from an existing monitor. When
// the server is closed, the monitor will not be stopped. Any unspecified
// options will have their default value pulled from the monitor.
func NewWithMonitor(monitor *Monitor, opts ...Option) *Server {
	cfg := monitor.cfg.reconfig(opts...)
	s := &Server{
		cfg:     cfg,
		monitor: monitor,
		current: &model.Server{Addr: monitor.addr},
	}

	s.pool = conn.NewPool(cfg.minConns, cfg.maxConns, cfg.maxIdleTime, func(ctx context.Context) (conn.Connection, error) {
		return cfg.dialer(ctx, monitor.addr, cfg.connOpts...)
	})

	updates, unsubscribe, _ := monitor.Subscribe()
	s.unsubscribe = unsubscribe
	if updates != nil {
		go func() {
			for m := range updates {
				s.applyUpdate(m)
			}
		}()
	}

	return s
}

// Server is a logical connection to a server. It holds a pool of
// connections and tracks the server's state via its monitor.
type Server struct {
	cfg         *config
	monitor     *Monitor
	ownsMonitor bool
	pool        *conn.Pool
	unsubscribe func()

	currentLock sync.Mutex
	current     *model.Server
}

// Addr returns the address of the server.
func (s *Server) Addr() model.Addr {
	return s.monitor.addr
}

// Model gets a description of the server as of the last heartbeat.
func (s *Server) Model() *model.Server {
	s.currentLock.Lock()
	current := s.current
	s.currentLock.Unlock()
	if current == nil {
		// no heartbeat has landed yet
		current = &model.Server{Addr: s.monitor.addr}
	}
	return current
}

// Close closes the server.
func (s *Server) Close() {
	s.unsubscribe()
	s.pool.Close()
	if s.ownsMonitor {
		s.monitor.Stop()
	}
}

// Connection gets a connection to the server. Closing the connection
// returns it to the pool.
func (s *Server) Connection(ctx context.Context) (conn.Connection, error) {
	c, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &serverConn{Connection: c, server: s}, nil
}

// RequestImmediateCheck asks the server's monitor to heartbeat now
// rather than waiting out the heartbeat interval.
func (s *Server) RequestImmediateCheck() {
	s.monitor.RequestImmediateCheck()
}

func (s *Server) applyUpdate(m *model.Server) {
	s.currentLock.Lock()
	s.current = m
	s.currentLock.Unlock()

	// A server that went unknown invalidates every pooled connection;
	// they were minted against state that no longer holds.
	if m.Kind == model.Unknown && m.LastError != nil {
		s.pool.Clear()
	}
}

// fault reacts to an error seen on one of the server's checked-out
// connections. Both transport faults and server-reported state changes
// invalidate the pooled connections, which were minted against state
// that no longer holds.
func (s *Server) fault(err error) {
	if conn.IsNetworkError(err) || conn.IsStateChangeError(err) {
		s.pool.Clear()
	}
	s.monitor.RequestImmediateCheck()
}
