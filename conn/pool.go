package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/mongowire/mongowire/internal"
)

// ErrPoolClosed is an error that occurs when
// attempting to use a pool that is closed.
var ErrPoolClosed = errors.New("pool is closed")

// PoolExhaustedError occurs when a connection could not be checked out
// before the caller's deadline. No connection was harmed; the pool was
// simply at capacity for the whole wait.
type PoolExhaustedError struct {
	inner error
}

func (e *PoolExhaustedError) Message() string {
	return "pool is at capacity"
}

func (e *PoolExhaustedError) Error() string {
	return internal.RolledUpErrorMessage(e)
}

// Inner gets the inner error if one exists.
func (e *PoolExhaustedError) Inner() error {
	return e.inner
}

const reapInterval = time.Minute

// NewPool creates a new connection pool. Waiters for a connection are
// admitted in the order they arrived. The pool never dials ahead of
// demand; minSize only shields that many idle connections from the
// idle reaper.
func NewPool(minSize, maxSize uint64, idleTimeout time.Duration, factory func(context.Context) (Connection, error)) *Pool {
	p := &Pool{
		factory:     factory,
		sem:         semaphore.NewWeighted(int64(maxSize)),
		minSize:     minSize,
		idleTimeout: idleTimeout,
		done:        make(chan struct{}),
	}

	if idleTimeout > 0 {
		go p.reap()
	}

	return p
}

// Pool holds connections such that they can be checked out
// and reused.
type Pool struct {
	factory     func(context.Context) (Connection, error)
	sem         *semaphore.Weighted
	minSize     uint64
	idleTimeout time.Duration
	done        chan struct{}

	mu     sync.Mutex
	idle   []*poolConn
	closed bool
	gen    uint32
}

// Clear expires every connection currently owned by the pool. Idle
// connections are closed immediately; checked-out connections are
// closed as they come back.
func (p *Pool) Clear() {
	atomic.AddUint32(&p.gen, 1)

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		c.Connection.Close()
	}
}

// Close closes the pool, making it unusable. It closes
// all idle connections.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.done)
	for _, c := range idle {
		c.Connection.Close()
	}
}

// Get gets a connection from the pool. To return the connection
// to the pool, close it.
func (p *Pool) Get(ctx context.Context) (Connection, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, &PoolExhaustedError{inner: err}
	}

	gen := atomic.LoadUint32(&p.gen)

	for {
		c, ok := p.popIdle()
		if !ok {
			break
		}
		if c.Expired() {
			c.Connection.Close()
			continue
		}
		return c, nil
	}

	p.mu.Lock()
	closed = p.closed
	p.mu.Unlock()
	if closed {
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}

	c, err := p.factory(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	return &poolConn{Connection: c, p: p, gen: gen}, nil
}

func (p *Pool) popIdle() (*poolConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.idle)
	if n == 0 {
		return nil, false
	}

	c := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return c, true
}

func (p *Pool) connExpired(gen uint32) bool {
	return gen < atomic.LoadUint32(&p.gen)
}

func (p *Pool) returnConn(c *poolConn) error {
	defer p.sem.Release(1)

	// A connection that faulted, expired, or belongs to an older
	// generation is never requeued.
	if c.Expired() || !c.Alive() {
		return c.Connection.Close()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return c.Connection.Close()
	}
	c.idleSince = time.Now()
	p.idle = append(p.idle, c)
	p.mu.Unlock()

	return nil
}

// reap periodically drops idle connections that have sat past the idle
// timeout.
func (p *Pool) reap() {
	interval := p.idleTimeout
	if interval > reapInterval {
		interval = reapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-p.done:
			return
		}

		p.reapOnce(time.Now().Add(-p.idleTimeout))
	}
}

// reapOnce drops expired idle connections unconditionally, then stale
// ones, oldest first, without going below the pool's minimum size.
func (p *Pool) reapOnce(cutoff time.Time) {
	p.mu.Lock()
	var dropped, live []*poolConn
	for _, c := range p.idle {
		if c.Expired() {
			dropped = append(dropped, c)
		} else {
			live = append(live, c)
		}
	}

	excess := len(live) - int(p.minSize)
	kept := live[:0]
	for _, c := range live {
		if excess > 0 && c.idleSince.Before(cutoff) {
			dropped = append(dropped, c)
			excess--
			continue
		}
		kept = append(kept, c)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, c := range dropped {
		if err := c.Connection.Close(); err != nil {
			logrus.WithError(err).Warn("failed closing idle connection")
		}
	}
	if len(dropped) > 0 {
		logrus.WithField("count", len(dropped)).Debug("reaped idle connections")
	}
}

type poolConn struct {
	Connection
	p   *Pool
	gen uint32

	idleSince time.Time
}

func (c *poolConn) Close() error {
	return c.p.returnConn(c)
}

func (c *poolConn) Expired() bool {
	return c.Connection.Expired() || c.p.connExpired(c.gen)
}
