package cluster

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/server"
)

// ErrClusterClosed occurs when a closed cluster is used.
var ErrClusterClosed = errors.New("cluster is closed")

// ErrNoSuitableServer occurs when no server satisfies the selector
// within the server selection timeout.
var ErrNoSuitableServer = errors.New("no suitable server found before the server selection timeout")

// New creates a new cluster. Internally, it
// creates a new Monitor with which to monitor the
// state of the cluster. When the Cluster is closed,
// the monitor will be stopped.
func New(opts ...Option) (Cluster, error) {
	monitor, err := StartMonitor(opts...)
	if err != nil {
		return nil, err
	}

	cluster := newCluster(monitor)
	cluster.ownsMonitor = true
	return cluster, nil
}

// NewWithMonitor creates a new Cluster from
// an existing monitor. When the cluster is closed,
// the monitor will not be stopped.
func NewWithMonitor(monitor *Monitor) Cluster {
	return newCluster(monitor)
}

func newCluster(monitor *Monitor) *clusterImpl {
	cluster := &clusterImpl{
		monitor: monitor,
		waiters: make(map[int64]chan struct{}),
		servers: make(map[model.Addr]*server.Server),
		current: &model.Cluster{},
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	cluster.subscribeToMonitor()
	return cluster
}

// Cluster represents a connection to a cluster.
type Cluster interface {
	// Close closes the cluster.
	Close()
	// Model gets a description of the cluster as of the last update.
	Model() *model.Cluster
	// SelectServer selects a server given a selector.
	SelectServer(context.Context, ServerSelector) (*server.Server, error)
}

// ServerSelector is a function that selects a server.
type ServerSelector func(*model.Cluster, []*model.Server) ([]*model.Server, error)

type clusterImpl struct {
	monitor      *Monitor
	ownsMonitor  bool
	waiters      map[int64]chan struct{}
	lastWaiterID int64
	waiterLock   sync.Mutex
	current      *model.Cluster
	currentLock  sync.Mutex
	rand         *rand.Rand
	randLock     sync.Mutex

	serversLock sync.Mutex
	servers     map[model.Addr]*server.Server
	closed      bool
}

func (c *clusterImpl) subscribeToMonitor() {
	updates, _, _ := c.monitor.Subscribe()
	go func() {
		for cm := range updates {
			c.currentLock.Lock()
			c.current = cm
			c.currentLock.Unlock()

			c.pruneServers(cm)

			c.waiterLock.Lock()
			for _, waiter := range c.waiters {
				select {
				case waiter <- struct{}{}:
				default:
				}
			}
			c.waiterLock.Unlock()
		}
		c.waiterLock.Lock()
		for id, ch := range c.waiters {
			close(ch)
			delete(c.waiters, id)
		}
		c.waiterLock.Unlock()
	}()
}

// pruneServers closes servers that are no longer part of the topology.
func (c *clusterImpl) pruneServers(cm *model.Cluster) {
	c.serversLock.Lock()
	defer c.serversLock.Unlock()
	if c.closed {
		return
	}
	for addr, s := range c.servers {
		if _, ok := cm.Server(addr); !ok {
			s.Close()
			delete(c.servers, addr)
		}
	}
}

func (c *clusterImpl) Close() {
	c.serversLock.Lock()
	if c.closed {
		c.serversLock.Unlock()
		return
	}
	c.closed = true
	for addr, s := range c.servers {
		s.Close()
		delete(c.servers, addr)
	}
	c.serversLock.Unlock()

	if c.ownsMonitor {
		c.monitor.Stop()
	}
}

func (c *clusterImpl) Model() *model.Cluster {
	var current *model.Cluster
	c.currentLock.Lock()
	current = c.current
	c.currentLock.Unlock()
	return current
}

func (c *clusterImpl) SelectServer(ctx context.Context, selector ServerSelector) (*server.Server, error) {
	// the configured latency window applies on top of whatever the
	// caller asked for
	selector = CompositeSelector([]ServerSelector{selector, LatencySelector(c.monitor.cfg.localThreshold)})

	timer := time.NewTimer(c.monitor.cfg.serverSelectionTimeout)
	updated, id := c.awaitUpdates()
	for {
		clusterModel := c.Model()

		suitable, err := selector(clusterModel, clusterModel.Servers)
		if err != nil {
			timer.Stop()
			c.removeWaiter(id)
			return nil, err
		}

		if len(suitable) > 0 {
			timer.Stop()
			c.removeWaiter(id)
			// rand.Rand is not safe for concurrent use
			c.randLock.Lock()
			selected := suitable[c.rand.Intn(len(suitable))]
			c.randLock.Unlock()
			return c.serverForAddr(selected.Addr)
		}

		c.monitor.RequestImmediateCheck()

		select {
		case <-ctx.Done():
			timer.Stop()
			c.removeWaiter(id)
			return nil, internal.WrapError(ctx.Err(), "server selection failed")
		case <-updated:
			// topology has changed
		case <-timer.C:
			c.removeWaiter(id)
			return nil, ErrNoSuitableServer
		}
	}
}

// serverForAddr returns the cluster's server for the address, creating
// it on first use.
func (c *clusterImpl) serverForAddr(addr model.Addr) (*server.Server, error) {
	c.serversLock.Lock()
	defer c.serversLock.Unlock()

	if c.closed {
		return nil, ErrClusterClosed
	}

	if s, ok := c.servers[addr]; ok {
		return s, nil
	}

	monitor, ok := c.monitor.ServerMonitor(addr)
	if !ok {
		return nil, fmt.Errorf("no monitor for server %s", addr)
	}

	s := server.NewWithMonitor(monitor)
	c.servers[addr] = s
	return s, nil
}

// awaitUpdates returns a channel which will be signaled when the
// cluster model is updated, and an id which can later be used
// to remove this channel from the clusterImpl.waiters map.
func (c *clusterImpl) awaitUpdates() (<-chan struct{}, int64) {
	id := atomic.AddInt64(&c.lastWaiterID, 1)
	ch := make(chan struct{}, 1)
	c.waiterLock.Lock()
	c.waiters[id] = ch
	c.waiterLock.Unlock()
	return ch, id
}

func (c *clusterImpl) removeWaiter(id int64) {
	c.waiterLock.Lock()
	delete(c.waiters, id)
	c.waiterLock.Unlock()
}
