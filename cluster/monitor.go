package cluster

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/server"
)

// StartMonitor begins monitoring a cluster.
func StartMonitor(opts ...Option) (*Monitor, error) {
	cfg := newConfig(opts...)

	m := &Monitor{
		cfg:         cfg,
		subscribers: make(map[int64]chan *model.Cluster),
		changes:     make(chan *model.Server),
		current:     &model.Cluster{},
		fsm:         model.NewFSM(),
		servers:     make(map[model.Addr]*server.Monitor),
	}

	if cfg.replicaSetName != "" {
		m.fsm.SetName = cfg.replicaSetName
		m.fsm.Kind = model.ReplicaSetNoPrimary
	}
	if cfg.mode == SingleMode {
		m.fsm.Kind = model.Single
	}

	for _, addr := range cfg.seedList {
		canonicalized := addr.Canonicalize()
		m.fsm.AddServer(canonicalized)
		m.startMonitoring(canonicalized)
	}

	go func() {
		for change := range m.changes {
			// apply the change
			c := m.apply(change)
			if c == nil {
				continue
			}

			m.currentLock.Lock()
			m.current = c
			m.currentLock.Unlock()

			// send the change to all subscribers
			m.subscriberLock.Lock()
			for _, ch := range m.subscribers {
				select {
				case <-ch:
					// drain the channel if not empty
				default:
					// do nothing if chan already empty
				}
				ch <- c
			}
			m.subscriberLock.Unlock()
		}
		m.subscriberLock.Lock()
		for id, ch := range m.subscribers {
			close(ch)
			delete(m.subscribers, id)
		}
		m.subscriptionsClosed = true
		m.subscriberLock.Unlock()
	}()

	return m, nil
}

// MonitorMode indicates the mode with which to run the monitor.
type MonitorMode uint8

// MonitorMode constants.
const (
	AutomaticMode MonitorMode = iota
	SingleMode
)

// Monitor continuously monitors the cluster for changes
// and reacts accordingly, adding or removing servers as necessary.
type Monitor struct {
	cfg         *config
	currentLock sync.Mutex
	current     *model.Cluster

	changes chan *model.Server
	fsm     *model.FSM

	subscribers         map[int64]chan *model.Cluster
	lastSubscriberID    int64
	subscriptionsClosed bool
	subscriberLock      sync.Mutex

	serversLock   sync.Mutex
	serversClosed bool
	servers       map[model.Addr]*server.Monitor
}

// ServerMonitor gets the server monitor for the specified address. It
// is imperative that this monitor not be stopped.
func (m *Monitor) ServerMonitor(addr model.Addr) (*server.Monitor, bool) {
	m.serversLock.Lock()
	sm, ok := m.servers[addr]
	m.serversLock.Unlock()
	return sm, ok
}

// Stop turns the monitor off.
func (m *Monitor) Stop() {
	m.serversLock.Lock()
	m.serversClosed = true
	for addr, sm := range m.servers {
		m.stopMonitoring(addr, sm)
	}
	m.serversLock.Unlock()

	close(m.changes)
}

// Subscribe returns a channel on which all updated cluster models
// will be sent. The channel will have a buffer size of one, and
// will be pre-populated with the current model.
// Subscribe also returns a function that, when called, will close
// the subscription channel and remove it from the list of subscriptions.
func (m *Monitor) Subscribe() (<-chan *model.Cluster, func(), error) {
	// create channel and populate with current state
	ch := make(chan *model.Cluster, 1)
	m.currentLock.Lock()
	ch <- m.current
	m.currentLock.Unlock()

	// add channel to subscribers
	m.subscriberLock.Lock()
	defer m.subscriberLock.Unlock()
	if m.subscriptionsClosed {
		close(ch)
		return nil, nil, errors.New("cannot subscribe to monitor after stopping it")
	}
	m.lastSubscriberID++
	id := m.lastSubscriberID
	m.subscribers[id] = ch

	unsubscribe := func() {
		m.subscriberLock.Lock()
		if !m.subscriptionsClosed {
			close(ch)
			delete(m.subscribers, id)
		}
		m.subscriberLock.Unlock()
	}

	return ch, unsubscribe, nil
}

// RequestImmediateCheck will send heartbeats to all the servers in the
// cluster right away, instead of waiting for the heartbeat timeout.
func (m *Monitor) RequestImmediateCheck() {
	m.serversLock.Lock()
	for _, sm := range m.servers {
		sm.RequestImmediateCheck()
	}
	m.serversLock.Unlock()
}

// startMonitoring requires the serversLock to be held (or, during
// construction, exclusive access to the monitor).
func (m *Monitor) startMonitoring(addr model.Addr) {
	if _, ok := m.servers[addr]; ok {
		// already monitoring this one
		return
	}

	sm, err := server.StartMonitor(addr, m.cfg.serverOpts...)
	if err != nil {
		logrus.WithError(err).WithField("addr", addr).Warn("failed starting server monitor")
		return
	}

	m.servers[addr] = sm

	updates, _, _ := sm.Subscribe()

	go func() {
		for u := range updates {
			m.changes <- u
		}
	}()
}

func (m *Monitor) stopMonitoring(addr model.Addr, sm *server.Monitor) {
	sm.Stop()
	delete(m.servers, addr)
}

func (m *Monitor) apply(s *model.Server) *model.Cluster {
	old := m.fsm.Cluster
	if err := m.fsm.Apply(s); err != nil {
		logrus.WithError(err).WithField("addr", s.Addr).Warn("rejected incompatible server")
	}
	updated := m.fsm.Cluster

	diff := model.DiffCluster(&old, &updated)
	m.serversLock.Lock()
	defer m.serversLock.Unlock()
	if m.serversClosed {
		return nil
	}
	for _, removed := range diff.RemovedServers {
		if sm, ok := m.servers[removed.Addr]; ok {
			m.stopMonitoring(removed.Addr, sm)
		}
	}
	for _, added := range diff.AddedServers {
		m.startMonitoring(added.Addr)
	}
	return &updated
}
