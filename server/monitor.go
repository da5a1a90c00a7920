package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/model"
	"github.com/mongowire/mongowire/msg"
)

// Heartbeats are rate limited so that a burst of immediate-check
// requests cannot flood the server.
const minHeartbeatInterval = 500 * time.Millisecond

// rttSampleWindow is the number of recent heartbeat round trips that
// feed the average RTT.
const rttSampleWindow = 10

// StartMonitor returns a new Monitor. The monitor heartbeats the server
// on its own connection until stopped.
func StartMonitor(addr model.Addr, opts ...Option) (*Monitor, error) {
	cfg := newConfig(opts...)

	done := make(chan struct{})
	checkNow := make(chan struct{}, 1)
	m := &Monitor{
		cfg:  cfg,
		addr: addr,
		current: &model.Server{
			Addr: addr,
		},
		subscribers: make(map[int64]chan *model.Server),
		done:        done,
		checkNow:    checkNow,
	}

	updateServer := func(heartbeatTimer, rateLimitTimer *time.Timer) {
		// wait if the last heartbeat was less than
		// minHeartbeatInterval ago
		<-rateLimitTimer.C

		s := m.heartbeat()
		m.currentLock.Lock()
		m.current = s
		m.currentLock.Unlock()

		// send the update to all subscribers
		m.subscriberLock.Lock()
		for _, ch := range m.subscribers {
			select {
			case <-ch:
				// drain the channel if not empty
			default:
				// do nothing if chan already empty
			}
			ch <- s
		}
		m.subscriberLock.Unlock()

		// restart the timers
		rateLimitTimer.Stop()
		rateLimitTimer.Reset(minHeartbeatInterval)
		heartbeatTimer.Stop()
		heartbeatTimer.Reset(cfg.heartbeatInterval)
	}

	go func() {
		heartbeatTimer := time.NewTimer(0)
		rateLimitTimer := time.NewTimer(0)
		for {
			select {
			case <-heartbeatTimer.C:
				updateServer(heartbeatTimer, rateLimitTimer)

			case <-checkNow:
				updateServer(heartbeatTimer, rateLimitTimer)

			case <-done:
				heartbeatTimer.Stop()
				rateLimitTimer.Stop()
				if m.conn != nil {
					m.conn.Close()
					m.conn = nil
				}
				m.subscriberLock.Lock()
				for id, ch := range m.subscribers {
					close(ch)
					delete(m.subscribers, id)
				}
				m.subscriptionsClosed = true
				m.subscriberLock.Unlock()
				return
			}
		}
	}()

	return m, nil
}

// Monitor holds a channel that delivers updates to a server.
type Monitor struct {
	cfg *config

	subscribers         map[int64]chan *model.Server
	lastSubscriberID    int64
	subscriptionsClosed bool
	subscriberLock      sync.Mutex

	conn        conn.Connection
	current     *model.Server
	currentLock sync.Mutex
	checkNow    chan struct{}
	done        chan struct{}
	addr        model.Addr
	rttSamples  []float64
}

// Addr returns the address this monitor is monitoring.
func (m *Monitor) Addr() model.Addr {
	return m.addr
}

// Stop turns off the monitor.
func (m *Monitor) Stop() {
	close(m.done)
}

// Subscribe returns a channel on which all updated server descriptions
// will be sent. The channel will have a buffer size of one, and
// will be pre-populated with the current description.
// Subscribe also returns a function that, when called, will close
// the subscription channel and remove it from the list of subscriptions.
func (m *Monitor) Subscribe() (<-chan *model.Server, func(), error) {
	// create channel and populate with current state
	ch := make(chan *model.Server, 1)
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

// RequestImmediateCheck will cause the Monitor to send
// a heartbeat to the server right away, instead of waiting for
// the heartbeat timeout.
func (m *Monitor) RequestImmediateCheck() {
	select {
	case m.checkNow <- struct{}{}:
	default:
	}
}

func (m *Monitor) describeServer(ctx context.Context) (*internal.IsMasterResult, *internal.BuildInfoResult, error) {
	isMasterReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "ismaster", Value: 1}},
	)
	buildInfoReq := msg.NewCommand(
		msg.NextRequestID(),
		"admin",
		true,
		bson.D{{Name: "buildInfo", Value: 1}},
	)

	var isMasterResult internal.IsMasterResult
	var buildInfoResult internal.BuildInfoResult
	err := conn.ExecuteCommands(ctx, m.conn, []msg.Request{isMasterReq, buildInfoReq}, []interface{}{&isMasterResult, &buildInfoResult})
	if err != nil {
		return nil, nil, err
	}

	return &isMasterResult, &buildInfoResult, nil
}

func (m *Monitor) heartbeat() *model.Server {
	const maxRetryCount = 2
	var savedErr error
	var s *model.Server
	ctx := context.Background()
	for i := 1; i <= maxRetryCount; i++ {
		if m.conn != nil && m.conn.Expired() {
			m.conn.Close()
			m.conn = nil
		}

		if m.conn == nil {
			c, err := m.cfg.dialer(ctx, m.addr, m.cfg.connOpts...)
			if err != nil {
				savedErr = err
				if c != nil {
					c.Close()
				}
				m.conn = nil
				continue
			}
			m.conn = c
		}

		now := time.Now()
		isMasterResult, buildInfoResult, err := m.describeServer(ctx)
		if err != nil {
			savedErr = err
			m.conn.Close()
			m.conn = nil
			continue
		}
		delay := time.Since(now)

		s = model.BuildServer(m.addr, isMasterResult, buildInfoResult)
		s.HeartbeatInterval = m.cfg.heartbeatInterval
		s.SetAverageRTT(m.updateAverageRTT(delay))
		break
	}

	if s == nil {
		logrus.WithError(savedErr).WithField("addr", m.addr).Warn("server heartbeat failed")
		m.rttSamples = m.rttSamples[:0]
		s = &model.Server{
			Addr:           m.addr,
			LastError:      savedErr,
			LastUpdateTime: time.Now().UTC(),
		}
	}

	return s
}

// updateAverageRTT folds the most recent round trip into the average
// over the sample window.
func (m *Monitor) updateAverageRTT(delay time.Duration) time.Duration {
	m.rttSamples = append(m.rttSamples, float64(delay))
	if len(m.rttSamples) > rttSampleWindow {
		m.rttSamples = m.rttSamples[len(m.rttSamples)-rttSampleWindow:]
	}

	avg, err := stats.Mean(m.rttSamples)
	if err != nil {
		return delay
	}
	return time.Duration(avg)
}
