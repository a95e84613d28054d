// Package queue implements the bounded buffering stage between the
// ingress listener and the outbound relay: while no relay is connected,
// accepted messages are held in a drop-oldest FIFO; once a relay
// announces itself ready, the FIFO drains and subsequent messages pass
// straight through.
package queue

import (
	"container/list"
	"context"

	"github.com/oriys/metricsrelay/internal/broker"
	"github.com/oriys/metricsrelay/internal/logging"
	"github.com/oriys/metricsrelay/internal/metrics"
)

// Name is the mailbox this manager registers under. The listener and
// relay address it by this name when publishing client messages and
// relay-readiness notices.
const Name = "queue"

// Sender is implemented by the relay connection handed to the queue once
// a TCP relay completes its handshake. It is a narrow view over the
// relay so the queue package never needs to import internal/relay.
type Sender interface {
	// Send writes msg to the relay. A non-nil error means the relay
	// connection is no longer usable and must be dropped.
	Send(msg any) error
}

// Manager buffers messages for relay delivery.
type Manager struct {
	broker   *broker.Broker
	capacity int
	buf      *list.List
	relay    Sender
	inbox    chan broker.Message
	metrics  *metrics.Metrics
}

// New constructs a Manager with the given bounded capacity and registers
// it with b under Name. capacity must be positive.
func New(b *broker.Broker, capacity int, m *metrics.Metrics) (*Manager, error) {
	mgr := &Manager{
		broker:   b,
		capacity: capacity,
		buf:      list.New(),
		inbox:    make(chan broker.Message, 256),
		metrics:  m,
	}
	if err := b.AddActor(Name, mgr.inbox); err != nil {
		return nil, err
	}
	return mgr, nil
}

// Run processes the mailbox until ctx is canceled or a Shutdown message
// arrives. It is meant to run in its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	defer m.broker.RemoveActor(Name)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-m.inbox:
			if !ok {
				return
			}
			if m.handle(msg) {
				return
			}
		}
	}
}

// handle processes one message and reports whether the manager should stop.
func (m *Manager) handle(msg broker.Message) bool {
	switch msg.Kind {
	case broker.KindShutdown:
		logging.Op().Info("queue manager shutting down")
		return true

	case broker.KindRelayReady:
		sender, ok := msg.Payload.(Sender)
		if !ok {
			logging.Op().Warn("relay ready message missing sender")
			break
		}
		logging.Op().Info("relay ready, draining buffered messages", "buffered", m.buf.Len())
		m.adoptRelay(sender)

	case broker.KindNewClientMessage, broker.KindFilterAck:
		m.dispatch(msg.Payload)

	case broker.KindNewFilter:
		// Filters are forwarded directly to the owning connection by the
		// listener; the queue has no use for them.

	default:
		logging.Op().Warn("queue manager received unknown message kind", "kind", msg.Kind)
	}

	m.reportDepth()
	return false
}

// adoptRelay stores s as the current relay sender and drains any
// buffered backlog into it in order.
func (m *Manager) adoptRelay(s Sender) {
	m.relay = s
	for m.buf.Len() > 0 {
		front := m.buf.Front()
		payload := front.Value
		m.buf.Remove(front)
		if err := m.relay.Send(payload); err != nil {
			logging.Op().Warn("relay rejected buffered message, dropping relay", "error", err)
			m.relay = nil
			// Put the undelivered message back at the front and stop draining.
			m.buf.PushFront(payload)
			return
		}
	}
}

// dispatch sends payload to the relay if one is connected, otherwise
// buffers it, evicting the oldest entry if the buffer is already full.
func (m *Manager) dispatch(payload any) {
	if m.relay != nil {
		if err := m.relay.Send(payload); err != nil {
			logging.Op().Warn("relay send failed, dropping relay and buffering", "error", err)
			m.relay = nil
		} else {
			return
		}
	}

	if m.buf.Len() >= m.capacity {
		oldest := m.buf.Front()
		m.buf.Remove(oldest)
		if m.metrics != nil {
			m.metrics.QueueEvictions.Inc()
		}
		logging.Op().Warn("queue full, dropped oldest message", "capacity", m.capacity)
	}
	m.buf.PushBack(payload)
}

func (m *Manager) reportDepth() {
	if m.metrics != nil {
		m.metrics.QueueDepth.Set(float64(m.buf.Len()))
	}
}
