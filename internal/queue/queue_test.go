package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oriys/metricsrelay/internal/broker"
)

type fakeSender struct {
	mu       sync.Mutex
	received []any
	failNext bool
}

func (f *fakeSender) Send(msg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("send failed")
	}
	f.received = append(f.received, msg)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func newTestManager(t *testing.T, capacity int) (*Manager, *broker.Broker) {
	t.Helper()
	b := broker.New()
	mgr, err := New(b, capacity, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return mgr, b
}

func TestQueueBuffersWithoutRelay(t *testing.T) {
	mgr, _ := newTestManager(t, 2)

	stop := mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m1"})
	if stop {
		t.Fatal("unexpected stop")
	}
	if mgr.buf.Len() != 1 {
		t.Fatalf("buf len = %d, want 1", mgr.buf.Len())
	}
}

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	mgr, _ := newTestManager(t, 2)

	mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m1"})
	mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m2"})
	mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m3"})

	if mgr.buf.Len() != 2 {
		t.Fatalf("buf len = %d, want 2", mgr.buf.Len())
	}
	front := mgr.buf.Front().Value.(string)
	if front != "m2" {
		t.Fatalf("front = %q, want m2 (m1 should have been dropped)", front)
	}
}

func TestQueueDrainsOnRelayReady(t *testing.T) {
	mgr, _ := newTestManager(t, 10)

	mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m1"})
	mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m2"})

	sender := &fakeSender{}
	mgr.handle(broker.Message{Kind: broker.KindRelayReady, Payload: Sender(sender)})

	if mgr.buf.Len() != 0 {
		t.Fatalf("buf len = %d, want 0 after drain", mgr.buf.Len())
	}
	if sender.count() != 2 {
		t.Fatalf("sender received %d messages, want 2", sender.count())
	}

	mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m3"})
	if sender.count() != 3 {
		t.Fatalf("sender received %d messages, want 3 (direct passthrough)", sender.count())
	}
	if mgr.buf.Len() != 0 {
		t.Fatalf("buf len = %d, want 0", mgr.buf.Len())
	}
}

func TestQueueResumesBufferingAfterRelayFailure(t *testing.T) {
	mgr, _ := newTestManager(t, 10)

	sender := &fakeSender{}
	mgr.handle(broker.Message{Kind: broker.KindRelayReady, Payload: Sender(sender)})

	sender.failNext = true
	mgr.handle(broker.Message{Kind: broker.KindNewClientMessage, Payload: "m1"})

	if mgr.relay != nil {
		t.Fatal("relay should have been dropped after send failure")
	}
	if mgr.buf.Len() != 1 {
		t.Fatalf("buf len = %d, want 1 (message rebuffered)", mgr.buf.Len())
	}
}

func TestQueueShutdownStopsRun(t *testing.T) {
	mgr, b := newTestManager(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	if err := b.SendMessage(Name, broker.Message{Kind: broker.KindShutdown}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}
