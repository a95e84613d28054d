// Package broker implements a small in-process publish/subscribe hub:
// named mailboxes that internal components register under and send
// tagged messages to or broadcast across.
package broker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/oriys/metricsrelay/internal/logging"
)

// ErrDuplicateTarget is returned by AddActor when name is already registered.
var ErrDuplicateTarget = errors.New("broker: duplicate target")

// ErrNoSuchTarget is returned by SendMessage and RemoveActor when name is
// not registered.
var ErrNoSuchTarget = errors.New("broker: no such target")

// ErrSendingError wraps a failure to deliver to a registered mailbox
// (typically because its channel is full and no one is reading it).
type ErrSendingError struct {
	Target string
}

func (e *ErrSendingError) Error() string {
	return fmt.Sprintf("broker: sending error to %q", e.Target)
}

// Kind discriminates the payload carried by a Message.
type Kind int

const (
	KindNewClientMessage Kind = iota
	KindRelayReady
	KindNewFilter
	KindFilterAck
	KindShutdown
)

// Message is the envelope broadcast or routed through the broker. Payload
// holds a *protocol.ClientPayload, a queue.Sender (relay readiness), a
// protocol.FilterFrame value, or a *protocol.FilterAck depending on Kind;
// it is nil for KindShutdown.
type Message struct {
	Kind    Kind
	Payload any
}

// Broker routes Messages to named, single-consumer mailboxes. Each
// mailbox is a buffered channel; a slow or wedged consumer only affects
// its own mailbox, never the broker's internal lock.
type Broker struct {
	mu     sync.Mutex
	actors map[string]chan<- Message
}

// New returns an empty Broker.
func New() *Broker {
	return &Broker{actors: make(map[string]chan<- Message)}
}

// AddActor registers ch under name. It is an error to register the same
// name twice without first removing it.
func (b *Broker) AddActor(name string, ch chan<- Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.actors[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTarget, name)
	}
	b.actors[name] = ch
	return nil
}

// RemoveActor unregisters name. It is not an error to call it for a name
// that no longer exists after the caller's own bookkeeping, but callers
// that expect the name to exist should check the returned error.
func (b *Broker) RemoveActor(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.actors[name]; !exists {
		return fmt.Errorf("%w: %q", ErrNoSuchTarget, name)
	}
	delete(b.actors, name)
	return nil
}

// SendMessage routes msg to the mailbox registered under name. Delivery
// is non-blocking: if the mailbox's channel is full, SendMessage returns
// an *ErrSendingError immediately rather than stalling every other
// sender behind the lock.
func (b *Broker) SendMessage(name string, msg Message) error {
	b.mu.Lock()
	ch, exists := b.actors[name]
	b.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %q", ErrNoSuchTarget, name)
	}

	select {
	case ch <- msg:
		return nil
	default:
		return &ErrSendingError{Target: name}
	}
}

// BroadcastMessage routes msg to every registered mailbox. Mailboxes
// that are full are skipped and logged rather than blocking the
// broadcast for the rest.
func (b *Broker) BroadcastMessage(msg Message) {
	b.mu.Lock()
	targets := make(map[string]chan<- Message, len(b.actors))
	for name, ch := range b.actors {
		targets[name] = ch
	}
	b.mu.Unlock()

	for name, ch := range targets {
		select {
		case ch <- msg:
		default:
			logging.Op().Warn("broadcast dropped, mailbox full", "target", name)
		}
	}
}

// Close logs a warning if actors are still registered, mirroring the
// leak-detection the broker performed at drop time in the original
// implementation.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.actors) > 0 {
		names := make([]string, 0, len(b.actors))
		for name := range b.actors {
			names = append(names, name)
		}
		logging.Op().Warn("broker closed with actors still registered", "actors", names)
	}
}
