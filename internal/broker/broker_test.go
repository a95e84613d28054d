package broker

import (
	"errors"
	"testing"
)

func TestAddActorDuplicate(t *testing.T) {
	b := New()
	ch := make(chan Message, 1)
	if err := b.AddActor("queue", ch); err != nil {
		t.Fatalf("AddActor: %v", err)
	}
	err := b.AddActor("queue", ch)
	if !errors.Is(err, ErrDuplicateTarget) {
		t.Fatalf("err = %v, want ErrDuplicateTarget", err)
	}
}

func TestSendMessageNoSuchTarget(t *testing.T) {
	b := New()
	err := b.SendMessage("queue", Message{Kind: KindShutdown})
	if !errors.Is(err, ErrNoSuchTarget) {
		t.Fatalf("err = %v, want ErrNoSuchTarget", err)
	}
}

func TestSendMessageDelivers(t *testing.T) {
	b := New()
	ch := make(chan Message, 1)
	if err := b.AddActor("queue", ch); err != nil {
		t.Fatalf("AddActor: %v", err)
	}

	if err := b.SendMessage("queue", Message{Kind: KindShutdown}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Kind != KindShutdown {
			t.Fatalf("Kind = %v, want KindShutdown", msg.Kind)
		}
	default:
		t.Fatal("message not delivered")
	}
}

func TestSendMessageFullMailbox(t *testing.T) {
	b := New()
	ch := make(chan Message, 1)
	if err := b.AddActor("queue", ch); err != nil {
		t.Fatalf("AddActor: %v", err)
	}
	ch <- Message{Kind: KindShutdown}

	err := b.SendMessage("queue", Message{Kind: KindShutdown})
	var sendErr *ErrSendingError
	if !errors.As(err, &sendErr) {
		t.Fatalf("err = %v, want *ErrSendingError", err)
	}
}

func TestRemoveActor(t *testing.T) {
	b := New()
	ch := make(chan Message, 1)
	if err := b.AddActor("queue", ch); err != nil {
		t.Fatalf("AddActor: %v", err)
	}
	if err := b.RemoveActor("queue"); err != nil {
		t.Fatalf("RemoveActor: %v", err)
	}
	if err := b.RemoveActor("queue"); !errors.Is(err, ErrNoSuchTarget) {
		t.Fatalf("err = %v, want ErrNoSuchTarget", err)
	}
}

func TestBroadcastMessage(t *testing.T) {
	b := New()
	chA := make(chan Message, 1)
	chB := make(chan Message, 1)
	if err := b.AddActor("a", chA); err != nil {
		t.Fatalf("AddActor a: %v", err)
	}
	if err := b.AddActor("b", chB); err != nil {
		t.Fatalf("AddActor b: %v", err)
	}

	b.BroadcastMessage(Message{Kind: KindShutdown})

	for name, ch := range map[string]chan Message{"a": chA, "b": chB} {
		select {
		case msg := <-ch:
			if msg.Kind != KindShutdown {
				t.Fatalf("%s: Kind = %v, want KindShutdown", name, msg.Kind)
			}
		default:
			t.Fatalf("%s: message not delivered", name)
		}
	}
}

func TestBroadcastMessageSkipsFullMailbox(t *testing.T) {
	b := New()
	ch := make(chan Message, 1)
	ch <- Message{Kind: KindShutdown}
	if err := b.AddActor("a", ch); err != nil {
		t.Fatalf("AddActor: %v", err)
	}

	// Should not block even though the mailbox is already full.
	b.BroadcastMessage(Message{Kind: KindShutdown})
}
