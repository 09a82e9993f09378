package events

import (
	"testing"
	"time"
)

func TestBroadcaster_SubscribeBroadcastUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe("", 1)

	b.Broadcast(Event{Type: "session.flushed", UserID: "u1"})

	select {
	case event := <-s.C():
		if event.Type != "session.flushed" {
			t.Fatalf("type = %q, want session.flushed", event.Type)
		}
		if event.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be filled")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast event")
	}

	b.Unsubscribe(s)
	b.Unsubscribe(s)
	if _, ok := <-s.C(); ok {
		t.Fatal("expected closed stream after unsubscribe")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("subscribers = %d, want 0", b.Subscribers())
	}
}

func TestBroadcaster_FiltersByUser(t *testing.T) {
	b := NewBroadcaster()
	u1 := b.Subscribe("u1", 4)
	all := b.Subscribe("", 4)

	b.Broadcast(Event{Type: "conversation.recorded", UserID: "u2"})
	b.Broadcast(Event{Type: "conversation.recorded", UserID: "u1"})
	b.Broadcast(Event{Type: "retention.swept"})

	if got := len(u1.C()); got != 1 {
		t.Fatalf("u1 stream received %d events, want 1", got)
	}
	if got := len(all.C()); got != 3 {
		t.Fatalf("unfiltered stream received %d events, want 3", got)
	}
}

func TestBroadcaster_DropsOnOverflow(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe("", 1)

	b.Broadcast(Event{Type: "a"})
	b.Broadcast(Event{Type: "b"})

	if got := len(s.C()); got != 1 {
		t.Fatalf("buffered = %d, want 1", got)
	}
	if event := <-s.C(); event.Type != "a" {
		t.Fatalf("kept %q, want the first event", event.Type)
	}
}

func TestBroadcaster_SubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster()
	open := b.Subscribe("", 1)
	b.Close()

	if _, ok := <-open.C(); ok {
		t.Fatal("expected open stream to be closed")
	}
	late := b.Subscribe("u1", 1)
	if _, ok := <-late.C(); ok {
		t.Fatal("expected stream created after close to be closed")
	}
}
