package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeDelivered, Data: "x"})

	select {
	case e := <-ch:
		if e.Type != TypeDelivered {
			t.Fatalf("Type = %s, want %s", e.Type, TypeDelivered)
		}
		if e.Time.IsZero() {
			t.Fatal("Publish should stamp a zero Time")
		}
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Type: TypeBatched})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if len(ch) != 1 {
		t.Fatalf("buffered = %d, want 1 (rest dropped)", len(ch))
	}
}

func TestUnsubscribeIsIdempotentAndSafe(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	unsub()
	unsub()

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: TypeSuppressed})
}
