package transport

import (
	"context"
	"testing"
	"time"
)

func TestMemoryImmediateDelivery(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	if err := m.Add(context.Background(), Delivery{ID: "a", Title: "hi"}); err != nil {
		t.Fatal(err)
	}
	if got := m.Delivered(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Delivered = %+v, want one entry a", got)
	}
	pending, err := m.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("Pending = %d, want 0", len(pending))
	}
}

func TestMemoryScheduledFire(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	fired := make(chan Delivery, 1)
	m.SetFireHook(func(d Delivery) { fired <- d })

	d := Delivery{ID: "a", FireAt: time.Now().Add(20 * time.Millisecond)}
	if err := m.Add(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	pending, _ := m.Pending(context.Background())
	if len(pending) != 1 {
		t.Fatalf("Pending = %d before fire, want 1", len(pending))
	}

	select {
	case got := <-fired:
		if got.ID != "a" {
			t.Fatalf("fired id = %s, want a", got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	pending, _ = m.Pending(context.Background())
	if len(pending) != 0 {
		t.Fatalf("Pending = %d after fire, want 0", len(pending))
	}
	if got := m.Delivered(); len(got) != 1 {
		t.Fatalf("Delivered = %d, want 1", len(got))
	}
}

func TestMemoryRemoveStopsTimer(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	fired := make(chan Delivery, 1)
	m.SetFireHook(func(d Delivery) { fired <- d })

	d := Delivery{ID: "a", FireAt: time.Now().Add(30 * time.Millisecond)}
	if err := m.Add(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	m.Remove("a")

	select {
	case <-fired:
		t.Fatal("removed delivery must not fire")
	case <-time.After(100 * time.Millisecond):
	}
	pending, _ := m.Pending(context.Background())
	if len(pending) != 0 {
		t.Fatalf("Pending = %d, want 0", len(pending))
	}
}

func TestMemoryReAddReplacesTimer(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	fired := make(chan Delivery, 2)
	m.SetFireHook(func(d Delivery) { fired <- d })

	_ = m.Add(context.Background(), Delivery{ID: "a", Title: "old", FireAt: time.Now().Add(30 * time.Millisecond)})
	_ = m.Add(context.Background(), Delivery{ID: "a", Title: "new", FireAt: time.Now().Add(40 * time.Millisecond)})

	select {
	case got := <-fired:
		if got.Title != "new" {
			t.Fatalf("fired Title = %q, want new", got.Title)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	select {
	case <-fired:
		t.Fatal("replaced timer fired twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryClosedRejectsAdds(t *testing.T) {
	m := NewMemory()
	m.Close()
	if err := m.Add(context.Background(), Delivery{ID: "a"}); err != ErrClosed {
		t.Fatalf("Add after close = %v, want ErrClosed", err)
	}
}
