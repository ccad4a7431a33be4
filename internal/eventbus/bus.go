// Package eventbus carries the engine's lifecycle signals between
// loosely coupled components: every admission decision, delivery
// outcome, batch flush, and limiter rejection is announced here so
// observers (tests, future surfaces) never need hooks into the services
// themselves.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the scheduler pipeline, one per terminal
// admission outcome plus the delivery results.
const (
	TypeSuppressed     = "notify.suppressed"      // dropped by the preference gate
	TypeDeferred       = "notify.deferred"        // pushed to the quiet-hours window end
	TypeBatched        = "notify.batched"         // accumulated into a type batch
	TypeDelivered      = "notify.delivered"       // handed to the transport (or store-only)
	TypeDeliveryFailed = "notify.delivery_failed" // transport rejected the delivery
	TypeBatchFlushed   = "batch.flushed"          // a type batch was grouped and sent
	TypeRateRejected   = "ratelimit.rejected"     // limiter refused an action
)

// Event is one published signal. Data carries the per-type payload
// (notify.Event, notify.BatchEvent, ratelimit.RejectionEvent); keep it
// small and JSON-serializable.
//
// Publishing never blocks: a subscriber that cannot keep up loses
// events rather than stalling the admission path.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns the in-process fanout bus. It owns no goroutines; Publish
// runs entirely on the caller.
func New() Bus {
	return &fanout{subs: map[uint64]chan Event{}}
}

type fanout struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	next atomic.Uint64
}

func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		b.offer(ch, e)
	}
}

// offer attempts one non-blocking send. An unsubscribe racing with the
// send can close the channel between the snapshot and here, so the
// panic from a send-on-closed is swallowed.
func (b *fanout) offer(ch chan Event, e Event) {
	defer func() { _ = recover() }()
	select {
	case ch <- e:
	default:
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.next.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
