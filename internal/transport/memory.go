package transport

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process reference transport. Pending deliveries move
// to the delivered set when their trigger fires. It is the default when
// no platform adapter is configured, and the workhorse of the test suite.
type Memory struct {
	mu        sync.Mutex
	closed    bool
	pending   map[string]Delivery
	timers    map[string]*time.Timer
	delivered map[string]Delivery

	// onFire, when set, observes each fired delivery. Test hook.
	onFire func(Delivery)
}

func NewMemory() *Memory {
	return &Memory{
		pending:   map[string]Delivery{},
		timers:    map[string]*time.Timer{},
		delivered: map[string]Delivery{},
	}
}

// SetFireHook installs an observer invoked after a delivery fires.
func (m *Memory) SetFireHook(fn func(Delivery)) {
	m.mu.Lock()
	m.onFire = fn
	m.mu.Unlock()
}

func (m *Memory) Add(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	delay := time.Until(d.FireAt)
	if d.FireAt.IsZero() || delay <= 0 {
		m.delivered[d.ID] = d
		hook := m.onFire
		m.mu.Unlock()
		if hook != nil {
			hook(d)
		}
		return nil
	}

	// Re-adding an id replaces its timer; stop the old one so it can't
	// fire twice.
	if t, ok := m.timers[d.ID]; ok {
		t.Stop()
	}
	m.pending[d.ID] = d
	id := d.ID
	m.timers[id] = time.AfterFunc(delay, func() { m.fire(id) })
	m.mu.Unlock()
	return nil
}

func (m *Memory) fire(id string) {
	m.mu.Lock()
	d, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pending, id)
	delete(m.timers, id)
	m.delivered[id] = d
	hook := m.onFire
	m.mu.Unlock()
	if hook != nil {
		hook(d)
	}
}

func (m *Memory) Remove(ids ...string) {
	m.mu.Lock()
	for _, id := range ids {
		if t, ok := m.timers[id]; ok {
			t.Stop()
			delete(m.timers, id)
		}
		delete(m.pending, id)
		delete(m.delivered, id)
	}
	m.mu.Unlock()
}

func (m *Memory) RemovePending() {
	m.mu.Lock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.pending = map[string]Delivery{}
	m.mu.Unlock()
}

func (m *Memory) RemoveDelivered() {
	m.mu.Lock()
	m.delivered = map[string]Delivery{}
	m.mu.Unlock()
}

func (m *Memory) Pending(ctx context.Context) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	out := make([]Delivery, 0, len(m.pending))
	for _, d := range m.pending {
		out = append(out, d)
	}
	m.mu.Unlock()
	return out, nil
}

// Delivered returns a snapshot of already-fired deliveries.
func (m *Memory) Delivered() []Delivery {
	m.mu.Lock()
	out := make([]Delivery, 0, len(m.delivered))
	for _, d := range m.delivered {
		out = append(out, d)
	}
	m.mu.Unlock()
	return out
}

// Close stops all pending timers and rejects further Adds.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
	m.pending = map[string]Delivery{}
	m.mu.Unlock()
}
