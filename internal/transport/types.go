package transport

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("transport closed")

// Delivery is the transport-facing notification descriptor. It is the
// flattened, lossy form of a scheduler request: opaque metadata and
// priority do not survive the translation.
type Delivery struct {
	ID       string
	Title    string
	Body     string
	Sound    bool
	Badge    int  // meaningful only when HasBadge
	HasBadge bool
	Category string    // interactive-action category id, "" if none
	Thread   string    // grouping/thread id, "" if none
	FireAt   time.Time // zero or past = fire immediately
}

// Transport schedules platform notifications. Implementations must be
// safe for concurrent use. Failures surface as delivery errors to the
// caller of Add; the scheduler decides whether they propagate.
type Transport interface {
	// Add schedules one delivery. A zero/past FireAt fires immediately.
	Add(ctx context.Context, d Delivery) error

	// Remove forgets the given ids, pending or already delivered.
	// Unknown ids are ignored.
	Remove(ids ...string)

	// RemovePending drops every not-yet-fired delivery.
	RemovePending()

	// RemoveDelivered drops every already-fired delivery.
	RemoveDelivered()

	// Pending lists not-yet-fired deliveries.
	Pending(ctx context.Context) ([]Delivery, error)
}
