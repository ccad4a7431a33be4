package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "memory": process-local, lost on restart
//   - "file":   dependency-free file backend (jsonl journal + snapshot)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Item is one in-app inbox notification.
// Keep it compact and schema-stable.
type Item struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	GroupID     string    `json:"group_id,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
	Read        bool      `json:"read,omitempty"`
}

// Comment is a stored user comment (rate-limited write path).
type Comment struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	At      time.Time `json:"at"`
}

// Store is the persistence API used by the scheduler and its consumers.
//
// Implementations serialize all mutations internally: AddNotification and
// MarkAllRead from concurrent callers never interleave partially, which is
// what keeps the in-app inbox consistent with the unread badge.
type Store interface {
	AddNotification(ctx context.Context, it Item) error
	UnreadCount(ctx context.Context) (int, error)
	MarkAllRead(ctx context.Context) error
	ListRecent(ctx context.Context, limit int) ([]Item, error)

	LoadPreferences(ctx context.Context) (raw []byte, ok bool, err error)
	SavePreferences(ctx context.Context, raw []byte) error

	AppendComment(ctx context.Context, c Comment) error

	Close() error
}
