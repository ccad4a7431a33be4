package storage

import (
	"context"
	"sync"
)

// memoryStore keeps everything in process memory. Used by tests and as
// the default when persistence is not configured but a store is still
// required.
type memoryStore struct {
	mu       sync.Mutex
	items    []Item
	prefs    []byte
	comments []Comment
}

func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) AddNotification(ctx context.Context, it Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = append(s.items, it)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) UnreadCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	n := 0
	for _, it := range s.items {
		if !it.Read {
			n++
		}
	}
	s.mu.Unlock()
	return n, nil
}

func (s *memoryStore) MarkAllRead(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) ListRecent(ctx context.Context, limit int) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Item, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.items[i])
	}
	return out, nil
}

func (s *memoryStore) LoadPreferences(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil {
		return nil, false, nil
	}
	return append([]byte(nil), s.prefs...), true, nil
}

func (s *memoryStore) SavePreferences(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.prefs = append([]byte(nil), raw...)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) AppendComment(ctx context.Context, c Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.comments = append(s.comments, c)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error { return nil }
