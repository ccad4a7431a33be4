package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"notigate/internal/eventbus"
)

// enqueueBatch appends to the type's pending list and arms the flush
// timer on first item. The timer belongs to the batch: flushing swaps
// the whole batch out, so a later arrival starts a fresh one.
func (s *Service) enqueueBatch(now time.Time, req Request, window time.Duration) {
	if window <= 0 {
		window = 15 * time.Minute
	}

	s.bmu.Lock()
	if s.stopped {
		s.bmu.Unlock()
		return
	}
	b := s.batches[req.Type]
	if b == nil {
		t := req.Type
		b = &pendingBatch{}
		b.timer = time.AfterFunc(window, func() { s.flush(t) })
		s.batches[req.Type] = b
	}
	b.items = append(b.items, req)
	s.bmu.Unlock()

	s.publish(eventbus.TypeBatched, now, req, "")
}

// flush swaps out the type's accumulated batch and delivers its grouped
// form. No caller is waiting at this point, so a delivery failure is
// logged and swallowed.
func (s *Service) flush(t Type) {
	s.bmu.Lock()
	b := s.batches[t]
	delete(s.batches, t)
	s.bmu.Unlock()
	if b == nil || len(b.items) == 0 {
		return
	}

	s.flushItems(context.Background(), time.Now(), t, b.items)
}

func (s *Service) flushItems(ctx context.Context, now time.Time, t Type, items []Request) {
	if len(items) == 0 {
		return
	}

	out := s.groupRequest(now, t, items)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeBatchFlushed, Time: now, Data: BatchEvent{
			Type: string(t), Size: len(items), GroupID: out.GroupID, At: now,
		}})
	}

	// Grouped delivery skips the rate and batch gates: the items were
	// already admitted when they entered the batch.
	if err := s.deliver(ctx, now, out); err != nil {
		s.log.Warn("batch delivery failed",
			slog.String("type", string(t)),
			slog.Int("size", len(items)),
			slog.Any("err", err))
	}
}

// groupRequest synthesizes the summary notification for a batch. A lone
// new-follower event passes through untouched; every other batch, even a
// singleton, becomes a fresh grouped request with its own id.
func (s *Service) groupRequest(now time.Time, t Type, items []Request) Request {
	if len(items) == 1 && t == TypeNewFollower {
		return items[0]
	}
	n := len(items)
	return Request{
		ID:           uuid.NewString(),
		Type:         t,
		Title:        s.groupedTitle(t, n),
		Body:         s.groupedBody(t, n),
		Priority:     PriorityMedium,
		GroupID:      fmt.Sprintf("%s_batch_%d", t, now.Unix()),
		SoundEnabled: t.soundDefault(),
	}
}

func (s *Service) groupedTitle(t Type, n int) string {
	if s.tmpl != nil {
		if title := s.tmpl.GroupedTitle(t, n); title != "" {
			return title
		}
	}
	switch t {
	case TypeKudos:
		return fmt.Sprintf("%d Workout Kudos", n)
	case TypeNewFollower:
		return fmt.Sprintf("%d New Followers", n)
	case TypeComment:
		return fmt.Sprintf("%d New Comments", n)
	case TypeWorkoutCompleted:
		return fmt.Sprintf("%d Workouts Completed", n)
	case TypeStreak:
		return fmt.Sprintf("%d Streak Updates", n)
	case TypeMilestone:
		return fmt.Sprintf("%d Milestones Reached", n)
	default:
		return fmt.Sprintf("%d Notifications", n)
	}
}

func (s *Service) groupedBody(t Type, n int) string {
	if s.tmpl != nil {
		if body := s.tmpl.GroupedBody(t, n); body != "" {
			return body
		}
	}
	return "Open the app to see what happened."
}

// BatchEvent is the bus payload for a batch flush.
type BatchEvent struct {
	Type    string
	Size    int
	GroupID string
	At      time.Time
}

// batchSize reports the current accumulation for a type. Test helper.
func (s *Service) batchSize(t Type) int {
	s.bmu.Lock()
	defer s.bmu.Unlock()
	b := s.batches[t]
	if b == nil {
		return 0
	}
	return len(b.items)
}
