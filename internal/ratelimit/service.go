package ratelimit

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"notigate/internal/eventbus"
)

// Config controls the limiter service.
type Config struct {
	// Limits maps actions to their per-tier quotas.
	// Nil falls back to DefaultLimits().
	Limits map[Action]LimitSet

	// Retention bounds how long records are kept. Default 7 days.
	Retention time.Duration

	// SweepInterval is how often the periodic sweep runs and how stale a
	// subject's history may get before a lazy cleanup kicks in. Default 1h.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Limits == nil {
		c.Limits = DefaultLimits()
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	return c
}

// Service is a multi-tier sliding-window quota tracker keyed by
// (subject, action). It is safe for concurrent use.
//
// Check performs check-and-record as one exclusive critical section:
// no caller can observe the same subject's history between the count
// and the append.
type Service struct {
	mu sync.RWMutex

	log *slog.Logger
	bus eventbus.Bus

	cfg      Config
	subjects map[string]*subjectHistory
}

func New(cfg Config, log *slog.Logger, bus eventbus.Bus) *Service {
	return &Service{
		log:      log,
		bus:      bus,
		cfg:      cfg.withDefaults(),
		subjects: map[string]*subjectHistory{},
	}
}

// Apply swaps the quota table at runtime. Existing histories are kept;
// the new limits take effect on the next admission decision.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// Check admits or rejects one action for a subject. On admission the
// action is recorded atomically. On rejection nothing is recorded and
// the returned error is a *RateLimitError carrying the reset time of
// the smallest violated window.
func (s *Service) Check(action Action, subject string) error {
	return s.checkAt(time.Now(), action, subject)
}

func (s *Service) checkAt(now time.Time, action Action, subject string) error {
	if !validSubject(subject) {
		return ErrInvalidSubject
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	limits, ok := s.cfg.Limits[action]
	if !ok {
		// Unknown action: admit but still record, so a later config
		// change starts from real history.
		s.appendLocked(now, action, subject)
		return nil
	}

	h := s.subjects[subject]
	if h != nil {
		s.maybeCleanupLocked(now, subject, h)
	}

	for _, t := range tiers(limits) {
		count, oldest := s.countWindowLocked(h, action, now, t.window)
		if count >= t.limit {
			resetAt := oldest.Add(t.window)
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{Type: eventbus.TypeRateRejected, Time: now, Data: RejectionEvent{
					Subject: subject, Action: string(action), Tier: t.name, ResetAt: resetAt,
				}})
			}
			s.log.Debug("action rejected",
				slog.String("subject", subject),
				slog.String("action", string(action)),
				slog.String("tier", t.name),
				slog.Time("reset_at", resetAt))
			return &RateLimitError{Action: action, Tier: t.name, ResetAt: resetAt}
		}
	}

	s.appendLocked(now, action, subject)
	return nil
}

// Record unconditionally appends a record. Use it when admission was
// already decided elsewhere (e.g. implied by a prior Check).
func (s *Service) Record(action Action, subject string) error {
	return s.recordAt(time.Now(), action, subject)
}

func (s *Service) recordAt(now time.Time, action Action, subject string) error {
	if !validSubject(subject) {
		return ErrInvalidSubject
	}
	s.mu.Lock()
	if h := s.subjects[subject]; h != nil {
		s.maybeCleanupLocked(now, subject, h)
	}
	s.appendLocked(now, action, subject)
	s.mu.Unlock()
	return nil
}

// Reset clears all history for a subject.
func (s *Service) Reset(subject string) {
	s.mu.Lock()
	delete(s.subjects, subject)
	s.mu.Unlock()
}

// Remaining returns the minimum of (tier limit - in-window count) across
// all configured tiers for the action, floored at zero.
func (s *Service) Remaining(action Action, subject string) int {
	return s.remainingAt(time.Now(), action, subject)
}

func (s *Service) remainingAt(now time.Time, action Action, subject string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limits, ok := s.cfg.Limits[action]
	if !ok {
		return 0
	}
	h := s.subjects[subject]

	remaining := -1
	for _, t := range tiers(limits) {
		count, _ := s.countWindowLocked(h, action, now, t.window)
		left := t.limit - count
		if left < 0 {
			left = 0
		}
		if remaining < 0 || left < remaining {
			remaining = left
		}
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetTime returns the earliest instant at which the most-restrictive
// currently-violated tier frees a slot, evaluating tiers in ascending
// window order (same tie-break as Check). ok is false when the subject
// is not currently limited for the action.
func (s *Service) ResetTime(action Action, subject string) (time.Time, bool) {
	return s.resetTimeAt(time.Now(), action, subject)
}

func (s *Service) resetTimeAt(now time.Time, action Action, subject string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limits, ok := s.cfg.Limits[action]
	if !ok {
		return time.Time{}, false
	}
	h := s.subjects[subject]
	if h == nil {
		return time.Time{}, false
	}

	for _, t := range tiers(limits) {
		count, oldest := s.countWindowLocked(h, action, now, t.window)
		if count >= t.limit {
			return oldest.Add(t.window), true
		}
	}
	return time.Time{}, false
}

// SubjectCount reports how many subjects currently hold history.
func (s *Service) SubjectCount() int {
	s.mu.RLock()
	n := len(s.subjects)
	s.mu.RUnlock()
	return n
}

func (s *Service) appendLocked(now time.Time, action Action, subject string) {
	h := s.subjects[subject]
	if h == nil {
		h = &subjectHistory{lastCleanup: now}
		s.subjects[subject] = h
	}
	h.records = append(h.records, record{action: action, at: now})
}

// countWindowLocked counts matching records newer than now-window and
// returns the timestamp of the oldest one inside the window.
// Records are appended in real time, so the slice is timestamp-ordered.
func (s *Service) countWindowLocked(h *subjectHistory, action Action, now time.Time, window time.Duration) (int, time.Time) {
	if h == nil {
		return 0, time.Time{}
	}
	cutoff := now.Add(-window)
	count := 0
	var oldest time.Time
	for _, r := range h.records {
		if r.action != action || !r.at.After(cutoff) {
			continue
		}
		if count == 0 {
			oldest = r.at
		}
		count++
	}
	return count, oldest
}

func validSubject(subject string) bool {
	return strings.TrimSpace(subject) != ""
}

// RejectionEvent is the bus payload for a rejected admission.
type RejectionEvent struct {
	Subject string
	Action  string
	Tier    string
	ResetAt time.Time
}
