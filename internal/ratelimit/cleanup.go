package ratelimit

import (
	"log/slog"
	"time"
)

// Sweep removes records older than the retention horizon from every
// subject and drops subjects whose history becomes empty, so memory
// stays bounded. The maintenance runner invokes it hourly.
func (s *Service) Sweep(now time.Time) (records, subjects int) {
	s.mu.Lock()
	retention := s.cfg.Retention
	for id, h := range s.subjects {
		removed := pruneHistory(h, now, retention)
		records += removed
		h.lastCleanup = now
		if len(h.records) == 0 {
			delete(s.subjects, id)
			subjects++
		}
	}
	s.mu.Unlock()

	if records > 0 || subjects > 0 {
		s.log.Debug("history sweep done",
			slog.Int("records_removed", records),
			slog.Int("subjects_removed", subjects))
	}
	return records, subjects
}

// maybeCleanupLocked prunes one subject lazily when its history has not
// been cleaned within a sweep interval. Caller holds the write lock.
func (s *Service) maybeCleanupLocked(now time.Time, subject string, h *subjectHistory) {
	if now.Sub(h.lastCleanup) < s.cfg.SweepInterval {
		return
	}
	pruneHistory(h, now, s.cfg.Retention)
	h.lastCleanup = now
	if len(h.records) == 0 {
		delete(s.subjects, subject)
	}
}

// pruneHistory drops records at or beyond the retention horizon.
// Records are timestamp-ordered, so a single cut index suffices.
func pruneHistory(h *subjectHistory, now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	idx := 0
	for idx < len(h.records) && !h.records[idx].at.After(cutoff) {
		idx++
	}
	if idx == 0 {
		return 0
	}
	removed := idx
	h.records = append([]record(nil), h.records[idx:]...)
	return removed
}
