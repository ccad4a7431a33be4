package notify

import "time"

// PruneDeliveryLog drops delivery-log entries older than one hour. The
// maintenance runner invokes it hourly; the rate gate also prunes lazily
// so the log never grows past recent traffic between sweeps.
func (s *Service) PruneDeliveryLog(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.deliveryLog)
	s.pruneDeliveryLogLocked(now)
	return before - len(s.deliveryLog)
}

func (s *Service) pruneDeliveryLogLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	idx := 0
	for idx < len(s.deliveryLog) && !s.deliveryLog[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		s.deliveryLog = append([]time.Time(nil), s.deliveryLog[idx:]...)
	}
}

// deliveredLastHour reports the rolling one-hour delivery count.
func (s *Service) deliveredLastHour(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneDeliveryLogLocked(now)
	return len(s.deliveryLog)
}
