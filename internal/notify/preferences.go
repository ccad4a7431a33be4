package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QuietHours is a daily window during which non-immediate delivery is
// deferred to the window's end. Start/End are "HH:MM" wall-clock times;
// an overnight window (start > end) wraps past midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // e.g. "22:00"
	End     string `json:"end"`   // e.g. "07:00"

	// IgnoreImmediate lets immediate-priority requests through even
	// while the window is active.
	IgnoreImmediate bool `json:"ignore_immediate"`
}

// Preferences drives every admission decision. Hot-swappable; a swap
// takes effect on the next Schedule call and never re-evaluates items
// already deferred or batched.
type Preferences struct {
	Enabled map[Type]bool `json:"enabled"`
	Batch   map[Type]bool `json:"batch"`
	Sound   map[Type]bool `json:"sound"`

	Quiet QuietHours `json:"quiet_hours"`

	MaxPerHour     int           `json:"max_per_hour"`
	BatchingWindow time.Duration `json:"batching_window"`

	BadgeEnabled bool `json:"badge_enabled"`
	PushEnabled  bool `json:"push_enabled"`
}

// DefaultPreferences enables every type, batches the chatty social
// types, and caps delivery at 10 per hour with a 15 minute batch window.
func DefaultPreferences() Preferences {
	p := Preferences{
		Enabled:        map[Type]bool{},
		Batch:          map[Type]bool{},
		Sound:          map[Type]bool{},
		Quiet:          QuietHours{Enabled: false, Start: "22:00", End: "07:00", IgnoreImmediate: true},
		MaxPerHour:     10,
		BatchingWindow: 15 * time.Minute,
		BadgeEnabled:   true,
		PushEnabled:    true,
	}
	for _, t := range AllTypes() {
		p.Enabled[t] = true
		p.Sound[t] = true
	}
	p.Batch[TypeKudos] = true
	p.Batch[TypeNewFollower] = true
	return p
}

func (p Preferences) typeEnabled(t Type) bool {
	if p.Enabled == nil {
		return true
	}
	en, ok := p.Enabled[t]
	if !ok {
		return true
	}
	return en
}

func (p Preferences) shouldBatch(t Type) bool {
	return p.Batch != nil && p.Batch[t]
}

func (p Preferences) soundFor(t Type) bool {
	if p.Sound == nil {
		return true
	}
	en, ok := p.Sound[t]
	if !ok {
		return true
	}
	return en
}

// quietActive reports whether the quiet-hours gate applies to a request
// of the given priority at the given instant.
func (p Preferences) quietActive(now time.Time, prio Priority) bool {
	q := p.Quiet
	if !q.Enabled {
		return false
	}
	if prio == PriorityImmediate && q.IgnoreImmediate {
		return false
	}
	sh, sm, err := parseHHMM(q.Start)
	if err != nil {
		return false
	}
	eh, em, err := parseHHMM(q.End)
	if err != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	start := sh*60 + sm
	end := eh*60 + em
	if start == end {
		return false
	}
	if start < end {
		return cur >= start && cur < end
	}
	// Overnight window, e.g. [22:00, 07:00).
	return cur >= start || cur < end
}

// quietEnd computes the next instant the quiet window ends: today's
// end-of-window time, rolled forward one day when already past.
func (p Preferences) quietEnd(now time.Time) time.Time {
	eh, em, err := parseHHMM(p.Quiet.End)
	if err != nil {
		return now
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), eh, em, 0, 0, now.Location())
	if !end.After(now) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// Validate rejects preference sets that would wedge the pipeline.
func (p Preferences) Validate() error {
	if p.MaxPerHour < 0 {
		return fmt.Errorf("max_per_hour must be >= 0")
	}
	if p.BatchingWindow < 0 {
		return fmt.Errorf("batching_window must be >= 0")
	}
	if p.Quiet.Enabled {
		if _, _, err := parseHHMM(p.Quiet.Start); err != nil {
			return fmt.Errorf("quiet_hours.start: %w", err)
		}
		if _, _, err := parseHHMM(p.Quiet.End); err != nil {
			return fmt.Errorf("quiet_hours.end: %w", err)
		}
	}
	return nil
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
