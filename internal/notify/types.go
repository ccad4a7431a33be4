package notify

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders admission leniency. Immediate bypasses the rate and
// batch gates and (by default) quiet hours.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityImmediate
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Type is a notification category. The raw value doubles as the
// transport category identifier for interactive notifications.
type Type string

const (
	TypeWorkoutCompleted Type = "workout_completed"
	TypeStreak           Type = "streak"
	TypeMilestone        Type = "milestone"
	TypeNewFollower      Type = "new_follower"
	TypeKudos            Type = "kudos"
	TypeComment          Type = "comment"
	TypeReminder         Type = "reminder"
)

// AllTypes lists every known type, used when building default preferences.
func AllTypes() []Type {
	return []Type{
		TypeWorkoutCompleted, TypeStreak, TypeMilestone,
		TypeNewFollower, TypeKudos, TypeComment, TypeReminder,
	}
}

// soundDefault reports whether the type carries sound by default.
// Ambient progress types stay silent.
func (t Type) soundDefault() bool {
	switch t {
	case TypeStreak, TypeReminder:
		return false
	default:
		return true
	}
}

// Request is one notification to admit. Values are immutable: a delayed
// or grouped variant is always a fresh value derived from the original.
type Request struct {
	ID           string
	Type         Type
	Title        string
	Body         string
	Metadata     map[string]string // opaque, type-specific
	Priority     Priority
	Actions      []string // interactive action identifiers
	GroupID      string
	DeliveryDate time.Time // zero = deliver on admission
	SoundEnabled bool
}

// NewRequest builds a request with a fresh unique id and the type's
// default sound setting.
func NewRequest(t Type, title, body string) Request {
	return Request{
		ID:           uuid.NewString(),
		Type:         t,
		Title:        title,
		Body:         body,
		Priority:     PriorityMedium,
		SoundEnabled: t.soundDefault(),
	}
}

// delayedUntil derives a copy scheduled for a later instant.
// The id is stable across the transformation.
func (r Request) delayedUntil(at time.Time) Request {
	cp := r
	cp.DeliveryDate = at
	return cp
}

// Templates supplies grouped-batch summary text. messages.Catalog is the
// default implementation; the scheduler falls back to built-in wording
// when none is injected.
type Templates interface {
	GroupedTitle(t Type, n int) string
	GroupedBody(t Type, n int) string
}
