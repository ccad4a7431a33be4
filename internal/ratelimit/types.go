package ratelimit

import (
	"time"
)

// Action is a named category of rate-limited activity.
type Action string

const (
	ActionComment Action = "comment"
	ActionReply   Action = "reply"
	ActionFollow  Action = "follow"
	ActionKudos   Action = "kudos"
	ActionReport  Action = "report"
)

// LimitSet holds per-tier quotas for one action.
//
// Hourly and Daily are always enforced. Minutely and Weekly are optional;
// zero means the tier is not configured for that action.
type LimitSet struct {
	Minutely int `json:"minutely,omitempty"`
	Hourly   int `json:"hourly"`
	Daily    int `json:"daily"`
	Weekly   int `json:"weekly,omitempty"`
}

// DefaultLimits returns the built-in quota table.
// Config may override any entry at startup or via hot reload.
func DefaultLimits() map[Action]LimitSet {
	return map[Action]LimitSet{
		ActionComment: {Minutely: 3, Hourly: 30, Daily: 200},
		ActionReply:   {Minutely: 5, Hourly: 60, Daily: 300},
		ActionFollow:  {Hourly: 20, Daily: 100, Weekly: 400},
		ActionKudos:   {Minutely: 10, Hourly: 120, Daily: 500},
		ActionReport:  {Hourly: 5, Daily: 20, Weekly: 50},
	}
}

// tierSpec is one evaluated window of a LimitSet.
type tierSpec struct {
	name   string
	window time.Duration
	limit  int
}

// tiers expands a LimitSet into configured tiers in ascending window order.
// The order matters: the smallest violated window decides the reset time.
func tiers(ls LimitSet) []tierSpec {
	out := make([]tierSpec, 0, 4)
	if ls.Minutely > 0 {
		out = append(out, tierSpec{name: "minute", window: time.Minute, limit: ls.Minutely})
	}
	if ls.Hourly > 0 {
		out = append(out, tierSpec{name: "hour", window: time.Hour, limit: ls.Hourly})
	}
	if ls.Daily > 0 {
		out = append(out, tierSpec{name: "day", window: 24 * time.Hour, limit: ls.Daily})
	}
	if ls.Weekly > 0 {
		out = append(out, tierSpec{name: "week", window: 7 * 24 * time.Hour, limit: ls.Weekly})
	}
	return out
}

// record is immutable once appended.
type record struct {
	action Action
	at     time.Time
}

// subjectHistory holds one subject's records in append (== timestamp) order.
type subjectHistory struct {
	records     []record
	lastCleanup time.Time
}
