package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSubject marks a malformed or empty subject id. Caller bug; not retryable.
	ErrInvalidSubject = errors.New("invalid subject id")

	// ErrUnavailable marks a limiter that is not ready. Retryable after backoff.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

// RateLimitError reports an exceeded quota along with the instant the
// most-restrictive violated tier frees a slot.
type RateLimitError struct {
	Action  Action
	Tier    string
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (%s tier), retry after %s",
		e.Action, e.Tier, e.ResetAt.Format(time.RFC3339))
}
