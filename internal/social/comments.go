// Package social holds the rate-limited write paths of the social
// surface. It consumes the generic limiter the way any feature should:
// check, act, and map the limiter's error into its own domain error.
package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"notigate/internal/ratelimit"
	"notigate/internal/storage"
)

var (
	ErrEmptyComment = errors.New("comment body is empty")

	// ErrTooManyComments wraps a limiter rejection for the comment path.
	ErrTooManyComments = errors.New("too many comments")
)

// Limiter is the slice of the rate limiter the comment path needs.
type Limiter interface {
	Check(action ratelimit.Action, subject string) error
}

type Comments struct {
	lim Limiter
	str storage.Store
	log *slog.Logger
}

func NewComments(lim Limiter, str storage.Store, log *slog.Logger) *Comments {
	return &Comments{lim: lim, str: str, log: log}
}

// Post admits one comment for the subject. A limiter rejection becomes
// ErrTooManyComments carrying the retry instant in its message; the
// caller can unwrap *ratelimit.RateLimitError for the raw reset time.
func (c *Comments) Post(ctx context.Context, subject, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyComment
	}
	if c.lim == nil {
		return "", ratelimit.ErrUnavailable
	}

	if err := c.lim.Check(ratelimit.ActionComment, subject); err != nil {
		var rle *ratelimit.RateLimitError
		if errors.As(err, &rle) {
			return "", fmt.Errorf("%w: retry after %s: %w",
				ErrTooManyComments, rle.ResetAt.Format(time.RFC3339), rle)
		}
		return "", err
	}

	id := uuid.NewString()
	if c.str != nil {
		cm := storage.Comment{ID: id, Subject: subject, Body: body, At: time.Now()}
		if err := c.str.AppendComment(ctx, cm); err != nil {
			c.log.Warn("comment persist failed", slog.String("subject", subject), slog.Any("err", err))
			return "", err
		}
	}
	return id, nil
}
