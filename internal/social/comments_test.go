package social

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"notigate/internal/ratelimit"
	"notigate/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newLimiter(minutely int) *ratelimit.Service {
	return ratelimit.New(ratelimit.Config{Limits: map[ratelimit.Action]ratelimit.LimitSet{
		ratelimit.ActionComment: {Minutely: minutely, Hourly: 30, Daily: 200},
	}}, discardLogger(), nil)
}

func TestPostStoresComment(t *testing.T) {
	str := storage.NewMemory()
	c := NewComments(newLimiter(3), str, discardLogger())

	id, err := c.Post(context.Background(), "u1", "nice pace")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if id == "" {
		t.Fatal("expected a comment id")
	}
}

func TestPostRejectsEmptyBody(t *testing.T) {
	c := NewComments(newLimiter(3), storage.NewMemory(), discardLogger())
	if _, err := c.Post(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("Post = %v, want ErrEmptyComment", err)
	}
}

func TestPostMapsLimiterRejection(t *testing.T) {
	c := NewComments(newLimiter(1), storage.NewMemory(), discardLogger())
	ctx := context.Background()

	if _, err := c.Post(ctx, "u1", "first"); err != nil {
		t.Fatalf("first post: %v", err)
	}
	_, err := c.Post(ctx, "u1", "second")
	if !errors.Is(err, ErrTooManyComments) {
		t.Fatalf("Post = %v, want ErrTooManyComments", err)
	}
	// The limiter detail survives the wrapping for callers that want the
	// raw reset time.
	var rle *ratelimit.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected wrapped *RateLimitError in %v", err)
	}
	if rle.ResetAt.IsZero() {
		t.Fatal("ResetAt should be set")
	}
}

func TestPostWithoutLimiter(t *testing.T) {
	c := NewComments(nil, storage.NewMemory(), discardLogger())
	if _, err := c.Post(context.Background(), "u1", "hi"); !errors.Is(err, ratelimit.ErrUnavailable) {
		t.Fatalf("Post = %v, want ErrUnavailable", err)
	}
}
