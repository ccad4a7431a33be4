package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"notigate/internal/transport"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// SendTimeout bounds one outgoing API call. Default 10s.
	SendTimeout time.Duration
}

// Adapter delivers notifications to a Telegram chat. Deferred triggers
// are held locally with per-delivery timers; Telegram itself has no
// pending queue, so Pending reflects only what this process still holds.
type Adapter struct {
	cfg Config
	log *slog.Logger
	bot *tele.Bot

	mu        sync.Mutex
	closed    bool
	pending   map[string]transport.Delivery
	timers    map[string]*time.Timer
	delivered map[string]struct{}
}

func New(cfg Config, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	// Offline mode: no getMe roundtrip, no poller. We only send.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:       cfg,
		log:       log,
		bot:       b,
		pending:   map[string]transport.Delivery{},
		timers:    map[string]*time.Timer{},
		delivered: map[string]struct{}{},
	}, nil
}

func (a *Adapter) Add(ctx context.Context, d transport.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := time.Until(d.FireAt)
	if d.FireAt.IsZero() || delay <= 0 {
		return a.send(d)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return transport.ErrClosed
	}
	if t, ok := a.timers[d.ID]; ok {
		t.Stop()
	}
	a.pending[d.ID] = d
	id := d.ID
	a.timers[id] = time.AfterFunc(delay, func() { a.fire(id) })
	a.mu.Unlock()
	return nil
}

func (a *Adapter) fire(id string) {
	a.mu.Lock()
	d, ok := a.pending[id]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, id)
	delete(a.timers, id)
	a.mu.Unlock()

	// Deferred sends have no caller waiting; log-only on failure.
	if err := a.send(d); err != nil {
		a.log.Warn("deferred telegram send failed", slog.String("id", d.ID), slog.Any("err", err))
	}
}

func (a *Adapter) send(d transport.Delivery) error {
	text := d.Title
	if d.Body != "" {
		if text != "" {
			text += "\n"
		}
		text += d.Body
	}
	if text == "" {
		return nil
	}

	opts := &tele.SendOptions{DisableWebPagePreview: true, ThreadID: a.cfg.ThreadID}
	if !d.Sound {
		opts.DisableNotification = true
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.bot.Send(tele.ChatID(a.cfg.ChatID), text, opts)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(a.cfg.SendTimeout):
		return errors.New("telegram send timed out")
	}

	a.mu.Lock()
	a.delivered[d.ID] = struct{}{}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Remove(ids ...string) {
	a.mu.Lock()
	for _, id := range ids {
		if t, ok := a.timers[id]; ok {
			t.Stop()
			delete(a.timers, id)
		}
		delete(a.pending, id)
		delete(a.delivered, id)
	}
	a.mu.Unlock()
}

func (a *Adapter) RemovePending() {
	a.mu.Lock()
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
	a.pending = map[string]transport.Delivery{}
	a.mu.Unlock()
}

func (a *Adapter) RemoveDelivered() {
	a.mu.Lock()
	a.delivered = map[string]struct{}{}
	a.mu.Unlock()
}

func (a *Adapter) Pending(ctx context.Context) ([]transport.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	out := make([]transport.Delivery, 0, len(a.pending))
	for _, d := range a.pending {
		out = append(out, d)
	}
	a.mu.Unlock()
	return out, nil
}

// Close stops all pending timers. Messages already handed to Telegram
// are not retracted.
func (a *Adapter) Close() {
	a.mu.Lock()
	a.closed = true
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
	a.pending = map[string]transport.Delivery{}
	a.mu.Unlock()
}
