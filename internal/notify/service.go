package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"notigate/internal/eventbus"
	"notigate/internal/storage"
	"notigate/internal/transport"
)

// ErrDeliveryFailed wraps a transport rejection on the synchronous
// delivery path. Deferred (batch-flush) failures are logged, not returned.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Config controls the scheduler service.
type Config struct {
	// Preferences is the initial preference set. Zero value falls back
	// to DefaultPreferences().
	Preferences *Preferences

	// PacePerSec caps outgoing transport calls (token bucket).
	// Default 5/s with equal burst.
	PacePerSec int
}

// Service is the notification admission pipeline: preference gate,
// quiet-hours gate, hourly rate gate, and type batching, in that strict
// order, ending in delivery to the transport and the in-app store.
//
// It is safe for concurrent use. The admission decision itself is
// computed synchronously under short-lived locks; transport calls happen
// outside them.
type Service struct {
	log  *slog.Logger
	bus  eventbus.Bus
	tpt  transport.Transport
	str  storage.Store
	tmpl Templates
	pace *rate.Limiter

	// mu guards prefs and deliveryLog.
	mu          sync.Mutex
	prefs       Preferences
	deliveryLog []time.Time

	// bmu guards batches. A batch exists iff its flush timer is armed.
	bmu     sync.Mutex
	batches map[Type]*pendingBatch
	stopped bool
}

type pendingBatch struct {
	items []Request
	timer *time.Timer
}

func New(cfg Config, tpt transport.Transport, str storage.Store, tmpl Templates, log *slog.Logger, bus eventbus.Bus) *Service {
	prefs := DefaultPreferences()
	if cfg.Preferences != nil {
		prefs = *cfg.Preferences
	}
	pps := cfg.PacePerSec
	if pps <= 0 {
		pps = 5
	}
	return &Service{
		log:     log,
		bus:     bus,
		tpt:     tpt,
		str:     str,
		tmpl:    tmpl,
		pace:    rate.NewLimiter(rate.Limit(pps), pps),
		prefs:   prefs,
		batches: map[Type]*pendingBatch{},
	}
}

// Schedule runs one request through the admission pipeline.
//
// Policy drops and deferrals are silent successes: a nil return means
// the request was delivered, deferred, batched, or deliberately
// suppressed. Only a transport rejection on the synchronous path is an
// error.
func (s *Service) Schedule(ctx context.Context, req Request) error {
	return s.scheduleAt(ctx, time.Now(), req)
}

func (s *Service) scheduleAt(ctx context.Context, now time.Time, req Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	prefs := s.prefs
	s.mu.Unlock()

	// 1. Preference gate: disabled type drops silently.
	if !prefs.typeEnabled(req.Type) {
		s.publish(eventbus.TypeSuppressed, now, req, "")
		s.log.Debug("notification suppressed by preferences",
			slog.String("id", req.ID), slog.String("type", string(req.Type)))
		return nil
	}

	// 2. Quiet-hours gate: defer to the window's end, bypassing the
	// rate and batch gates entirely.
	if prefs.quietActive(now, req.Priority) {
		deferred := req.delayedUntil(prefs.quietEnd(now))
		s.publish(eventbus.TypeDeferred, now, deferred, "")
		s.log.Debug("notification deferred to quiet-hours end",
			slog.String("id", req.ID),
			slog.Time("delivery_date", deferred.DeliveryDate))
		return s.deliver(ctx, now, deferred)
	}

	if req.Priority != PriorityImmediate {
		// 3+4. Rate gate (rolling one-hour delivery count; overflow
		// diverts to the type's batch instead of dropping) and batch
		// gate (types the user opted into grouping). Both decisions and
		// the delivery-log reservation share one critical section, so
		// concurrent admissions cannot overshoot the hourly cap.
		switch s.admitRate(now, prefs, req.Type) {
		case rateOverQuota:
			s.enqueueBatch(now, req, prefs.BatchingWindow)
			s.log.Debug("hourly quota reached; diverted to batch",
				slog.String("id", req.ID), slog.String("type", string(req.Type)))
			return nil
		case rateBatch:
			s.enqueueBatch(now, req, prefs.BatchingWindow)
			return nil
		}
		// Slot reserved by admitRate.
		return s.deliverReserved(ctx, now, req, prefs)
	}

	// 5. Deliver now.
	return s.deliver(ctx, now, req)
}

type rateDecision int

const (
	rateDeliver rateDecision = iota
	rateOverQuota
	rateBatch
)

// admitRate decides the rate and batch gates atomically. When the
// outcome is rateDeliver the delivery-log slot has already been taken;
// diverted requests consume no slot.
func (s *Service) admitRate(now time.Time, prefs Preferences, t Type) rateDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneDeliveryLogLocked(now)
	if prefs.MaxPerHour > 0 && len(s.deliveryLog) >= prefs.MaxPerHour {
		return rateOverQuota
	}
	if prefs.shouldBatch(t) {
		return rateBatch
	}
	s.deliveryLog = append(s.deliveryLog, now)
	return rateDeliver
}

// deliver is shared by the immediate path, the quiet-hours-deferred path,
// and batch flushes: paths that bypass the rate gate and therefore still
// need their delivery-log slot taken.
func (s *Service) deliver(ctx context.Context, now time.Time, req Request) error {
	s.mu.Lock()
	s.deliveryLog = append(s.deliveryLog, now)
	prefs := s.prefs
	s.mu.Unlock()
	return s.deliverReserved(ctx, now, req, prefs)
}

// deliverReserved performs the store mirror and transport call. The
// delivery-log slot must already be held. Store and transport calls run
// outside the scheduler lock.
func (s *Service) deliverReserved(ctx context.Context, now time.Time, req Request, prefs Preferences) error {
	// Mirror into the in-app store first so the notification is visible
	// even when push is disabled or the transport rejects it.
	if s.str != nil {
		item := storage.Item{
			ID:          req.ID,
			Type:        string(req.Type),
			Title:       req.Title,
			Body:        req.Body,
			GroupID:     req.GroupID,
			DeliveredAt: now,
		}
		if err := s.str.AddNotification(ctx, item); err != nil {
			s.log.Warn("in-app store write failed",
				slog.String("id", req.ID), slog.Any("err", err))
		}
	}

	if !prefs.PushEnabled {
		s.publish(eventbus.TypeDelivered, now, req, "")
		return nil
	}

	d := transport.Delivery{
		ID:     req.ID,
		Title:  req.Title,
		Body:   req.Body,
		Sound:  req.SoundEnabled && prefs.soundFor(req.Type),
		Thread: req.GroupID,
		FireAt: req.DeliveryDate,
	}
	if len(req.Actions) > 0 {
		d.Category = string(req.Type)
	}
	if prefs.BadgeEnabled && s.str != nil {
		if unread, err := s.str.UnreadCount(ctx); err == nil {
			d.Badge = unread
			d.HasBadge = true
		}
	}

	if err := s.pace.Wait(ctx); err != nil {
		return err
	}
	if err := s.tpt.Add(ctx, d); err != nil {
		s.publish(eventbus.TypeDeliveryFailed, now, req, err.Error())
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.publish(eventbus.TypeDelivered, now, req, "")
	return nil
}

// Cancel removes both pending and delivered transport entries for the
// id. Idempotent; unknown ids are a no-op. It does not retract the
// in-app store mirror and does not touch batch accumulations.
func (s *Service) Cancel(id string) {
	s.tpt.Remove(id)
}

// CancelAll clears all transport state unconditionally.
func (s *Service) CancelAll() {
	s.tpt.RemovePending()
	s.tpt.RemoveDelivered()
}

// Pending translates the transport's pending set back into request
// shape. The translation is lossy: priority, metadata, and interactive
// actions do not survive the transport format.
func (s *Service) Pending(ctx context.Context) ([]Request, error) {
	ds, err := s.tpt.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(ds))
	for _, d := range ds {
		r := Request{
			ID:           d.ID,
			Title:        d.Title,
			Body:         d.Body,
			Priority:     PriorityMedium,
			GroupID:      d.Thread,
			DeliveryDate: d.FireAt,
			SoundEnabled: d.Sound,
		}
		if d.Category != "" {
			r.Type = Type(d.Category)
		}
		out = append(out, r)
	}
	return out, nil
}

// UnreadCount reports the number of unread in-app notifications. This
// is the same figure the badge carries.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	if s.str == nil {
		return 0, storage.ErrDisabled
	}
	return s.str.UnreadCount(ctx)
}

// Inbox lists the most recent in-app notifications, newest first.
func (s *Service) Inbox(ctx context.Context, limit int) ([]storage.Item, error) {
	if s.str == nil {
		return nil, storage.ErrDisabled
	}
	return s.str.ListRecent(ctx, limit)
}

// MarkInboxRead marks every in-app notification read, resetting the
// unread badge on subsequent deliveries.
func (s *Service) MarkInboxRead(ctx context.Context) error {
	if s.str == nil {
		return storage.ErrDisabled
	}
	return s.str.MarkAllRead(ctx)
}

// Preferences returns the current preference snapshot.
func (s *Service) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Apply swaps preferences without persisting (config hot reload path).
// It does not re-evaluate already-deferred or batched items.
func (s *Service) Apply(p Preferences) {
	s.mu.Lock()
	s.prefs = p
	s.mu.Unlock()
}

// UpdatePreferences swaps preferences atomically and persists them via
// the preference store.
func (s *Service) UpdatePreferences(ctx context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.Apply(p)
	if s.str == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.str.SavePreferences(ctx, raw)
}

// LoadPreferences restores the persisted preference set, if any.
func LoadPreferences(ctx context.Context, str storage.Store) (Preferences, bool, error) {
	if str == nil {
		return Preferences{}, false, nil
	}
	raw, ok, err := str.LoadPreferences(ctx)
	if err != nil || !ok {
		return Preferences{}, false, err
	}
	var p Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		return Preferences{}, false, err
	}
	return p, true, nil
}

// Stop disarms every batch timer and flushes the accumulated items so
// nothing is silently lost on shutdown.
func (s *Service) Stop(ctx context.Context) {
	s.bmu.Lock()
	s.stopped = true
	pending := s.batches
	s.batches = map[Type]*pendingBatch{}
	for _, b := range pending {
		if b.timer != nil {
			b.timer.Stop()
		}
	}
	s.bmu.Unlock()

	for t, b := range pending {
		s.flushItems(ctx, time.Now(), t, b.items)
	}
}

func (s *Service) publish(typ string, now time.Time, req Request, errMsg string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: Event{
		ID:       req.ID,
		Type:     string(req.Type),
		Priority: req.Priority.String(),
		GroupID:  req.GroupID,
		At:       now,
		Error:    errMsg,
	}})
}

// Event is the bus payload for admission and delivery lifecycle events.
type Event struct {
	ID       string
	Type     string
	Priority string
	GroupID  string
	At       time.Time
	Error    string
}
