package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"notigate/internal/storage"
	"notigate/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// openPrefs admits everything: no quiet hours, no batching, a quota high
// enough to never bind. Tests tighten individual gates from here.
func openPrefs() Preferences {
	p := DefaultPreferences()
	p.Batch = map[Type]bool{}
	p.Quiet.Enabled = false
	p.MaxPerHour = 1000
	return p
}

func newTestService(p Preferences) (*Service, *transport.Memory, storage.Store) {
	tpt := transport.NewMemory()
	str := storage.NewMemory()
	svc := New(Config{Preferences: &p}, tpt, str, nil, discardLogger(), nil)
	return svc, tpt, str
}

func TestScheduleDeliversImmediately(t *testing.T) {
	svc, tpt, str := newTestService(openPrefs())

	req := NewRequest(TypeWorkoutCompleted, "Workout Complete", "Nice run!")
	if err := svc.Schedule(context.Background(), req); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	got := tpt.Delivered()
	if len(got) != 1 {
		t.Fatalf("delivered = %d, want 1", len(got))
	}
	if got[0].ID != req.ID || got[0].Title != "Workout Complete" {
		t.Fatalf("unexpected delivery: %+v", got[0])
	}
	if !got[0].Sound {
		t.Fatal("workout_completed should carry sound by default")
	}

	unread, err := str.UnreadCount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if unread != 1 {
		t.Fatalf("unread = %d, want 1 (in-app mirror)", unread)
	}
}

func TestPreferenceGateDropsSilently(t *testing.T) {
	p := openPrefs()
	p.Enabled[TypeKudos] = false
	svc, tpt, _ := newTestService(p)

	err := svc.Schedule(context.Background(), NewRequest(TypeKudos, "Kudos", "x"))
	if err != nil {
		t.Fatalf("suppression must be a silent success, got %v", err)
	}
	if n := len(tpt.Delivered()); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
	if n := svc.batchSize(TypeKudos); n != 0 {
		t.Fatalf("suppressed request must not reach the batch, size = %d", n)
	}
}

func TestQuietHoursDefersToWindowEnd(t *testing.T) {
	p := openPrefs()
	p.Quiet = QuietHours{Enabled: true, Start: "22:00", End: "07:00", IgnoreImmediate: true}
	svc, tpt, _ := newTestService(p)

	// 23:30 falls inside the overnight window, so delivery moves to
	// 07:00 the next day. A far-future date keeps the transport entry
	// pending against the real clock.
	now := time.Date(2030, time.January, 2, 23, 30, 0, 0, time.UTC)
	req := NewRequest(TypeComment, "New Comment", "x")
	if err := svc.scheduleAt(context.Background(), now, req); err != nil {
		t.Fatalf("scheduleAt: %v", err)
	}

	pending, err := svc.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	want := time.Date(2030, time.January, 3, 7, 0, 0, 0, time.UTC)
	if !pending[0].DeliveryDate.Equal(want) {
		t.Fatalf("DeliveryDate = %v, want %v", pending[0].DeliveryDate, want)
	}
	if n := len(tpt.Delivered()); n != 0 {
		t.Fatalf("nothing should fire yet, delivered = %d", n)
	}
}

func TestQuietHoursBeforeMidnightSameWindow(t *testing.T) {
	p := openPrefs()
	p.Quiet = QuietHours{Enabled: true, Start: "22:00", End: "07:00"}
	svc, _, _ := newTestService(p)

	// 06:00 is inside the tail of the overnight window; the end is the
	// same day's 07:00, not tomorrow's.
	now := time.Date(2030, time.January, 2, 6, 0, 0, 0, time.UTC)
	req := NewRequest(TypeComment, "c", "x")
	if err := svc.scheduleAt(context.Background(), now, req); err != nil {
		t.Fatal(err)
	}
	pending, err := svc.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	want := time.Date(2030, time.January, 2, 7, 0, 0, 0, time.UTC)
	if !pending[0].DeliveryDate.Equal(want) {
		t.Fatalf("DeliveryDate = %v, want %v", pending[0].DeliveryDate, want)
	}
}

func TestImmediateBypassesQuietHours(t *testing.T) {
	p := openPrefs()
	p.Quiet = QuietHours{Enabled: true, Start: "22:00", End: "07:00", IgnoreImmediate: true}
	svc, tpt, _ := newTestService(p)

	now := time.Date(2030, time.January, 2, 23, 30, 0, 0, time.UTC)
	req := NewRequest(TypeMilestone, "Milestone", "x")
	req.Priority = PriorityImmediate
	if err := svc.scheduleAt(context.Background(), now, req); err != nil {
		t.Fatal(err)
	}
	if n := len(tpt.Delivered()); n != 1 {
		t.Fatalf("delivered = %d, want 1 (immediate bypasses quiet hours)", n)
	}
}

func TestImmediateHonorsQuietHoursWhenConfigured(t *testing.T) {
	p := openPrefs()
	p.Quiet = QuietHours{Enabled: true, Start: "22:00", End: "07:00", IgnoreImmediate: false}
	svc, tpt, _ := newTestService(p)

	now := time.Date(2030, time.January, 2, 23, 30, 0, 0, time.UTC)
	req := NewRequest(TypeMilestone, "Milestone", "x")
	req.Priority = PriorityImmediate
	if err := svc.scheduleAt(context.Background(), now, req); err != nil {
		t.Fatal(err)
	}
	if n := len(tpt.Delivered()); n != 0 {
		t.Fatalf("delivered = %d, want 0 (deferred instead)", n)
	}
}

func TestHourlyQuotaDivertsToBatch(t *testing.T) {
	p := openPrefs()
	p.MaxPerHour = 3
	svc, tpt, _ := newTestService(p)

	now := time.Now()
	for i := 0; i < 3; i++ {
		req := NewRequest(TypeComment, "c", "x")
		if err := svc.scheduleAt(context.Background(), now, req); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}
	if n := len(tpt.Delivered()); n != 3 {
		t.Fatalf("delivered = %d, want 3", n)
	}

	// Over quota: diverted to the type's batch, not dropped.
	req := NewRequest(TypeComment, "c", "x")
	if err := svc.scheduleAt(context.Background(), now, req); err != nil {
		t.Fatal(err)
	}
	if n := len(tpt.Delivered()); n != 3 {
		t.Fatalf("delivered = %d, want still 3", n)
	}
	if n := svc.batchSize(TypeComment); n != 1 {
		t.Fatalf("batch size = %d, want 1", n)
	}
}

func TestImmediateBypassesQuotaAndBatching(t *testing.T) {
	p := openPrefs()
	p.MaxPerHour = 1
	p.Batch[TypeKudos] = true
	svc, tpt, _ := newTestService(p)

	now := time.Now()
	if err := svc.scheduleAt(context.Background(), now, NewRequest(TypeComment, "c", "x")); err != nil {
		t.Fatal(err)
	}

	req := NewRequest(TypeKudos, "Kudos", "x")
	req.Priority = PriorityImmediate
	if err := svc.scheduleAt(context.Background(), now, req); err != nil {
		t.Fatal(err)
	}
	if n := len(tpt.Delivered()); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	if n := svc.batchSize(TypeKudos); n != 0 {
		t.Fatalf("immediate kudos must not be batched, size = %d", n)
	}
}

func TestBatchGateAccumulates(t *testing.T) {
	p := openPrefs()
	p.Batch[TypeKudos] = true
	svc, tpt, _ := newTestService(p)

	for i := 0; i < 2; i++ {
		if err := svc.Schedule(context.Background(), NewRequest(TypeKudos, "Kudos", "x")); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(tpt.Delivered()); n != 0 {
		t.Fatalf("delivered = %d, want 0 while accumulating", n)
	}
	if n := svc.batchSize(TypeKudos); n != 2 {
		t.Fatalf("batch size = %d, want 2", n)
	}
}

func TestPushDisabledStillMirrorsToStore(t *testing.T) {
	p := openPrefs()
	p.PushEnabled = false
	svc, tpt, str := newTestService(p)

	if err := svc.Schedule(context.Background(), NewRequest(TypeReminder, "r", "x")); err != nil {
		t.Fatal(err)
	}
	if n := len(tpt.Delivered()); n != 0 {
		t.Fatalf("transport should be untouched, delivered = %d", n)
	}
	unread, err := str.UnreadCount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if unread != 1 {
		t.Fatalf("unread = %d, want 1", unread)
	}
}

func TestCancelRemovesPendingDelivery(t *testing.T) {
	svc, _, _ := newTestService(openPrefs())

	req := NewRequest(TypeReminder, "Later", "x")
	req.DeliveryDate = time.Now().Add(time.Hour)
	if err := svc.Schedule(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	svc.Cancel(req.ID)
	pending, err = svc.Pending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d after cancel, want 0", len(pending))
	}
}

func TestUpdatePreferencesPersists(t *testing.T) {
	svc, _, str := newTestService(openPrefs())

	p := svc.Preferences()
	p.MaxPerHour = 42
	if err := svc.UpdatePreferences(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	loaded, ok, err := LoadPreferences(context.Background(), str)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected persisted preferences")
	}
	if loaded.MaxPerHour != 42 {
		t.Fatalf("MaxPerHour = %d, want 42", loaded.MaxPerHour)
	}
	if svc.Preferences().MaxPerHour != 42 {
		t.Fatal("live preferences not swapped")
	}
}

func TestUpdatePreferencesRejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService(openPrefs())

	p := svc.Preferences()
	p.Quiet = QuietHours{Enabled: true, Start: "25:00", End: "07:00"}
	if err := svc.UpdatePreferences(context.Background(), p); err == nil {
		t.Fatal("expected validation error")
	}
	if svc.Preferences().Quiet.Enabled {
		t.Fatal("invalid preferences must not be applied")
	}
}

func TestPruneDeliveryLog(t *testing.T) {
	svc, _, _ := newTestService(openPrefs())
	now := time.Now()

	svc.mu.Lock()
	svc.deliveryLog = []time.Time{
		now.Add(-2 * time.Hour),
		now.Add(-90 * time.Minute),
		now.Add(-10 * time.Minute),
	}
	svc.mu.Unlock()

	if removed := svc.PruneDeliveryLog(now); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if n := svc.deliveredLastHour(now); n != 1 {
		t.Fatalf("deliveredLastHour = %d, want 1", n)
	}

	p := svc.Preferences()
	p.MaxPerHour = 1
	if got := svc.admitRate(now, p, TypeComment); got != rateOverQuota {
		t.Fatalf("admitRate = %v, want over-quota with one delivery against a cap of 1", got)
	}
}

func TestConcurrentSchedulesRespectHourlyCap(t *testing.T) {
	p := openPrefs()
	p.MaxPerHour = 5
	svc, tpt, _ := newTestService(p)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Schedule(context.Background(), NewRequest(TypeComment, "c", "x"))
		}()
	}
	wg.Wait()

	if n := len(tpt.Delivered()); n != 5 {
		t.Fatalf("delivered = %d, want exactly the cap of 5", n)
	}
	if n := svc.batchSize(TypeComment); n != 15 {
		t.Fatalf("batch size = %d, want the 15 diverted requests", n)
	}
}

func TestInboxSurface(t *testing.T) {
	svc, _, _ := newTestService(openPrefs())
	ctx := context.Background()

	for _, title := range []string{"first", "second"} {
		if err := svc.Schedule(ctx, NewRequest(TypeComment, title, "x")); err != nil {
			t.Fatal(err)
		}
	}

	unread, err := svc.UnreadCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if unread != 2 {
		t.Fatalf("UnreadCount = %d, want 2", unread)
	}

	items, err := svc.Inbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Title != "second" {
		t.Fatalf("Inbox = %+v, want newest first", items)
	}

	if err := svc.MarkInboxRead(ctx); err != nil {
		t.Fatal(err)
	}
	unread, err = svc.UnreadCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if unread != 0 {
		t.Fatalf("UnreadCount after MarkInboxRead = %d, want 0", unread)
	}
}
