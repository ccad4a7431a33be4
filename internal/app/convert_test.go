package app

import (
	"testing"
	"time"

	"notigate/internal/config"
	"notigate/internal/notify"
	"notigate/internal/ratelimit"
)

func TestLimiterConfigMergesOverDefaults(t *testing.T) {
	cfg := &config.Config{RateLimit: &config.RateLimitConfig{
		Limits: map[string]config.LimitSetConfig{
			"comment": {Minutely: 1, Hourly: 2, Daily: 3},
		},
		Retention: "24h",
	}}

	got, err := limiterConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got.Retention != 24*time.Hour {
		t.Fatalf("Retention = %v, want 24h", got.Retention)
	}
	if got.SweepInterval != time.Hour {
		t.Fatalf("SweepInterval = %v, want default 1h", got.SweepInterval)
	}
	if ls := got.Limits[ratelimit.ActionComment]; ls.Minutely != 1 || ls.Daily != 3 {
		t.Fatalf("comment limits = %+v", ls)
	}
	// Untouched actions keep the built-in table.
	if ls := got.Limits[ratelimit.ActionKudos]; ls.Hourly == 0 {
		t.Fatalf("kudos limits should come from defaults, got %+v", ls)
	}
}

func TestLimiterConfigNilBlock(t *testing.T) {
	got, err := limiterConfig(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Limits != nil {
		t.Fatal("nil block should leave Limits nil (service applies defaults)")
	}
}

func TestPreferencesOverlay(t *testing.T) {
	off := false
	cfg := &config.Config{Preferences: &config.PreferencesConfig{
		Enabled:        map[string]bool{"kudos": false},
		Batch:          map[string]bool{"comment": true},
		QuietHours:     &config.QuietHoursConfig{Enabled: true, Start: "23:00", End: "06:30"},
		MaxPerHour:     20,
		BatchingWindow: "5m",
		BadgeEnabled:   &off,
	}}

	p, err := preferences(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Enabled[notify.TypeKudos] {
		t.Fatal("kudos should be disabled")
	}
	if !p.Batch[notify.TypeComment] || !p.Batch[notify.TypeKudos] {
		t.Fatal("batch overlay should add to the defaults, not replace them")
	}
	if p.Quiet.Start != "23:00" || !p.Quiet.Enabled {
		t.Fatalf("Quiet = %+v", p.Quiet)
	}
	if p.MaxPerHour != 20 || p.BatchingWindow != 5*time.Minute {
		t.Fatalf("MaxPerHour=%d BatchingWindow=%v", p.MaxPerHour, p.BatchingWindow)
	}
	if p.BadgeEnabled {
		t.Fatal("BadgeEnabled=false pointer should override the default")
	}
	if !p.PushEnabled {
		t.Fatal("omitted PushEnabled keeps the default")
	}
}

func TestPreferencesInvalidQuietHours(t *testing.T) {
	cfg := &config.Config{Preferences: &config.PreferencesConfig{
		QuietHours: &config.QuietHoursConfig{Enabled: true, Start: "25:00", End: "06:30"},
	}}
	if _, err := preferences(cfg); err == nil {
		t.Fatal("expected validation error")
	}
}
