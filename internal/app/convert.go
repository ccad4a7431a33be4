package app

import (
	"time"

	"notigate/internal/config"
	"notigate/internal/notify"
	"notigate/internal/ratelimit"
)

// limiterConfig maps the config block onto ratelimit.Config, keeping the
// built-in quota table for actions the config doesn't mention.
func limiterConfig(cfg *config.Config) (ratelimit.Config, error) {
	out := ratelimit.Config{}
	rl := cfg.RateLimit
	if rl == nil {
		return out, nil
	}

	var err error
	out.Retention, err = config.ParseDuration("rate_limit.retention", rl.Retention, 7*24*time.Hour)
	if err != nil {
		return out, err
	}
	out.SweepInterval, err = config.ParseDuration("rate_limit.sweep_interval", rl.SweepInterval, time.Hour)
	if err != nil {
		return out, err
	}

	if len(rl.Limits) > 0 {
		limits := ratelimit.DefaultLimits()
		for name, ls := range rl.Limits {
			limits[ratelimit.Action(name)] = ratelimit.LimitSet{
				Minutely: ls.Minutely,
				Hourly:   ls.Hourly,
				Daily:    ls.Daily,
				Weekly:   ls.Weekly,
			}
		}
		out.Limits = limits
	}
	return out, nil
}

// preferences maps the config block onto notify.Preferences, starting
// from defaults so omitted fields keep sane values.
func preferences(cfg *config.Config) (notify.Preferences, error) {
	p := notify.DefaultPreferences()
	pc := cfg.Preferences
	if pc == nil {
		return p, nil
	}

	for name, en := range pc.Enabled {
		p.Enabled[notify.Type(name)] = en
	}
	for name, en := range pc.Batch {
		p.Batch[notify.Type(name)] = en
	}
	for name, en := range pc.Sound {
		p.Sound[notify.Type(name)] = en
	}

	if q := pc.QuietHours; q != nil {
		p.Quiet = notify.QuietHours{
			Enabled:         q.Enabled,
			Start:           q.Start,
			End:             q.End,
			IgnoreImmediate: q.IgnoreImmediate,
		}
	}
	if pc.MaxPerHour > 0 {
		p.MaxPerHour = pc.MaxPerHour
	}
	var err error
	p.BatchingWindow, err = config.ParseDuration("preferences.batching_window", pc.BatchingWindow, p.BatchingWindow)
	if err != nil {
		return p, err
	}
	if pc.BadgeEnabled != nil {
		p.BadgeEnabled = *pc.BadgeEnabled
	}
	if pc.PushEnabled != nil {
		p.PushEnabled = *pc.PushEnabled
	}
	return p, p.Validate()
}
