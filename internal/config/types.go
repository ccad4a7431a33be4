package config

// Config is the whole daemon configuration. All durations are Go
// duration strings (e.g. "500ms", "15m", "1h").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Transport TransportConfig `json:"transport"`

	// RateLimit configures the multi-tier limiter. Omitted actions fall
	// back to the built-in quota table.
	RateLimit *RateLimitConfig `json:"rate_limit,omitempty"`

	// Preferences seeds the scheduler's notification preferences. The
	// persisted preference store, when present, wins over this block.
	Preferences *PreferencesConfig `json:"preferences,omitempty"`

	Notifier    NotifierConfig    `json:"notifier,omitempty"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer backing the in-app inbox
// and the preference store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./notigate.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TransportConfig selects the platform notification transport.
// Driver "memory" (default) keeps deliveries in-process; "telegram"
// pushes them to a chat.
type TransportConfig struct {
	Driver   string          `json:"driver,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	ChatID      int64  `json:"chat_id"`
	ThreadID    int    `json:"thread_id,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// RateLimitConfig overrides limiter quotas and housekeeping knobs.
type RateLimitConfig struct {
	// Limits maps action names to per-tier quotas. Zero tiers are not
	// enforced, except hourly/daily which every action should set.
	Limits map[string]LimitSetConfig `json:"limits,omitempty"`

	Retention     string `json:"retention,omitempty"`      // default "168h"
	SweepInterval string `json:"sweep_interval,omitempty"` // default "1h"
}

type LimitSetConfig struct {
	Minutely int `json:"minutely,omitempty"`
	Hourly   int `json:"hourly"`
	Daily    int `json:"daily"`
	Weekly   int `json:"weekly,omitempty"`
}

// PreferencesConfig mirrors notify.Preferences in config form.
type PreferencesConfig struct {
	Enabled map[string]bool `json:"enabled,omitempty"`
	Batch   map[string]bool `json:"batch,omitempty"`
	Sound   map[string]bool `json:"sound,omitempty"`

	QuietHours *QuietHoursConfig `json:"quiet_hours,omitempty"`

	MaxPerHour     int    `json:"max_per_hour,omitempty"`
	BatchingWindow string `json:"batching_window,omitempty"` // default "15m"

	// Pointers so "omitted" (default true) differs from explicit false.
	BadgeEnabled *bool `json:"badge_enabled,omitempty"`
	PushEnabled  *bool `json:"push_enabled,omitempty"`
}

type QuietHoursConfig struct {
	Enabled         bool   `json:"enabled"`
	Start           string `json:"start"` // "HH:MM"
	End             string `json:"end"`   // "HH:MM"
	IgnoreImmediate bool   `json:"ignore_immediate"`
}

// NotifierConfig controls the delivery path.
type NotifierConfig struct {
	// PacePerSec caps outgoing transport calls. Default 5.
	PacePerSec int `json:"pace_per_sec,omitempty"`
}

// MaintenanceConfig overrides the housekeeping schedules.
type MaintenanceConfig struct {
	// SweepSpec runs the limiter history sweep. Default "@every 1h".
	SweepSpec string `json:"sweep_spec,omitempty"`
	// PruneSpec runs the delivery-log prune. Default "@every 1h".
	PruneSpec string `json:"prune_spec,omitempty"`
}
