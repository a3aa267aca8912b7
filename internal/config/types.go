package config

// Config is the on-disk configuration (JSON, YAML, or TOML).
//
// All durations are Go duration strings (e.g. "30s", "5m", "120h").
type Config struct {
	Governance GovernanceConfig `json:"governance"`
	IFTTT      IFTTTConfig      `json:"ifttt"`
	Reminders  RemindersConfig  `json:"reminders"`
	Notifier   NotifierConfig   `json:"notifier"`
	Storage    StorageConfig    `json:"storage"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Logging    LoggingConfig    `json:"logging"`
	Debug      DebugConfig      `json:"debug"`
}

// GovernanceConfig points at the governance-period API.
type GovernanceConfig struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout"`
}

// IFTTTConfig configures the maker webhook trigger endpoint.
//
// Key is a secret; it is never logged. GOVREMINDER_IFTTT_KEY overrides it.
type IFTTTConfig struct {
	BaseURL string `json:"base_url"`
	Key     string `json:"key"`
	Timeout string `json:"timeout"`
}

// RemindersConfig holds the time windows used by the decision logic.
//
// Defaults:
//   - vote_min_age: "1m"
//   - vote_max_age: "120h" (5 days)
//   - signup_window: "120h" (5 days)
type RemindersConfig struct {
	VoteMinAge   string `json:"vote_min_age"`
	VoteMaxAge   string `json:"vote_max_age"`
	SignupWindow string `json:"signup_window"`
}

// NotifierConfig controls outbound delivery.
type NotifierConfig struct {
	// RatePerSec paces sequential webhook posts. 0 disables pacing.
	RatePerSec int `json:"rate_per_sec"`
	// DryRun logs events instead of posting them.
	DryRun   bool           `json:"dry_run"`
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures the optional operator mirror.
//
// Token is a secret; GOVREMINDER_TELEGRAM_TOKEN overrides it.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// StorageConfig controls where the snapshot lives.
//
// Example:
//
//	storage: { driver: "file", path: "./governance_snapshot.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	// InitMissing starts from a zero snapshot when none exists yet.
	InitMissing bool `json:"init_missing"`
}

// SchedulerConfig controls resident mode.
//
// When Enabled is false the binary performs a single run and exits,
// leaving scheduling to cron/systemd timers.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression ("*/30 * * * *", "@hourly"), an interval ("30m"),
	// or HH:MM ("01:30").
	Spec       string `json:"spec"`
	Timezone   string `json:"timezone,omitempty"`
	RunOnStart bool   `json:"run_on_start"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DebugConfig controls the optional metrics/health HTTP listener (resident mode only).
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"` // optional bearer token (do not log)
	Pprof   bool   `json:"pprof,omitempty"`
}
