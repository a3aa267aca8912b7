package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"govreminder/internal/task/scheduler"
	logx "govreminder/pkg/logx"
)

// Validate checks a decoded config. It runs on initial load and before every
// hot reload is committed, so a bad edit never replaces a working config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if err := validateBaseURL("governance.base_url", cfg.Governance.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if err := validateBaseURL("ifttt.base_url", cfg.IFTTT.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(cfg.IFTTT.Key) == "" && !cfg.Notifier.DryRun {
		errs = append(errs, fmt.Errorf("ifttt.key is required (or set %s, or notifier.dry_run)", EnvIFTTTKey))
	}

	for path, raw := range map[string]string{
		"governance.timeout":      cfg.Governance.Timeout,
		"ifttt.timeout":           cfg.IFTTT.Timeout,
		"reminders.vote_min_age":  cfg.Reminders.VoteMinAge,
		"reminders.vote_max_age":  cfg.Reminders.VoteMaxAge,
		"reminders.signup_window": cfg.Reminders.SignupWindow,
		"storage.busy_timeout":    cfg.Storage.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	minAge, _ := ParseDurationField("reminders.vote_min_age", cfg.Reminders.VoteMinAge)
	maxAge, _ := ParseDurationField("reminders.vote_max_age", cfg.Reminders.VoteMaxAge)
	if maxAge > 0 && minAge >= maxAge {
		errs = append(errs, errors.New("reminders.vote_min_age must be below reminders.vote_max_age"))
	}

	if cfg.Notifier.RatePerSec < 0 {
		errs = append(errs, errors.New("notifier.rate_per_sec must be >= 0"))
	}
	if tg := cfg.Notifier.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			errs = append(errs, fmt.Errorf("notifier.telegram.token is required when enabled (or set %s)", EnvTelegramToken))
		}
		if tg.ChatID == 0 {
			errs = append(errs, errors.New("notifier.telegram.chat_id is required when enabled"))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown %q", cfg.Storage.Driver))
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path is required"))
	}

	if cfg.Scheduler.Enabled {
		if strings.TrimSpace(cfg.Scheduler.Spec) == "" {
			errs = append(errs, errors.New("scheduler.spec is required when scheduler.enabled is true"))
		} else if err := scheduler.Validate(cfg.Scheduler.Spec); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.spec: %w", err))
		}
	}
	if cfg.Debug.Enabled && strings.TrimSpace(cfg.Debug.Addr) == "" {
		errs = append(errs, errors.New("debug.addr is required when debug.enabled is true"))
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err))
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown %q", cfg.Logging.Level))
	}

	return errors.Join(errs...)
}

func validateBaseURL(path, raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("%s is required", path)
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", path, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", path)
	}
	return nil
}
