package app

import (
	"time"

	"govreminder/internal/config"
	"govreminder/internal/governance"
	"govreminder/internal/notifier"
	"govreminder/internal/notifier/telegram"
	"govreminder/internal/observability/debugsrv"
	"govreminder/internal/reminder"
	"govreminder/internal/storage"
	"govreminder/internal/task/scheduler"
	logx "govreminder/pkg/logx"
)

// runTimeout bounds one scheduled run: two fetches, a handful of posts, one save.
const runTimeout = 5 * time.Minute

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapGovernanceConfig(cfg *config.Config) (governance.Config, error) {
	timeout, err := config.ParseDurationOrDefault("governance.timeout", cfg.Governance.Timeout, 30*time.Second)
	if err != nil {
		return governance.Config{}, err
	}
	return governance.Config{BaseURL: cfg.Governance.BaseURL, Timeout: timeout}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	timeout, err := config.ParseDurationOrDefault("ifttt.timeout", cfg.IFTTT.Timeout, 30*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		BaseURL:    cfg.IFTTT.BaseURL,
		Key:        cfg.IFTTT.Key,
		Timeout:    timeout,
		RatePerSec: cfg.Notifier.RatePerSec,
		DryRun:     cfg.Notifier.DryRun,
	}, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, bool) {
	tg := cfg.Notifier.Telegram
	if !tg.Enabled {
		return telegram.Config{}, false
	}
	return telegram.Config{Token: tg.Token, ChatID: tg.ChatID, ThreadID: tg.ThreadID}, true
}

func mapWindows(cfg *config.Config) (reminder.Windows, error) {
	def := reminder.DefaultWindows()
	var (
		w   reminder.Windows
		err error
	)
	if w.VoteMinAge, err = config.ParseDurationOrDefault("reminders.vote_min_age", cfg.Reminders.VoteMinAge, def.VoteMinAge); err != nil {
		return reminder.Windows{}, err
	}
	if w.VoteMaxAge, err = config.ParseDurationOrDefault("reminders.vote_max_age", cfg.Reminders.VoteMaxAge, def.VoteMaxAge); err != nil {
		return reminder.Windows{}, err
	}
	if w.SignupWindow, err = config.ParseDurationOrDefault("reminders.signup_window", cfg.Reminders.SignupWindow, def.SignupWindow); err != nil {
		return reminder.Windows{}, err
	}
	return w, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path, BusyTimeout: busy}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Spec:       cfg.Scheduler.Spec,
		Timezone:   cfg.Scheduler.Timezone,
		RunOnStart: cfg.Scheduler.RunOnStart,
		Timeout:    runTimeout,
	}
}

func mapDebugConfig(cfg *config.Config) (debugsrv.Config, bool) {
	d := cfg.Debug
	return debugsrv.Config{Addr: d.Addr, Token: d.Token, Pprof: d.Pprof}, d.Enabled
}
