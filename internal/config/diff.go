package config

import (
	"strings"

	logx "govreminder/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured fields for logging. Secrets (IFTTT key, Telegram token,
// debug token) are never included; only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Governance != newCfg.Governance {
		changed = append(changed, "governance")
		attrs = append(attrs,
			logx.String("governance.base_url", newCfg.Governance.BaseURL),
			logx.String("governance.timeout", newCfg.Governance.Timeout),
		)
	}

	if oldCfg.IFTTT != newCfg.IFTTT {
		changed = append(changed, "ifttt")
		attrs = append(attrs,
			logx.String("ifttt.base_url", newCfg.IFTTT.BaseURL),
			logx.Bool("ifttt.key_set", strings.TrimSpace(newCfg.IFTTT.Key) != ""),
			logx.Bool("ifttt.key_changed", oldCfg.IFTTT.Key != newCfg.IFTTT.Key),
		)
	}

	if oldCfg.Reminders != newCfg.Reminders {
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.String("reminders.vote_min_age", newCfg.Reminders.VoteMinAge),
			logx.String("reminders.vote_max_age", newCfg.Reminders.VoteMaxAge),
			logx.String("reminders.signup_window", newCfg.Reminders.SignupWindow),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Bool("notifier.dry_run", newCfg.Notifier.DryRun),
			logx.Bool("notifier.telegram.enabled", newCfg.Notifier.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.spec", newCfg.Scheduler.Spec),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", newCfg.Debug.Addr),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}

	return changed, attrs
}

// RestartRequired lists changed sections that a hot reload cannot apply.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "storage", "debug":
			out = append(out, s)
		}
	}
	return out
}
