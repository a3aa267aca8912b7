package config

import (
	"os"
	"strings"
)

const (
	DefaultGovernanceBaseURL = "https://governance.algorand.foundation/api"
	DefaultIFTTTBaseURL      = "https://maker.ifttt.com"
	DefaultSnapshotPath      = "governance_snapshot.json"
	DefaultDebugAddr         = "127.0.0.1:9464"

	EnvIFTTTKey      = "GOVREMINDER_IFTTT_KEY"
	EnvTelegramToken = "GOVREMINDER_TELEGRAM_TOKEN"
)

// Default returns the configuration used when no file exists. Decoding a file
// on top of it keeps these values for omitted keys.
func Default() Config {
	return Config{
		Governance: GovernanceConfig{
			BaseURL: DefaultGovernanceBaseURL,
			Timeout: "30s",
		},
		IFTTT: IFTTTConfig{
			BaseURL: DefaultIFTTTBaseURL,
			Timeout: "30s",
		},
		Reminders: RemindersConfig{
			VoteMinAge:   "1m",
			VoteMaxAge:   "120h",
			SignupWindow: "120h",
		},
		Notifier: NotifierConfig{
			RatePerSec: 2,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   DefaultSnapshotPath,
		},
		Scheduler: SchedulerConfig{
			Spec: "@every 30m",
		},
		Logging: LoggingConfig{
			Level:   "INFO",
			Console: true,
		},
		Debug: DebugConfig{
			Addr: DefaultDebugAddr,
		},
	}
}

// ApplyEnv overlays secrets from the environment.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv(EnvIFTTTKey)); v != "" {
		cfg.IFTTT.Key = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelegramToken)); v != "" {
		cfg.Notifier.Telegram.Token = v
	}
}
