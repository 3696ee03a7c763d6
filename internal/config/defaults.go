package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 5,
			ShutdownTimeoutSec:    15,
		},
		Telegram: TelegramConfig{
			Enabled:        false,
			PollTimeoutSec: 60,
			Reaction:       "❤",
		},
		Vault: VaultConfig{
			Path: "~/Notes",
		},
		DailyNotes: DailyNotesConfig{
			Format: "2006-01-02",
		},
		Ingest: IngestConfig{
			MessageTemplate: "{{text}}",
			CustomFilePath:  "Telegram-Inbox.md",
			DailyNoteCutoff: "00:00",
			TargetHeading:   "## Inbox",
		},
		Journal: JournalConfig{
			Enabled:       true,
			DBPath:        "~/.tginbox/journal.db",
			RetentionDays: 90,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Addr:     "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
	}
}
