package config

import (
	"os"
	"path"
)

func NewDefaultMainConfig() MainConfig {
	return MainConfig{
		General: GeneralConfig{
			DataDirectory:        path.Join(os.Getenv("HOME"), "datasets"),
			DefinitionsDirectory: "",
			LogDirectory:         "-",
			LogColors:            false,
			JsonLogs:             false,
			LogLevel:             "info",
			UserAgent:            "dataset-repo",
		},
		Downloads: DownloadsConfig{
			NumWorkers:          4,
			MaxAttempts:         5,
			TimeoutSeconds:      300,
			FailureCacheMinutes: 15,
		},
		Verification: VerificationConfig{
			NumWorkers: 4,
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: "127.0.0.1",
			Port:        9700,
		},
		Sentry: SentryConfig{
			Enabled: false,
		},
	}
}
