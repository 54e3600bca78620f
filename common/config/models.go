package config

type MainConfig struct {
	General      GeneralConfig      `yaml:"repo"`
	Downloads    DownloadsConfig    `yaml:"downloads"`
	Verification VerificationConfig `yaml:"verification"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Sentry       SentryConfig       `yaml:"sentry"`
}

type GeneralConfig struct {
	DataDirectory        string `yaml:"dataDirectory"`
	DefinitionsDirectory string `yaml:"definitionsDirectory"`
	LogDirectory         string `yaml:"logDirectory"`
	LogColors            bool   `yaml:"logColors"`
	JsonLogs             bool   `yaml:"jsonLogs"`
	LogLevel             string `yaml:"logLevel"`
	UserAgent            string `yaml:"userAgent"`
}

type DownloadsConfig struct {
	NumWorkers          int `yaml:"numWorkers"`
	MaxAttempts         int `yaml:"maxAttempts"`
	TimeoutSeconds      int `yaml:"timeoutSeconds"`
	FailureCacheMinutes int `yaml:"failureCacheMinutes"`
}

type VerificationConfig struct {
	NumWorkers int `yaml:"numWorkers"`
}

type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BindAddress string `yaml:"bindAddress"`
	Port        int    `yaml:"port"`
}

type SentryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dsn         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`
}
