package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:         ".popupstudio",
		Port:            8080,
		PreviewDebounce: 250 * time.Millisecond,
		RequestTimeout:  15 * time.Second,
		TokenTTL:        12 * time.Hour,
		AuditRetention:  90 * 24 * time.Hour,
		LogLevel:        "info",
		LogFormat:       LogFormatConsole,
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
		Export: ExportConfig{
			OutputDir: "widgets",
			Include:   []string{"**"},
		},
	}
}

// DatabasePath returns the SQLite file used by the local widget store.
func (c *Config) DatabasePath() string {
	return c.DataDir + "/popupstudio.db"
}
