package config

import "time"

// DefaultPath is the configuration file read from the working directory.
const DefaultPath = ".popupstudio.yml"

// LogFormat selects the log encoder.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// Config is the top-level popup-studio configuration, corresponding to .popupstudio.yml.
type Config struct {
	// APIURL is the widget store the editor saves to. Empty means the local
	// store under DataDir.
	APIURL          string        `yaml:"api_url" koanf:"api_url" validate:"omitempty,http_url"`
	DataDir         string        `yaml:"data_dir" koanf:"data_dir" validate:"required"`
	Port            int           `yaml:"port" koanf:"port" validate:"min=1,max=65535"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	PreviewDebounce time.Duration `yaml:"preview_debounce" koanf:"preview_debounce" validate:"min=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" koanf:"request_timeout" validate:"gt=0"`
	JWTSecret       string        `yaml:"jwt_secret" koanf:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl" koanf:"token_ttl" validate:"gt=0"`
	// AuditRetention is how long the server keeps audit entries; 0 keeps them forever.
	AuditRetention time.Duration   `yaml:"audit_retention" koanf:"audit_retention" validate:"min=0"`
	LogLevel       string          `yaml:"log_level" koanf:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat      LogFormat       `yaml:"log_format" koanf:"log_format" validate:"oneof=json console"`
	Breaker        BreakerConfig   `yaml:"breaker" koanf:"breaker"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" koanf:"rate_limit"`
	Export         ExportConfig    `yaml:"export" koanf:"export"`
}

// BreakerConfig tunes the circuit breaker in front of the remote widget store.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" koanf:"max_requests" validate:"min=1"`
	Interval         time.Duration `yaml:"interval" koanf:"interval" validate:"min=0"`
	Timeout          time.Duration `yaml:"timeout" koanf:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `yaml:"failure_threshold" koanf:"failure_threshold" validate:"min=1"`
}

// RateLimitConfig limits widget writes per client address.
type RateLimitConfig struct {
	Requests int           `yaml:"requests" koanf:"requests" validate:"min=0"`
	Window   time.Duration `yaml:"window" koanf:"window" validate:"gt=0"`
}

// ExportConfig holds defaults for the export command.
type ExportConfig struct {
	OutputDir string   `yaml:"output_dir" koanf:"output_dir"`
	Include   []string `yaml:"include" koanf:"include"`
	Exclude   []string `yaml:"exclude" koanf:"exclude"`
}
