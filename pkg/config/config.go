package config

import (
	"context"
	"encoding/json"
	"time"
)

// Config is the complete client configuration.
type Config struct {
	API        APIConfig        `koanf:"api"`
	Transport  TransportConfig  `koanf:"transport"`
	Poll       PollConfig       `koanf:"poll"`
	Notify     NotifyConfig     `koanf:"notify"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Auth       AuthConfig       `koanf:"auth"`
	Runtime    RuntimeConfig    `koanf:"runtime"`
}

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL    string          `koanf:"base_url"    validate:"required,base_url" env:"GENVID_API_BASE_URL"`
	Token      SensitiveString `koanf:"token"                                    env:"GENVID_TOKEN"`
	Timeout    time.Duration   `koanf:"timeout"     validate:"min=0"             env:"GENVID_API_TIMEOUT"`
	RetryCount int             `koanf:"retry_count" validate:"min=0,max=10"      env:"GENVID_API_RETRY_COUNT"`
}

// TransportConfig selects and tunes the live job channel.
type TransportConfig struct {
	Kind              string        `koanf:"kind"                validate:"oneof=sse socket poll"       env:"GENVID_TRANSPORT"`
	ReconnectDelay    time.Duration `koanf:"reconnect_delay"     validate:"min=1ms"                     env:"GENVID_TRANSPORT_RECONNECT_DELAY"`
	MaxReconnectDelay time.Duration `koanf:"max_reconnect_delay" validate:"min=1ms"                     env:"GENVID_TRANSPORT_MAX_RECONNECT_DELAY"`
	Backoff           string        `koanf:"backoff"             validate:"oneof=constant exponential" env:"GENVID_TRANSPORT_BACKOFF"`
	PingInterval      time.Duration `koanf:"ping_interval"       validate:"min=1ms"                     env:"GENVID_TRANSPORT_PING_INTERVAL"`
}

type PollConfig struct {
	Interval time.Duration `koanf:"interval" validate:"min=100ms" env:"GENVID_POLL_INTERVAL"`
}

// NotifyConfig enables fan-out of notifications over Redis when RedisURL is set.
type NotifyConfig struct {
	RedisURL      SensitiveString `koanf:"redis_url"      env:"GENVID_NOTIFY_REDIS_URL"`
	ChannelPrefix string          `koanf:"channel_prefix" env:"GENVID_NOTIFY_CHANNEL_PREFIX"`
	MaxEntries    int64           `koanf:"max_entries"    env:"GENVID_NOTIFY_MAX_ENTRIES"    validate:"min=1"`
	TTL           time.Duration   `koanf:"ttl"            env:"GENVID_NOTIFY_TTL"`
}

type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"GENVID_MONITORING_ENABLED"`
	Addr    string `koanf:"addr"    env:"GENVID_MONITORING_ADDR"`
	Path    string `koanf:"path"    env:"GENVID_MONITORING_PATH"    validate:"startswith=/"`
}

// AuthConfig locates the persisted token. An empty TokenDir means the user
// config directory.
type AuthConfig struct {
	TokenDir string `koanf:"token_dir" env:"GENVID_TOKEN_DIR"`
}

type RuntimeConfig struct {
	LogLevel       string        `koanf:"log_level"       validate:"oneof=debug info warn error disabled" env:"GENVID_LOG_LEVEL"`
	LogJSON        bool          `koanf:"log_json"                                                      env:"GENVID_LOG_JSON"`
	ChangeDebounce time.Duration `koanf:"change_debounce" validate:"min=0"                              env:"GENVID_CHANGE_DEBOUNCE"`
}

// Service loads and validates configuration.
type Service interface {
	// Load layers defaults, file sources, environment, then CLI sources.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	// GetSource reports which source provided a key.
	GetSource(key string) SourceType
}

// Source is one layer of configuration values.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:8000",
			Timeout:    30 * time.Second,
			RetryCount: 3,
		},
		Transport: TransportConfig{
			Kind:              "sse",
			ReconnectDelay:    1500 * time.Millisecond,
			MaxReconnectDelay: 30 * time.Second,
			Backoff:           "constant",
			PingInterval:      25 * time.Second,
		},
		Poll: PollConfig{
			Interval: 3 * time.Second,
		},
		Notify: NotifyConfig{
			ChannelPrefix: "genvid:notifications:",
			MaxEntries:    100,
			TTL:           24 * time.Hour,
		},
		Monitoring: MonitoringConfig{
			Enabled: false,
			Addr:    ":9464",
			Path:    "/metrics",
		},
		Runtime: RuntimeConfig{
			LogLevel:       "info",
			ChangeDebounce: 100 * time.Millisecond,
		},
	}
}

// SensitiveString hides its value from logs and JSON output.
type SensitiveString string

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
