// Package config loads and validates scanner configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends accepted by storage.backend.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scan      ScanConfig      `mapstructure:"scan"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScanConfig governs batch sizing and the CLI poll loop.
type ScanConfig struct {
	DefaultBatchSize int    `mapstructure:"default_batch_size"`
	MaxBatchSize     int    `mapstructure:"max_batch_size"`
	DelayMs          int    `mapstructure:"delay_ms"`
	ResultsPrefix    string `mapstructure:"results_prefix"`
}

// HTTPConfig configures the outbound fetcher.
type HTTPConfig struct {
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
	UserAgent             string `mapstructure:"user_agent"`
	InsecureSkipVerify    bool   `mapstructure:"insecure_skip_verify"`
	MaxBodyBytes          int    `mapstructure:"max_body_bytes"`
	// PerHostRPS throttles fetches to the same host. Zero disables throttling.
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// StorageConfig selects where result files are written.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	BaseDir       string `mapstructure:"base_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
}

// DBConfig controls access to Postgres. An empty DSN keeps jobs in memory.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for job notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig selects where trace spans are exported.
type TelemetryConfig struct {
	// Exporter is "none" or "stdout".
	Exporter    string `mapstructure:"exporter"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STRINGFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("scan.default_batch_size", 10)
	v.SetDefault("scan.max_batch_size", 100)
	v.SetDefault("scan.delay_ms", 500)
	v.SetDefault("scan.results_prefix", "results")
	v.SetDefault("http.connect_timeout_seconds", 10)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.insecure_skip_verify", true)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("http.per_host_rps", 0.0)
	v.SetDefault("http.per_host_burst", 1)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "scan_jobs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.service_name", "stringfinder")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scan.MaxBatchSize <= 0 {
		return fmt.Errorf("scan.max_batch_size must be > 0")
	}
	if c.Scan.DefaultBatchSize <= 0 || c.Scan.DefaultBatchSize > c.Scan.MaxBatchSize {
		return fmt.Errorf("scan.default_batch_size must be between 1 and scan.max_batch_size")
	}
	if c.Scan.DelayMs < 0 {
		return fmt.Errorf("scan.delay_ms must be >= 0")
	}
	if c.HTTP.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http.connect_timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PerHostRPS < 0 {
		return fmt.Errorf("http.per_host_rps must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory; got %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("telemetry.exporter must be one of none, stdout; got %q", c.Telemetry.Exporter)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// ConnectTimeout returns the dial timeout for outbound fetches.
func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.HTTP.ConnectTimeoutSeconds) * time.Second
}

// FetchTimeout returns the overall per-request timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// minRequestTimeout is the floor for an API request deadline.
const minRequestTimeout = 90 * time.Second

// RequestTimeout returns the deadline for one API request. An Advance call
// runs a first round and a retry round, each bounded by FetchTimeout, and a
// rate-limited batch of same-host URLs additionally waits for its tokens in
// both rounds.
func (c Config) RequestTimeout() time.Duration {
	d := 2*c.FetchTimeout() + 30*time.Second
	if c.HTTP.PerHostRPS > 0 {
		d += time.Duration(2 * float64(c.Scan.MaxBatchSize) / c.HTTP.PerHostRPS * float64(time.Second))
	}
	return max(d, minRequestTimeout)
}

// Delay returns the pause between batches in the CLI poll loop.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scan.DelayMs) * time.Millisecond
}
