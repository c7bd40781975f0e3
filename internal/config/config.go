// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (CHEMTALK_* for secrets-free runtime override)
//  2. Config file (~/.chemtalk/config.yaml, or ./config.yaml)
//  3. Defaults
//
// Validation is fail-fast with sentinel errors checked via errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidServerURL indicates the backend URL is missing or unparsable.
	ErrInvalidServerURL = errors.New("invalid server URL")

	// ErrInvalidReconnectDelay indicates the reconnect delay is out of range.
	ErrInvalidReconnectDelay = errors.New("invalid reconnect delay")

	// ErrInvalidIngestMode indicates an unknown ingestion mode.
	ErrInvalidIngestMode = errors.New("invalid ingest mode")

	// ErrInvalidDownloadDir indicates the download directory is empty.
	ErrInvalidDownloadDir = errors.New("invalid download directory")

	// ErrInvalidSendRate indicates the outbound send rate is out of range.
	ErrInvalidSendRate = errors.New("invalid send rate")
)

// Ingestion mode identifiers used in Config.IngestMode.
const (
	IngestDiscrete    = "discrete"
	IngestIncremental = "incremental"
)

const (
	// DefaultReconnectDelay mirrors the backend console's fixed 3s retry.
	DefaultReconnectDelay = 3 * time.Second

	// MaxReconnectDelay bounds configuration mistakes, not the retry count —
	// retries themselves repeat indefinitely.
	MaxReconnectDelay = 5 * time.Minute
)

// Config stores chemtalk configuration.
type Config struct {
	// Backend endpoints
	ServerURL string `mapstructure:"server_url"` // http(s) base, e.g. "http://localhost:8000"
	ChatPath  string `mapstructure:"chat_path"`  // websocket path on the backend

	// Stream reconciliation
	IngestMode string `mapstructure:"ingest_mode"` // "discrete" or "incremental"

	// Connection supervision
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	SendRate       float64       `mapstructure:"send_rate"` // outbound messages per second

	// Artifact downloads
	DownloadDir       string   `mapstructure:"download_dir"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`

	// Logging
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration with priority env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".chemtalk")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)

	v.SetEnvPrefix("CHEMTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("server_url", "http://localhost:8000")
	v.SetDefault("chat_path", "/ws/chat")
	v.SetDefault("ingest_mode", IngestDiscrete)
	v.SetDefault("reconnect_delay", DefaultReconnectDelay)
	v.SetDefault("send_rate", 1.0)
	v.SetDefault("download_dir", filepath.Join(configDir, "downloads"))
	// Matches the backend's /download allow-list.
	v.SetDefault("allowed_extensions", []string{
		".bkp", ".apw", ".json", ".xlsx", ".xls", ".txt", ".log", ".out",
	})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate performs fail-fast validation of all fields.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q (want http or https)", ErrInvalidServerURL, u.Scheme)
	}

	if c.ReconnectDelay <= 0 || c.ReconnectDelay > MaxReconnectDelay {
		return fmt.Errorf("%w: %s (want 0 < delay <= %s)", ErrInvalidReconnectDelay, c.ReconnectDelay, MaxReconnectDelay)
	}

	if c.IngestMode != IngestDiscrete && c.IngestMode != IngestIncremental {
		return fmt.Errorf("%w: %q", ErrInvalidIngestMode, c.IngestMode)
	}

	if strings.TrimSpace(c.DownloadDir) == "" {
		return ErrInvalidDownloadDir
	}

	if c.SendRate <= 0 || c.SendRate > 100 {
		return fmt.Errorf("%w: %g (want 0 < rate <= 100)", ErrInvalidSendRate, c.SendRate)
	}

	return nil
}

// WebsocketURL returns the ws(s) URL of the backend chat endpoint.
func (c *Config) WebsocketURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.ChatPath
	return u.String()
}

// LevelFromString maps a config log level onto slog.Level. Unknown values
// fall back to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
