package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		ServerURL:      "http://localhost:8000",
		ChatPath:       "/ws/chat",
		IngestMode:     IngestDiscrete,
		ReconnectDelay: 3 * time.Second,
		SendRate:       1,
		DownloadDir:    "/tmp/chemtalk",
		LogLevel:       "info",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"incremental mode valid", func(c *Config) { c.IngestMode = IngestIncremental }, nil},
		{"empty server url", func(c *Config) { c.ServerURL = "" }, ErrInvalidServerURL},
		{"bad scheme", func(c *Config) { c.ServerURL = "ftp://host" }, ErrInvalidServerURL},
		{"zero reconnect delay", func(c *Config) { c.ReconnectDelay = 0 }, ErrInvalidReconnectDelay},
		{"huge reconnect delay", func(c *Config) { c.ReconnectDelay = time.Hour }, ErrInvalidReconnectDelay},
		{"unknown mode", func(c *Config) { c.IngestMode = "batch" }, ErrInvalidIngestMode},
		{"empty download dir", func(c *Config) { c.DownloadDir = "  " }, ErrInvalidDownloadDir},
		{"zero send rate", func(c *Config) { c.SendRate = 0 }, ErrInvalidSendRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if !errors.Is(cfg.Validate(), ErrConfigNil) {
		t.Error("nil config should fail with ErrConfigNil")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws/chat"},
		{"https://sim.example.com", "wss://sim.example.com/ws/chat"},
	}
	for _, tt := range tests {
		cfg := validConfig()
		cfg.ServerURL = tt.server
		if got := cfg.WebsocketURL(); got != tt.want {
			t.Errorf("WebsocketURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
