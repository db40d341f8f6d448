// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for stockchat.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Remote    RemoteConfig    `yaml:"remote"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RemoteConfig locates the assistant service.
type RemoteConfig struct {
	// BaseURL is the service address. Default:
	// ${STOCKCHAT_API_BASE_URL:-http://localhost:8000}
	BaseURL string `yaml:"base_url"`

	// Timeout bounds dial, TLS handshake and response headers as a duration
	// string. Default: "60s". "0" disables the client-side bound.
	Timeout string `yaml:"timeout"`
}

// ParsedTimeout parses Timeout as a time.Duration.
func (r RemoteConfig) ParsedTimeout() (time.Duration, error) {
	return time.ParseDuration(r.Timeout)
}

// StoreConfig configures the persistent store.
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to {DataDir}/stockchat.db.
	Path string `yaml:"path"`

	// WAL enables WAL journal mode. Defaults to true.
	WAL *bool `yaml:"wal"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`

	// Ephemeral keeps the conversation in memory only.
	Ephemeral bool `yaml:"ephemeral"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: "warn".
	Level string `yaml:"level"`
}

// SlogLevel maps Level to a slog.Level. Unknown values map to warn.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// TelemetryConfig configures metrics and tracing. Everything is off when
// left empty.
type TelemetryConfig struct {
	// MetricsAddr, when set, serves Prometheus metrics on http://{addr}/metrics.
	MetricsAddr string `yaml:"metrics_addr"`

	// OTLPEndpoint, when set, exports traces over OTLP/HTTP (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool `yaml:"insecure"`

	// ServiceName is the OpenTelemetry service.name. Default: "stockchat".
	ServiceName string `yaml:"service_name"`
}
