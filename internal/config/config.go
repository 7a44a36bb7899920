// Package config manages ipk24chat client configuration using koanf/v2.
//
// Supports an optional YAML file, environment variables, and CLI flags
// (flags are layered on top by cmd/ipk24chat; see Section 4.11).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete client configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Reliability ReliabilityConfig `koanf:"reliability"`
	Log         LogConfig         `koanf:"log"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// ServerConfig identifies the chat server to dial.
type ServerConfig struct {
	// Host is the server's hostname or IP address.
	Host string `koanf:"host"`
	// Port is the server's listen port.
	Port uint16 `koanf:"port"`
	// Transport selects the wire binding: "tcp" or "udp".
	Transport string `koanf:"transport"`
}

// ReliabilityConfig holds the datagram binding's stop-and-wait parameters
// (Section 4.8). Ignored on the reliable (TCP) binding.
type ReliabilityConfig struct {
	// Timeout is the per-send confirmation timeout.
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetransmits bounds the number of retransmissions before a send
	// is treated as a delivery failure.
	MaxRetransmits int `koanf:"max_retransmits"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
}

// MetricsConfig holds the optional Prometheus metrics endpoint
// configuration (Section 4.13).
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g.,
	// ":9100"). Empty disables the metrics server.
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint.
	Path string `koanf:"path"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. The
// reliability defaults (250ms, 3 retransmits) match the values the
// reference client uses for its UDP binding.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      4567,
			Transport: "udp",
		},
		Reliability: ReliabilityConfig{
			Timeout:        250 * time.Millisecond,
			MaxRetransmits: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: "",
			Path: "/metrics",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for ipk24chat configuration.
// Variables are named IPK24CHAT_<section>_<key>, e.g. IPK24CHAT_SERVER_HOST.
const envPrefix = "IPK24CHAT_"

// Load reads configuration from an optional YAML file at path (skipped
// entirely when path is empty), overlays environment variable overrides
// (IPK24CHAT_ prefix), and merges on top of DefaultConfig(). Missing
// fields inherit defaults. The CLI flag layer is applied by the caller
// after Load returns, per Section 4.11 ("CLI flags always win").
//
// Environment variable mapping:
//
//	IPK24CHAT_SERVER_HOST              -> server.host
//	IPK24CHAT_SERVER_PORT              -> server.port
//	IPK24CHAT_SERVER_TRANSPORT         -> server.transport
//	IPK24CHAT_RELIABILITY_TIMEOUT      -> reliability.timeout
//	IPK24CHAT_RELIABILITY_MAX_RETRANSMITS -> reliability.max_retransmits
//	IPK24CHAT_LOG_LEVEL                -> log.level
//	IPK24CHAT_METRICS_ADDR             -> metrics.addr
//	IPK24CHAT_METRICS_PATH             -> metrics.path
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms IPK24CHAT_SERVER_HOST -> server.host. Strips the
// IPK24CHAT_ prefix, lowercases, and replaces the first _ (the section
// separator) with ., so underscores inside a key such as max_retransmits
// are kept.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"server.host":                 defaults.Server.Host,
		"server.port":                 defaults.Server.Port,
		"server.transport":            defaults.Server.Transport,
		"reliability.timeout":         defaults.Reliability.Timeout.String(),
		"reliability.max_retransmits": defaults.Reliability.MaxRetransmits,
		"log.level":                   defaults.Log.Level,
		"metrics.addr":                defaults.Metrics.Addr,
		"metrics.path":                defaults.Metrics.Path,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyHost indicates the server host is empty.
	ErrEmptyHost = errors.New("server.host must not be empty")

	// ErrInvalidPort indicates the server port is zero.
	ErrInvalidPort = errors.New("server.port must be nonzero")

	// ErrInvalidTransport indicates the transport is neither tcp nor udp.
	ErrInvalidTransport = errors.New("server.transport must be tcp or udp")

	// ErrInvalidTimeout indicates the reliability timeout is not positive.
	ErrInvalidTimeout = errors.New("reliability.timeout must be > 0")

	// ErrInvalidMaxRetransmits indicates the retransmit count is negative.
	ErrInvalidMaxRetransmits = errors.New("reliability.max_retransmits must be >= 0")
)

// ValidTransports lists the recognized transport strings.
var ValidTransports = map[string]bool{
	"tcp": true,
	"udp": true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return ErrEmptyHost
	}

	if cfg.Server.Port == 0 {
		return ErrInvalidPort
	}

	if !ValidTransports[strings.ToLower(cfg.Server.Transport)] {
		return fmt.Errorf("transport %q: %w", cfg.Server.Transport, ErrInvalidTransport)
	}

	if cfg.Reliability.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if cfg.Reliability.MaxRetransmits < 0 {
		return ErrInvalidMaxRetransmits
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
