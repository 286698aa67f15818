// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the Telegram token, database connection, relay client timeouts,
// logging, flood protection, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "launchbot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RelayConfig defines timeouts for the terminal relay HTTP client.
type RelayConfig struct {
	ConnectTimeout time.Duration // TCP connect budget per request
	RequestTimeout time.Duration // total budget per request
	PulseHold      time.Duration // pause between the on and off commands
}

// OpsConfig defines the auxiliary HTTP server exposing health and metrics.
type OpsConfig struct {
	Enabled bool
	Addr    string // listen address, e.g. ":8080"
}

// Config holds all configuration values for the application.
type Config struct {
	// Telegram
	Token          string // bot API token (required)
	UpdateTimeout  int    // long-poll timeout in seconds
	DebugTransport bool   // verbose Bot API logging

	// Database
	DBDriver string // "mysql" or "sqlite"
	DBDSN    string // driver-specific DSN

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Relay
	Relay RelayConfig

	// Sessions
	SessionTTL time.Duration // idle selection sessions are evicted after this

	// Flood protection (transport-level, per chat)
	FloodRPS   float64 // tokens per second (>= 0)
	FloodBurst int     // bucket size (>= 1)

	// Diagnostics
	ProbeURL string // target for the /test connectivity command

	// Ops server
	Ops OpsConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Telegram
		Token:          getenv("TELEGRAM_TOKEN", ""),
		UpdateTimeout:  getint("TELEGRAM_UPDATE_TIMEOUT", 30),
		DebugTransport: getbool("TELEGRAM_DEBUG", false),

		// Database
		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:    getenv("DB_DSN", "launchbot.db"),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Relay
		Relay: RelayConfig{
			ConnectTimeout: getdur("RELAY_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout: getdur("RELAY_TIMEOUT", 30*time.Second),
			PulseHold:      getdur("PULSE_HOLD", time.Second),
		},

		// Sessions
		SessionTTL: getdur("SESSION_TTL", 30*time.Minute),

		// Flood protection
		FloodRPS:   getfloat("FLOOD_RPS", 2.0),
		FloodBurst: getint("FLOOD_BURST", 5),

		// Diagnostics
		ProbeURL: getenv("PROBE_URL", "https://screamingly-usable-gunnel.cloudpub.ru/"),

		// Ops server
		Ops: OpsConfig{
			Enabled: getbool("OPS_ENABLED", true),
			Addr:    getenv("OPS_ADDR", ":8080"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "launchbot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if cfg.DBDriver == "sqlite3" {
		cfg.DBDriver = "sqlite"
	}

	// --- validation ---
	if strings.TrimSpace(cfg.Token) == "" {
		return cfg, errors.New("TELEGRAM_TOKEN must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.DBDriver {
	case "mysql", "sqlite":
	default:
		return cfg, errors.New("DB_DRIVER must be one of: mysql, sqlite")
	}
	if strings.TrimSpace(cfg.DBDSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	if cfg.UpdateTimeout <= 0 {
		return cfg, errors.New("TELEGRAM_UPDATE_TIMEOUT must be > 0")
	}
	if cfg.Relay.ConnectTimeout <= 0 || cfg.Relay.RequestTimeout <= 0 {
		return cfg, errors.New("relay timeouts must be positive durations")
	}
	if cfg.Relay.PulseHold < 0 {
		return cfg, errors.New("PULSE_HOLD must be >= 0")
	}
	if cfg.SessionTTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.FloodRPS < 0 {
		return cfg, errors.New("FLOOD_RPS must be >= 0")
	}
	if cfg.FloodBurst < 1 {
		return cfg, errors.New("FLOOD_BURST must be >= 1")
	}
	if cfg.Ops.Enabled && strings.TrimSpace(cfg.Ops.Addr) == "" {
		return cfg, errors.New("OPS_ADDR must not be empty when OPS_ENABLED")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare integers are treated as seconds for convenience.
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
