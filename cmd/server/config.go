package main

import (
	"strings"
	"time"
)

// Config holds all runtime settings, populated from environment variables
// (and a .env file when present).
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"chat-backend"`
	AppEnv  string `env:"APP_ENV" envDefault:"dev"`

	Addr     string `env:"SERVER_ADDR" envDefault:":8000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// CORSOrigins is a comma-separated allowlist of browser origins.
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173"`

	// StreamDelay is the pause between streamed response chunks.
	StreamDelay time.Duration `env:"STREAM_DELAY" envDefault:"80ms"`
	// MaxMessageBytes caps the accepted chat message length.
	MaxMessageBytes int `env:"MAX_MESSAGE_BYTES" envDefault:"10240"`

	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SessionGCInterval time.Duration `env:"SESSION_GC_INTERVAL" envDefault:"1m"`

	// FreshnessWindow bounds how far a request timestamp may drift from
	// server time before the request is treated as a replay.
	FreshnessWindow time.Duration `env:"FRESHNESS_WINDOW" envDefault:"5m"`

	// RateLimitRPS is the per-client sustained request rate; zero disables
	// rate limiting entirely.
	RateLimitRPS float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// IsProd reports whether the app runs in production mode. It gates the
// Secure flag on cookies and switches logging to JSON.
func (c Config) IsProd() bool {
	return c.AppEnv == "prod"
}

// CORSOriginList splits the configured origins, dropping empty entries.
func (c Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
