package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty Attr pattern for nil safety, so callers
// never need explicit nil checks before logging.

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component identifies the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event names the lifecycle event being logged, e.g. "request" or "reject".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Reason records why a guard rejected a request. Reasons are server-side
// only and must never be echoed to clients.
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// RequestID attaches the request correlation id.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// SessionID attaches a truncated session identifier. Only the first eight
// characters are logged so full tokens never land in log storage.
func SessionID(token string) slog.Attr {
	if token == "" {
		return slog.Attr{}
	}
	if len(token) > 8 {
		token = token[:8]
	}
	return slog.String("sid", token)
}

// ClientIP attaches the resolved client address.
func ClientIP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("ip", ip)
}

// Method attaches the HTTP request method.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path attaches the HTTP request path.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// StatusCode attaches the HTTP response status.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Duration creates an attribute for an operation duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
