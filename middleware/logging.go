package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
)

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	// Logger is the slog logger to use (default: discard)
	Logger *slog.Logger
	// Skip bypasses logging for specific requests, e.g. health checks
	Skip func(r *http.Request) bool
}

// Logging logs one record per request with method, path, status, size,
// duration, client address, and the correlation id.
func Logging(cfg LoggingConfig) Middleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			requestID, _ := GetRequestID(r.Context())
			ip, _ := GetClientIP(r.Context())

			level := slog.LevelInfo
			switch {
			case wrapped.status >= 500:
				level = slog.LevelError
			case wrapped.status >= 400:
				level = slog.LevelWarn
			}

			cfg.Logger.LogAttrs(r.Context(), level, "request completed",
				logger.Component("http"),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.StatusCode(wrapped.status),
				slog.Int64("bytes_out", wrapped.size),
				logger.Duration(time.Since(start)),
				logger.ClientIP(ip),
				logger.RequestID(requestID),
			)
		})
	}
}

// statusWriter captures the response status and size. Flush is forwarded so
// streaming handlers keep working through the wrapper.
type statusWriter struct {
	http.ResponseWriter
	status      int
	size        int64
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
