package middleware

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
	"github.com/mksbai/backend-chat-buy-crypto/core/ratelimit"
	"github.com/mksbai/backend-chat-buy-crypto/pkg/metrics"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limiter performs admission control (required)
	Limiter *ratelimit.Limiter
	// KeyExtractor derives the bucket key (default: client IP from context)
	KeyExtractor func(r *http.Request) string
	// Logger for rejections (default: discard)
	Logger *slog.Logger
	// Metrics records rejections (optional)
	Metrics *metrics.Metrics
}

// RateLimit applies per-client token bucket admission control, responding
// 429 with an empty body when the client's bucket is drained.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		panic("ratelimit middleware: limiter is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = func(r *http.Request) string {
			if ip, ok := GetClientIP(r.Context()); ok {
				return ip
			}
			return r.RemoteAddr
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyExtractor(r)
			if cfg.Limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			sess, _ := GetSession(r.Context())
			cfg.Logger.InfoContext(r.Context(), "rate limit reject",
				logger.Component("ratelimit"),
				logger.Event("reject"),
				logger.ClientIP(key),
				logger.SessionID(sess.Token),
			)
			if cfg.Metrics != nil {
				cfg.Metrics.RecordRejection("ratelimit", "rate_limited")
			}

			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
}
