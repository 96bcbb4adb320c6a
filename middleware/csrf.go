package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mksbai/backend-chat-buy-crypto/core/csrf"
	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
	"github.com/mksbai/backend-chat-buy-crypto/pkg/metrics"
)

type csrfTokenContextKey struct{}

// CSRFCookie seeds the double-submit cookie on every response that does not
// already carry one, regardless of method, and stores the active token in
// the request context. Seeding failure fails closed.
func CSRFCookie(guard *csrf.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := guard.EnsureCookie(w, r)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), csrfTokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCSRFToken retrieves the active double-submit token from the context.
func GetCSRFToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(csrfTokenContextKey{}).(string)
	return token, ok
}

// CSRFConfig configures the handler-level CSRF requirement.
type CSRFConfig struct {
	// Guard verifies the double-submit pair (required)
	Guard *csrf.Guard
	// Logger for rejection reasons (default: discard)
	Logger *slog.Logger
	// Metrics records rejections (optional)
	Metrics *metrics.Metrics
}

// RequireCSRF wraps individual handlers that demand a valid double-submit
// pair. It is a per-endpoint guard rather than a blanket middleware so
// token-seeding endpoints stay exempt. Rejections are a bare 403; missing
// and mismatch are not distinguished to the client.
func RequireCSRF(cfg CSRFConfig) Middleware {
	if cfg.Guard == nil {
		panic("csrf middleware: guard is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := cfg.Guard.Verify(r)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			reason := "internal"
			switch {
			case errors.Is(err, csrf.ErrTokenMissing):
				reason = "missing"
			case errors.Is(err, csrf.ErrTokenMismatch):
				reason = "mismatch"
			}

			ip, _ := GetClientIP(r.Context())
			sess, _ := GetSession(r.Context())

			cfg.Logger.InfoContext(r.Context(), "csrf reject",
				logger.Component("csrf"),
				logger.Event("reject"),
				logger.Reason(reason),
				logger.ClientIP(ip),
				logger.SessionID(sess.Token),
			)
			if cfg.Metrics != nil {
				cfg.Metrics.RecordRejection("csrf", reason)
			}

			if reason == "internal" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusForbidden)
		})
	}
}
