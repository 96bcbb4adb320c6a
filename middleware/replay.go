package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mksbai/backend-chat-buy-crypto/core/csrf"
	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
	"github.com/mksbai/backend-chat-buy-crypto/core/replay"
	"github.com/mksbai/backend-chat-buy-crypto/pkg/metrics"
)

// Required headers on mutating requests.
const (
	HeaderTimestamp = "X-TS"
	HeaderNonce     = "X-Nonce"
)

// ReplayConfig configures the anti-replay middleware.
type ReplayConfig struct {
	// Guard validates timestamps and tracks nonces (required)
	Guard *replay.Guard
	// Logger for rejection reasons (default: discard)
	Logger *slog.Logger
	// Metrics records rejections (optional)
	Metrics *metrics.Metrics
}

// Replay enforces timestamp freshness and nonce uniqueness on mutating
// requests. All rejections are a bare 401; the reason is logged server-side
// only. Unexpected guard errors fail closed with a 500.
func Replay(cfg ReplayConfig) Middleware {
	if cfg.Guard == nil {
		panic("replay middleware: guard is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !csrf.IsMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			err := cfg.Guard.Check(r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderNonce))
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			reason := replayReason(err)
			ip, _ := GetClientIP(r.Context())
			sess, _ := GetSession(r.Context())

			cfg.Logger.InfoContext(r.Context(), "anti-replay reject",
				logger.Component("replay"),
				logger.Event("reject"),
				logger.Reason(reason),
				logger.ClientIP(ip),
				logger.SessionID(sess.Token),
			)
			if cfg.Metrics != nil {
				cfg.Metrics.RecordRejection("replay", reason)
			}

			status := http.StatusUnauthorized
			if reason == "internal" {
				// Fail closed: an unknown guard failure must never admit.
				status = http.StatusInternalServerError
			}
			w.WriteHeader(status)
		})
	}
}

func replayReason(err error) string {
	switch {
	case errors.Is(err, replay.ErrMissingHeaders):
		return "missing_headers"
	case errors.Is(err, replay.ErrInvalidTimestamp):
		return "invalid_ts"
	case errors.Is(err, replay.ErrStaleTimestamp):
		return "stale_ts"
	case errors.Is(err, replay.ErrNonceReuse):
		return "nonce_reuse"
	default:
		return "internal"
	}
}
