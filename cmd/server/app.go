package main

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mksbai/backend-chat-buy-crypto/core/csrf"
	"github.com/mksbai/backend-chat-buy-crypto/core/ratelimit"
	"github.com/mksbai/backend-chat-buy-crypto/core/replay"
	"github.com/mksbai/backend-chat-buy-crypto/core/session"
	"github.com/mksbai/backend-chat-buy-crypto/middleware"
	"github.com/mksbai/backend-chat-buy-crypto/pkg/metrics"
)

// app owns the guard state and wires the security pipeline around the
// HTTP handlers.
type app struct {
	cfg      Config
	log      *slog.Logger
	sessions *session.Store
	csrf     *csrf.Guard
	replay   *replay.Guard
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
}

func newApp(cfg Config, log *slog.Logger) *app {
	a := &app{
		cfg: cfg,
		log: log,
		sessions: session.NewStore(
			session.WithTTL(cfg.SessionTTL),
			session.WithGCInterval(cfg.SessionGCInterval),
			session.WithLogger(log),
		),
		csrf:    csrf.NewGuard(cfg.IsProd()),
		replay:  replay.NewGuard(cfg.FreshnessWindow),
		limiter: ratelimit.NewLimiter(cfg.RateLimitRPS),
		metrics: metrics.New(),
	}
	a.metrics.RegisterSessionGauge(func() float64 {
		return float64(a.sessions.Len())
	})
	return a
}

// handler builds the routed handler wrapped in the full middleware
// pipeline. Guards run outside-in: correlation and logging first, then
// session resolution, replay detection, rate limiting, and CSRF seeding.
// CSRF verification is applied per endpoint, on the mutating routes only.
func (a *app) handler() http.Handler {
	requireCSRF := middleware.RequireCSRF(middleware.CSRFConfig{
		Guard:   a.csrf,
		Logger:  a.log,
		Metrics: a.metrics,
	})

	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/me", a.handleMe).Methods(http.MethodGet)
	r.HandleFunc("/csrf", a.handleCSRFToken).Methods(http.MethodGet)
	r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/chat", middleware.Chain(http.HandlerFunc(a.handleChat), requireCSRF)).Methods(http.MethodPost)
	api.Handle("/login", middleware.Chain(http.HandlerFunc(a.handleLogin), requireCSRF)).Methods(http.MethodPost)
	api.Handle("/logout", middleware.Chain(http.HandlerFunc(a.handleLogout), requireCSRF)).Methods(http.MethodPost)

	return middleware.Chain(r,
		middleware.RequestID(),
		middleware.ClientIP(),
		middleware.Logging(middleware.LoggingConfig{
			Logger: a.log,
			Skip: func(r *http.Request) bool {
				return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
			},
		}),
		middleware.Metrics(a.metrics),
		middleware.CORS(middleware.CORSConfig{
			AllowOrigins:     a.cfg.CORSOriginList(),
			AllowCredentials: true,
		}),
		middleware.Session(middleware.SessionConfig{
			Store:  a.sessions,
			Secure: a.cfg.IsProd(),
			Logger: a.log,
		}),
		middleware.Replay(middleware.ReplayConfig{
			Guard:   a.replay,
			Logger:  a.log,
			Metrics: a.metrics,
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			Limiter: a.limiter,
			Logger:  a.log,
			Metrics: a.metrics,
		}),
		middleware.CSRFCookie(a.csrf),
	)
}
