package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mksbai/backend-chat-buy-crypto/core/logger"
	"github.com/mksbai/backend-chat-buy-crypto/core/session"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "sid"

type sessionContextKey struct{}

// SessionInfo is the per-request view of the resolved session.
type SessionInfo struct {
	// Token is the session identifier, also the cookie value.
	Token string
	// Sess is a snapshot of the record at resolution time.
	Sess session.Session
	// IsNew reports whether the session was created for this request.
	IsNew bool
}

// SessionConfig configures the session middleware.
type SessionConfig struct {
	// Store resolves and creates sessions (required)
	Store *session.Store
	// Secure controls the cookie Secure flag, tied to production mode
	Secure bool
	// Logger for session failures (default: discard)
	Logger *slog.Logger
}

// Session resolves the session from the sid cookie, creating one when the
// cookie is absent, unknown, or expired, attaches it to the request context,
// and sets the sliding session cookie on every response. Token generation
// failure fails closed with a 500.
func Session(cfg SessionConfig) Middleware {
	if cfg.Store == nil {
		panic("session middleware: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	maxAge := int(cfg.Store.TTL().Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cookieToken string
			if c, err := r.Cookie(SessionCookieName); err == nil {
				cookieToken = c.Value
			}

			token, sess, isNew, err := cfg.Store.Resolve(cookieToken)
			if err != nil {
				cfg.Logger.ErrorContext(r.Context(), "session resolution failed",
					logger.Component("session"), logger.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			// Sliding expiration: refresh the cookie on every response,
			// not just on creation.
			SetSessionCookie(w, token, maxAge, cfg.Secure)

			info := SessionInfo{Token: token, Sess: sess, IsNew: isNew}
			ctx := context.WithValue(r.Context(), sessionContextKey{}, info)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie writes the sid cookie. Handlers that rotate or destroy
// the session reuse it to overwrite the cookie set at resolution time.
func SetSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReplaceSessionCookie drops any sid cookie already queued on the response
// before writing a new one, so rotation and logout emit a single Set-Cookie
// for the session instead of two conflicting ones.
func ReplaceSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	h := w.Header()
	queued := h.Values("Set-Cookie")
	h.Del("Set-Cookie")
	for _, v := range queued {
		if !strings.HasPrefix(v, SessionCookieName+"=") {
			h.Add("Set-Cookie", v)
		}
	}
	SetSessionCookie(w, token, maxAge, secure)
}

// GetSession retrieves the resolved session from the request context.
func GetSession(ctx context.Context) (SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(SessionInfo)
	return info, ok
}
