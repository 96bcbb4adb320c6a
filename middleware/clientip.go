package middleware

import (
	"context"
	"net/http"

	"github.com/mksbai/backend-chat-buy-crypto/pkg/clientip"
)

type clientIPContextKey struct{}

// ClientIP extracts the real client address once per request and stores it
// in the request context for the rate limiter and guard logging.
func ClientIP() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPContextKey{}, clientip.GetIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP retrieves the client address from the request context.
func GetClientIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPContextKey{}).(string)
	return ip, ok
}
