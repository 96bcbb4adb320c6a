// Package middleware composes the request pipeline as an explicit ordered
// chain of net/http middlewares: request id, logging, client IP, CORS,
// session resolution, anti-replay, rate limiting, and CSRF protection.
// Any guard rejection short-circuits the chain; headers already decorated
// (request id, cookies) still reach the client.
package middleware

import "net/http"

// Middleware wraps handlers to add cross-cutting functionality.
type Middleware func(next http.Handler) http.Handler

// Chain applies middlewares so the first listed runs outermost, i.e. first
// on the way in.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
