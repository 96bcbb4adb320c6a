// Package csrf implements double-submit cookie CSRF protection: a random
// token is issued as a client-readable cookie and must be echoed back in a
// request header on mutating requests. No server-side token state is kept.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
)

const (
	// CookieName is the cookie carrying the double-submit token.
	CookieName = "csrftoken"
	// HeaderName is the request header the client must echo the token in.
	HeaderName = "X-CSRF-Token"
)

var (
	// ErrTokenMissing is returned when the cookie or header is absent.
	ErrTokenMissing = errors.New("csrf token missing")
	// ErrTokenMismatch is returned when cookie and header values differ.
	ErrTokenMismatch = errors.New("csrf token mismatch")
	// ErrTokenGeneration is returned when secure token generation fails.
	ErrTokenGeneration = errors.New("failed to generate csrf token")
)

var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// IsMutating reports whether the method requires CSRF and replay checks.
func IsMutating(method string) bool {
	return mutatingMethods[method]
}

// Guard issues and verifies double-submit tokens.
type Guard struct {
	secure bool
}

// NewGuard creates a CSRF guard. secure controls the cookie Secure flag and
// should be tied to the production mode toggle.
func NewGuard(secure bool) *Guard {
	return &Guard{secure: secure}
}

// GenerateToken creates a 32-byte (256-bit) random token, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return hex.EncodeToString(b), nil
}

// EnsureCookie seeds the token cookie when the request carries none and
// returns the active token. It runs on every response regardless of method,
// so a client always holds a token before it is expected to submit one.
// The cookie is deliberately readable by client script.
func (g *Guard) EnsureCookie(w http.ResponseWriter, r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Verify enforces the double-submit pattern on mutating requests.
// Non-mutating methods always pass. The returned error is for server-side
// logging only; clients see a bare 403 either way to avoid oracle leakage.
func (g *Guard) Verify(r *http.Request) error {
	if !IsMutating(r.Method) {
		return nil
	}

	cookie, err := r.Cookie(CookieName)
	header := r.Header.Get(HeaderName)

	if err != nil || cookie.Value == "" || header == "" {
		return ErrTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return ErrTokenMismatch
	}

	return nil
}
