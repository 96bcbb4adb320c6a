package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is a server-side session record. The token that identifies it is
// kept outside the record and doubles as the cookie value.
type Session struct {
	// UserID identifies the authenticated user (uuid.Nil for anonymous sessions).
	UserID uuid.UUID

	// Values holds free-form application data carried across rotation.
	Values map[string]any

	CreatedAt time.Time
	LastSeen  time.Time
}

// IsAuthenticated returns true if the session belongs to a known user.
func (s Session) IsAuthenticated() bool {
	return s.UserID != uuid.Nil
}

// clone returns a copy with its own Values map, so callers can never mutate
// store-owned state outside the store's lock.
func (s Session) clone() Session {
	out := s
	if s.Values != nil {
		out.Values = make(map[string]any, len(s.Values))
		for k, v := range s.Values {
			out.Values[k] = v
		}
	}
	return out
}

// newToken creates a cryptographically secure session token using 32 bytes
// (256 bits) encoded as base64 URL-safe string without padding.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
