// Package replay rejects replayed requests using a client-supplied timestamp
// and nonce. Timestamp freshness bounds how long a nonce must be remembered,
// so the store is purged lazily on access and needs no background sweeper.
package replay

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

// DefaultWindow is the maximum allowed clock skew / replay interval.
const DefaultWindow = 5 * time.Minute

var (
	// ErrMissingHeaders is returned when the timestamp or nonce header is absent.
	ErrMissingHeaders = errors.New("missing anti-replay headers")
	// ErrInvalidTimestamp is returned when the timestamp does not parse as an integer.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrStaleTimestamp is returned when the timestamp is outside the freshness window.
	ErrStaleTimestamp = errors.New("stale timestamp")
	// ErrNonceReuse is returned when the nonce was already seen within the window.
	ErrNonceReuse = errors.New("nonce reuse")
)

// Guard tracks seen nonces and validates timestamp freshness.
// Safe for concurrent use; the whole check-then-record sequence runs under
// one lock so two requests can never both claim the same nonce.
type Guard struct {
	mu     sync.Mutex
	nonces map[string]time.Time
	window time.Duration
}

// NewGuard creates a replay guard with the given freshness window.
// Non-positive windows fall back to DefaultWindow.
func NewGuard(window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{
		nonces: make(map[string]time.Time),
		window: window,
	}
}

// Window returns the configured freshness window.
func (g *Guard) Window() time.Duration {
	return g.window
}

// Check validates the timestamp header (Unix seconds) and nonce, recording
// the nonce on success. Rejections leave no trace: a rejected request never
// registers its nonce. Errors are for server-side logging only; clients get
// an undifferentiated 401.
func (g *Guard) Check(tsHeader, nonce string) error {
	if tsHeader == "" || nonce == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}

	now := time.Now()

	// Symmetric bound rejects both replayed-old and clock-skewed-future
	// timestamps. Compared as bounds in Unix seconds rather than as a
	// Duration, which would overflow int64 nanoseconds for extreme values.
	nowSec := now.Unix()
	maxSkew := int64(g.window / time.Second)
	if ts < nowSec-maxSkew || ts > nowSec+maxSkew {
		return ErrStaleTimestamp
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Lazy purge keeps the store bounded to nonces inside the window.
	for key, expiry := range g.nonces {
		if !expiry.After(now) {
			delete(g.nonces, key)
		}
	}

	if _, seen := g.nonces[nonce]; seen {
		return ErrNonceReuse
	}

	g.nonces[nonce] = now.Add(g.window)
	return nil
}

// Len returns the number of tracked nonces, expired ones included until the
// next Check purges them.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nonces)
}
