// Package session manages in-memory HTTP sessions: opaque 256-bit tokens,
// sliding expiration, fixation-safe rotation, and a cancellable background
// reaper for expired records. State lives only for the process lifetime.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL is the session idle timeout.
	DefaultTTL = 30 * time.Minute
	// DefaultGCInterval is how often the reaper scans for expired sessions.
	DefaultGCInterval = time.Minute
)

// Store keeps session records in a mutex-guarded map. All check-then-update
// sequences run under the lock, so concurrent requests never lose updates.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl        time.Duration
	gcInterval time.Duration
	logger     *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets the session idle timeout.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithGCInterval sets the reaper scan interval.
func WithGCInterval(interval time.Duration) StoreOption {
	return func(s *Store) {
		if interval > 0 {
			s.gcInterval = interval
		}
	}
}

// WithLogger sets the logger for reaper activity.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty session store. Call Start (or Run with an
// errgroup) to begin background garbage collection.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions:   make(map[string]*Session),
		ttl:        DefaultTTL,
		gcInterval: DefaultGCInterval,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TTL returns the configured session idle timeout.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Resolve returns the session for the given token, refreshing its LastSeen.
// When the token is empty, unknown, or expired, a fresh anonymous session is
// created and isNew is true. Expired records are removed on the spot.
func (s *Store) Resolve(token string) (string, Session, bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if token != "" {
		if existing, ok := s.sessions[token]; ok {
			if !s.expired(existing, now) {
				existing.LastSeen = now
				return token, existing.clone(), false, nil
			}
			delete(s.sessions, token)
		}
	}

	newTok, sess, err := s.createLocked(now)
	if err != nil {
		return "", Session{}, false, err
	}
	return newTok, sess, true, nil
}

// Rotate replaces the token of an existing session to mitigate fixation.
// UserID, Values, and CreatedAt carry over when the old record existed;
// LastSeen is always reset to now. The old token becomes unresolvable
// immediately.
func (s *Store) Rotate(oldToken string) (string, Session, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.sessions[oldToken]
	delete(s.sessions, oldToken)

	newTok, err := newToken()
	if err != nil {
		return "", Session{}, err
	}

	sess := &Session{
		CreatedAt: now,
		LastSeen:  now,
	}
	if old != nil {
		sess.UserID = old.UserID
		sess.Values = old.Values
		sess.CreatedAt = old.CreatedAt
	}

	s.sessions[newTok] = sess
	return newTok, sess.clone(), nil
}

// Authenticate binds the session to a user. Returns ErrNotFound when the
// token does not resolve to a live session.
func (s *Store) Authenticate(token string, userID uuid.UUID) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || s.expired(sess, now) {
		return ErrNotFound
	}

	sess.UserID = userID
	sess.LastSeen = now
	return nil
}

// SetValue stores a free-form attribute on the session.
func (s *Store) SetValue(token, key string, value any) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || s.expired(sess, now) {
		return ErrNotFound
	}

	if sess.Values == nil {
		sess.Values = make(map[string]any)
	}
	sess.Values[key] = value
	sess.LastSeen = now
	return nil
}

// Destroy removes the session for the given token, if any.
func (s *Store) Destroy(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Len returns the number of live records, expired ones included until the
// next reaper pass.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// DeleteExpired evicts every expired record and returns the eviction count.
// Expiry is re-checked under the lock, never against a stale snapshot.
func (s *Store) DeleteExpired() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Start runs the background reaper until ctx is cancelled. It blocks; use
// Run for the errgroup pattern or call it in a goroutine paired with Stop.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	defer close(done)

	s.logger.InfoContext(ctx, "session reaper started",
		slog.Duration("gc_interval", s.gcInterval),
		slog.Duration("ttl", s.ttl))

	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session reaper stopping")
			return ctx.Err()
		case <-ticker.C:
			if removed := s.DeleteExpired(); removed > 0 {
				s.logger.Info("expired sessions evicted", slog.Int("count", removed))
			}
		}
	}
}

// Stop cancels the reaper and waits for it to terminate.
func (s *Store) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}

	cancel()
	<-done
	return nil
}

// Run provides errgroup compatibility: the returned function starts the
// reaper, and performs a clean shutdown when the context is cancelled
// without letting the cancellation escape as an error.
func (s *Store) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = s.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// createLocked synthesizes a fresh anonymous session. Caller must hold s.mu.
func (s *Store) createLocked(now time.Time) (string, Session, error) {
	token, err := newToken()
	if err != nil {
		return "", Session{}, err
	}

	sess := &Session{
		CreatedAt: now,
		LastSeen:  now,
	}
	s.sessions[token] = sess
	return token, sess.clone(), nil
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastSeen) > s.ttl
}
