package session

import "errors"

var (
	// ErrNotFound is returned when a session cannot be found or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrTokenGeneration is returned when secure token generation fails.
	ErrTokenGeneration = errors.New("failed to generate session token")
	// ErrAlreadyRunning is returned when the reaper is started twice.
	ErrAlreadyRunning = errors.New("session reaper already running")
	// ErrNotRunning is returned when stopping a reaper that was never started.
	ErrNotRunning = errors.New("session reaper not running")
)
