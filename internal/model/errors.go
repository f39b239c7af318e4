package model

import (
	"errors"
)

var (
	// ErrAlreadyRunning rejects a start while the single job slot is
	// occupied by a running or cancelling job.
	ErrAlreadyRunning = errors.New("a job is already running")

	// ErrInvalidPayload rejects a malformed start payload before any job
	// state is touched.
	ErrInvalidPayload = errors.New("invalid simulation payload")

	// ErrEngineCancelled is returned by an engine that stopped because it
	// observed and acknowledged the cancellation token.
	ErrEngineCancelled = errors.New("simulation cancelled")
)
