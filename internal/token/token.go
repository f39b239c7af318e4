// Package token implements the cooperative per-job cancellation flag. The
// controller creates one token per job and is the only writer of the
// request side; the engine polls it and acknowledges when it stops.
package token

import "sync/atomic"

// State is the tri-state of a token. It only ever moves forward.
type State int32

const (
	NotRequested State = iota
	Requested
	Acknowledged
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "not-requested"
	case Requested:
		return "requested"
	case Acknowledged:
		return "acknowledged"
	default:
		return "unknown"
	}
}

// Token belongs to exactly one job. A token is never reused; the next job
// gets a fresh one and the old token is orphaned with its job.
type Token struct {
	state atomic.Int32
}

func New() *Token {
	return &Token{}
}

// Request asks the running computation to stop. Idempotent; calling it on
// an already requested or acknowledged token changes nothing.
func (t *Token) Request() {
	t.state.CompareAndSwap(int32(NotRequested), int32(Requested))
}

// Requested reports whether cancellation has been asked for. Non-blocking;
// the engine polls this at its own cadence.
func (t *Token) Requested() bool {
	return State(t.state.Load()) >= Requested
}

// Acknowledge records that the engine stopped work because of the flag.
// Returns false when cancellation was never requested, or when the token
// was already acknowledged.
func (t *Token) Acknowledge() bool {
	return t.state.CompareAndSwap(int32(Requested), int32(Acknowledged))
}

func (t *Token) State() State {
	return State(t.state.Load())
}
