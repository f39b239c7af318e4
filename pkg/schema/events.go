package schema

import "time"

// StartedEvent is published exactly once per job, before any ProgressEvent
// carrying the same job id.
type StartedEvent struct {
	JobID     string           `json:"job_id"`
	Params    SimulationParams `json:"params"`
	Timestamp time.Time        `json:"timestamp"`
}

// ProgressEvent is an ephemeral partial-completion notification. Percent is
// non-decreasing within one job as observed by any single subscriber.
type ProgressEvent struct {
	JobID     string    `json:"job_id"`
	Phase     string    `json:"phase"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
