// Package schema is the wire contract between the simforge daemon and its
// callers. Front-ends import this package alone; nothing here depends on
// the daemon internals.
package schema

import "time"

// JobState is the lifecycle state of the single simulation job.
type JobState string

const (
	StateIdle       JobState = "idle"
	StateRunning    JobState = "running"
	StateCancelling JobState = "cancelling"
	StateCompleted  JobState = "completed"
	StateCancelled  JobState = "cancelled"
	StateFailed     JobState = "failed"
)

// Terminal reports whether the state can no longer change for this job.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Active reports whether a job in this state occupies the single job slot.
func (s JobState) Active() bool {
	return s == StateRunning || s == StateCancelling
}

// SimulationParams is the caller-supplied payload of a phase-1 run.
// A named preset provides defaults for any zero field.
type SimulationParams struct {
	Preset      string  `json:"preset,omitempty" yaml:"preset,omitempty"`
	Particles   int     `json:"particles" yaml:"particles"`
	Sweeps      int     `json:"sweeps" yaml:"sweeps"`
	Coupling    float64 `json:"coupling" yaml:"coupling"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Seed        int64   `json:"seed" yaml:"seed"`
}

// SimulationResult is the engine output of a completed run.
type SimulationResult struct {
	MeanEnergy     float64 `json:"mean_energy"`
	Magnetization  float64 `json:"magnetization"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	Sweeps         int     `json:"sweeps"`
	Shards         int     `json:"shards"`
	ElapsedMS      int64   `json:"elapsed_ms"`
}

// Snapshot is the immutable status view of the current or last job.
// An idle daemon returns a snapshot with State == StateIdle and no JobID.
type Snapshot struct {
	JobID     string            `json:"job_id,omitempty"`
	State     JobState          `json:"state"`
	Percent   float64           `json:"percent"`
	StartedAt time.Time         `json:"started_at,omitzero"`
	StoppedAt time.Time         `json:"stopped_at,omitzero"`
	Params    *SimulationParams `json:"params,omitempty"`
	Result    *SimulationResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Preset is one entry of the preset catalog.
type Preset struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Params      SimulationParams `json:"params" yaml:"params"`
}
