package model

import (
	"time"

	"github.com/simforge/simforge/pkg/schema"
)

// Job is the mutable record of one simulation run. It is owned exclusively
// by the controller; everything else sees it only through Snapshot copies.
type Job struct {
	ID        string
	Params    schema.SimulationParams
	State     schema.JobState
	Percent   float64
	StartedAt time.Time
	StoppedAt time.Time
	Result    *schema.SimulationResult
	Err       string
}

// Snapshot returns an immutable copy safe to hand across goroutines.
func (j *Job) Snapshot() schema.Snapshot {
	snap := schema.Snapshot{
		JobID:     j.ID,
		State:     j.State,
		Percent:   j.Percent,
		StartedAt: j.StartedAt,
		StoppedAt: j.StoppedAt,
		Error:     j.Err,
	}
	params := j.Params
	snap.Params = &params
	if j.Result != nil {
		result := *j.Result
		snap.Result = &result
	}
	return snap
}
