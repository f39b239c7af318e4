// Package control owns the single active job: its state machine, its
// cancellation token and the ordering of started/progress events.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simforge/simforge/internal/broadcast"
	"github.com/simforge/simforge/internal/model"
	"github.com/simforge/simforge/internal/token"
	"github.com/simforge/simforge/pkg/schema"
)

// cancelWarnAfter is how long a job may sit in cancelling before status
// reads start logging about it. Cancellation stays cooperative: the
// controller never forces the engine, it only reports the anomaly.
const cancelWarnAfter = time.Minute

// ProgressFunc is the sink an engine reports through.
type ProgressFunc func(phase string, percent float64, message string)

// Engine is a pure computation. It polls tok at bounded intervals and
// returns model.ErrEngineCancelled after acknowledging it, any other error
// on failure, or the result on success.
type Engine interface {
	Run(ctx context.Context, params schema.SimulationParams, tok *token.Token, progress ProgressFunc) (schema.SimulationResult, error)
}

// Controller serializes start/cancel/status against the single job slot.
type Controller struct {
	engine   Engine
	started  *broadcast.Hub[schema.StartedEvent]
	progress *broadcast.Hub[schema.ProgressEvent]

	mx          sync.RWMutex
	job         *model.Job // nil until the first start, then the current or last job
	tok         *token.Token
	cancelledAt time.Time

	// emitMx serializes progress emission so percent clamping and publish
	// happen as one step and every subscriber observes a non-decreasing
	// sequence.
	emitMx sync.Mutex

	wg sync.WaitGroup
}

func New(engine Engine, started *broadcast.Hub[schema.StartedEvent], progress *broadcast.Hub[schema.ProgressEvent]) *Controller {
	return &Controller{
		engine:   engine,
		started:  started,
		progress: progress,
	}
}

// Start allocates a new job and runs the engine in the background. It
// returns the job id as soon as the job is accepted; it never waits for
// the engine. The started event is published before Start returns, so a
// caller subscribed beforehand observes it before any progress event of
// this job.
func (c *Controller) Start(ctx context.Context, params schema.SimulationParams) (string, error) {
	c.mx.Lock()
	if c.job != nil && c.job.State.Active() {
		c.mx.Unlock()
		return "", model.ErrAlreadyRunning
	}

	job := &model.Job{
		ID:        uuid.NewString(),
		Params:    params,
		State:     schema.StateRunning,
		StartedAt: time.Now().UTC(),
	}
	tok := token.New()
	c.job = job
	c.tok = tok
	c.cancelledAt = time.Time{}
	evt := schema.StartedEvent{
		JobID:     job.ID,
		Params:    params,
		Timestamp: job.StartedAt,
	}
	c.mx.Unlock()

	slog.InfoContext(ctx, "job started", "job_id", job.ID, "preset", params.Preset)
	c.started.Publish(evt)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, job.ID, params, tok)
	}()
	return job.ID, nil
}

// Cancel requests cooperative cancellation of the active job. It returns
// false when no job is running or cancelling. It does not stop the engine;
// the job resolves whenever the engine acknowledges the token or finishes
// on its own.
func (c *Controller) Cancel() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.job == nil || !c.job.State.Active() {
		return false
	}
	c.tok.Request()
	if c.job.State != schema.StateCancelling {
		c.job.State = schema.StateCancelling
		c.cancelledAt = time.Now().UTC()
		slog.Info("job cancellation requested", "job_id", c.job.ID)
	}
	return true
}

// Status returns a snapshot of the current or last job. It never fails and
// has no side effects beyond logging a prolonged cancelling state.
func (c *Controller) Status() schema.Snapshot {
	c.mx.RLock()
	defer c.mx.RUnlock()
	if c.job == nil {
		return schema.Snapshot{State: schema.StateIdle}
	}
	if c.job.State == schema.StateCancelling && time.Since(c.cancelledAt) > cancelWarnAfter {
		slog.Warn("cancellation still not acknowledged by engine",
			"job_id", c.job.ID, "requested_at", c.cancelledAt)
	}
	return c.job.Snapshot()
}

// Wait blocks until the background engine run, if any, has finished. Used
// on daemon shutdown and by tests.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) run(ctx context.Context, jobID string, params schema.SimulationParams, tok *token.Token) {
	sink := func(phase string, percent float64, message string) {
		c.report(jobID, phase, percent, message)
	}
	result, err := c.engine.Run(ctx, params, tok, sink)
	c.finish(ctx, jobID, result, err)
}

// report clamps percent to a non-decreasing value, records it on the job
// and publishes the event. Reports for a superseded or terminal job are
// dropped.
func (c *Controller) report(jobID, phase string, percent float64, message string) {
	c.emitMx.Lock()
	defer c.emitMx.Unlock()

	c.mx.Lock()
	if c.job == nil || c.job.ID != jobID || c.job.State.Terminal() {
		c.mx.Unlock()
		return
	}
	if percent < c.job.Percent {
		percent = c.job.Percent
	}
	if percent > 100 {
		percent = 100
	}
	c.job.Percent = percent
	evt := schema.ProgressEvent{
		JobID:     jobID,
		Phase:     phase,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	c.mx.Unlock()

	c.progress.Publish(evt)
}

// finish resolves the engine outcome into the terminal state. A job that
// completes while cancelling wins the race and ends completed; the token
// stays merely requested and is orphaned with the job.
func (c *Controller) finish(ctx context.Context, jobID string, result schema.SimulationResult, err error) {
	c.mx.Lock()
	job := c.job
	if job == nil || job.ID != jobID || job.State.Terminal() {
		c.mx.Unlock()
		return
	}
	job.StoppedAt = time.Now().UTC()
	switch {
	case err == nil:
		job.State = schema.StateCompleted
		job.Percent = 100
		r := result
		job.Result = &r
	case errors.Is(err, model.ErrEngineCancelled) && job.State == schema.StateCancelling:
		job.State = schema.StateCancelled
	case errors.Is(err, model.ErrEngineCancelled):
		// The engine claims it honored a token nobody requested.
		job.State = schema.StateFailed
		job.Err = "engine reported cancellation without a request"
	default:
		job.State = schema.StateFailed
		job.Err = err.Error()
	}
	state := job.State
	jobErr := job.Err
	c.mx.Unlock()

	switch state {
	case schema.StateFailed:
		slog.ErrorContext(ctx, "job failed", "job_id", jobID, "error", jobErr)
	case schema.StateCancelled:
		slog.InfoContext(ctx, "job cancelled", "job_id", jobID)
	default:
		slog.InfoContext(ctx, "job completed", "job_id", jobID)
	}
}
