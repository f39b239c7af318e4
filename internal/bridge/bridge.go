// Package bridge is the capability surface offered to the restricted
// caller: a fixed set of operations and nothing else. Payloads are
// validated here, before the controller allocates anything.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/simforge/simforge/internal/broadcast"
	"github.com/simforge/simforge/internal/control"
	"github.com/simforge/simforge/internal/export"
	"github.com/simforge/simforge/internal/model"
	"github.com/simforge/simforge/internal/presets"
	"github.com/simforge/simforge/pkg/schema"
)

// Payload bounds. A request outside them is rejected as invalid, not
// clamped.
const (
	maxParticles = 1 << 20
	maxSweeps    = 10_000_000
)

type Bridge struct {
	ctrl     *control.Controller
	catalog  *presets.Store
	exporter *export.Exporter
	started  *broadcast.Hub[schema.StartedEvent]
	progress *broadcast.Hub[schema.ProgressEvent]
}

func New(ctrl *control.Controller, catalog *presets.Store, exporter *export.Exporter,
	started *broadcast.Hub[schema.StartedEvent], progress *broadcast.Hub[schema.ProgressEvent]) *Bridge {
	return &Bridge{
		ctrl:     ctrl,
		catalog:  catalog,
		exporter: exporter,
		started:  started,
		progress: progress,
	}
}

// ListPresets returns the catalog in its defined order.
func (b *Bridge) ListPresets() []schema.Preset {
	return b.catalog.List()
}

// StartJob validates and resolves the payload, then hands it to the
// controller. It returns as soon as the job is accepted.
func (b *Bridge) StartJob(ctx context.Context, params schema.SimulationParams) (schema.StartReply, error) {
	resolved, err := b.resolve(params)
	if err != nil {
		return schema.StartReply{}, err
	}
	id, err := b.ctrl.Start(ctx, resolved)
	if err != nil {
		return schema.StartReply{}, err
	}
	return schema.StartReply{JobID: id}, nil
}

// CancelJob requests cooperative cancellation. True means a job existed
// and cancellation was requested; false means nothing was active.
func (b *Bridge) CancelJob() bool {
	return b.ctrl.Cancel()
}

// GetStatus never fails.
func (b *Bridge) GetStatus() schema.Snapshot {
	return b.ctrl.Status()
}

// SubscribeProgress registers fn for progress events of all jobs and
// returns its unsubscribe capability.
func (b *Bridge) SubscribeProgress(fn func(schema.ProgressEvent)) func() {
	sub := b.progress.Subscribe(fn)
	return sub.Unsubscribe
}

// SubscribeStarted registers fn for started events and returns its
// unsubscribe capability.
func (b *Bridge) SubscribeStarted(fn func(schema.StartedEvent)) func() {
	sub := b.started.Subscribe(fn)
	return sub.Unsubscribe
}

// ExportJSON forwards arbitrary JSON data to the exporter.
func (b *Bridge) ExportJSON(ctx context.Context, name string, data json.RawMessage) (schema.ExportReply, error) {
	if len(data) == 0 {
		return schema.ExportReply{}, fmt.Errorf("%w: export data is empty", model.ErrInvalidPayload)
	}
	path, err := b.exporter.JSON(ctx, name, data)
	if err != nil {
		return schema.ExportReply{}, err
	}
	return schema.ExportReply{Path: path}, nil
}

// ExportCSV forwards tabular rows to the exporter.
func (b *Bridge) ExportCSV(ctx context.Context, name string, header []string, rows [][]string) (schema.ExportReply, error) {
	if len(rows) == 0 {
		return schema.ExportReply{}, fmt.Errorf("%w: export rows are empty", model.ErrInvalidPayload)
	}
	path, err := b.exporter.CSV(ctx, name, header, rows)
	if err != nil {
		return schema.ExportReply{}, err
	}
	return schema.ExportReply{Path: path}, nil
}

// resolve overlays preset defaults onto zero fields, then validates the
// final payload.
func (b *Bridge) resolve(params schema.SimulationParams) (schema.SimulationParams, error) {
	if params.Preset != "" {
		preset, ok := b.catalog.Get(params.Preset)
		if !ok {
			return schema.SimulationParams{}, fmt.Errorf("%w: unknown preset %q", model.ErrInvalidPayload, params.Preset)
		}
		base := preset.Params
		base.Preset = params.Preset
		if params.Particles != 0 {
			base.Particles = params.Particles
		}
		if params.Sweeps != 0 {
			base.Sweeps = params.Sweeps
		}
		if params.Coupling != 0 {
			base.Coupling = params.Coupling
		}
		if params.Temperature != 0 {
			base.Temperature = params.Temperature
		}
		if params.Seed != 0 {
			base.Seed = params.Seed
		}
		params = base
	}

	if params.Particles < 2 || params.Particles > maxParticles {
		return schema.SimulationParams{}, fmt.Errorf("%w: particles must be in [2, %d], got %d",
			model.ErrInvalidPayload, maxParticles, params.Particles)
	}
	if params.Sweeps < 1 || params.Sweeps > maxSweeps {
		return schema.SimulationParams{}, fmt.Errorf("%w: sweeps must be in [1, %d], got %d",
			model.ErrInvalidPayload, maxSweeps, params.Sweeps)
	}
	if params.Temperature <= 0 || math.IsNaN(params.Temperature) || math.IsInf(params.Temperature, 0) {
		return schema.SimulationParams{}, fmt.Errorf("%w: temperature must be positive and finite, got %g",
			model.ErrInvalidPayload, params.Temperature)
	}
	if math.IsNaN(params.Coupling) || math.IsInf(params.Coupling, 0) {
		return schema.SimulationParams{}, fmt.Errorf("%w: coupling must be finite", model.ErrInvalidPayload)
	}
	return params, nil
}
