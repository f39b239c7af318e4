package bridge_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/bridge"
	"github.com/simforge/simforge/internal/broadcast"
	"github.com/simforge/simforge/internal/control"
	"github.com/simforge/simforge/internal/export"
	"github.com/simforge/simforge/internal/model"
	"github.com/simforge/simforge/internal/presets"
	"github.com/simforge/simforge/internal/token"
	"github.com/simforge/simforge/pkg/schema"
)

type engineFunc func(ctx context.Context, params schema.SimulationParams, tok *token.Token, progress control.ProgressFunc) (schema.SimulationResult, error)

func (f engineFunc) Run(ctx context.Context, params schema.SimulationParams, tok *token.Token, progress control.ProgressFunc) (schema.SimulationResult, error) {
	return f(ctx, params, tok, progress)
}

func newBridge(t *testing.T, eng control.Engine) (*bridge.Bridge, *control.Controller) {
	t.Helper()
	started := broadcast.New[schema.StartedEvent]()
	progress := broadcast.New[schema.ProgressEvent]()
	ctrl := control.New(eng, started, progress)
	t.Cleanup(ctrl.Wait)

	exporter, err := export.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = exporter.Close() })

	return bridge.New(ctrl, presets.Default(), exporter, started, progress), ctrl
}

func okEngine(result schema.SimulationResult) engineFunc {
	return func(context.Context, schema.SimulationParams, *token.Token, control.ProgressFunc) (schema.SimulationResult, error) {
		return result, nil
	}
}

func TestListPresets(t *testing.T) {
	t.Parallel()
	b, _ := newBridge(t, okEngine(schema.SimulationResult{}))
	list := b.ListPresets()
	require.NotEmpty(t, list)
	require.Equal(t, presets.Default().List(), list)
}

func TestStartJobWithPresetDefaults(t *testing.T) {
	t.Parallel()
	var got schema.SimulationParams
	b, ctrl := newBridge(t, engineFunc(func(_ context.Context, params schema.SimulationParams, _ *token.Token, _ control.ProgressFunc) (schema.SimulationResult, error) {
		got = params
		return schema.SimulationResult{}, nil
	}))

	reply, err := b.StartJob(t.Context(), schema.SimulationParams{Preset: "smoke", Seed: 99})
	require.NoError(t, err)
	require.NotEmpty(t, reply.JobID)
	ctrl.Wait()

	smoke, ok := presets.Default().Get("smoke")
	require.True(t, ok)
	require.Equal(t, smoke.Params.Particles, got.Particles)
	require.Equal(t, smoke.Params.Sweeps, got.Sweeps)
	// explicit field wins over the preset
	require.Equal(t, int64(99), got.Seed)
	require.Equal(t, "smoke", got.Preset)
}

func TestStartJobValidation(t *testing.T) {
	t.Parallel()
	b, _ := newBridge(t, okEngine(schema.SimulationResult{}))

	cases := map[string]schema.SimulationParams{
		"unknown preset":       {Preset: "no-such-preset"},
		"no particles":         {Sweeps: 10, Temperature: 1},
		"one particle":         {Particles: 1, Sweeps: 10, Temperature: 1},
		"no sweeps":            {Particles: 8, Temperature: 1},
		"zero temperature":     {Particles: 8, Sweeps: 10},
		"negative temperature": {Particles: 8, Sweeps: 10, Temperature: -1},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.StartJob(t.Context(), params)
			require.ErrorIs(t, err, model.ErrInvalidPayload)
		})
	}

	// no job was ever created by the rejected payloads
	require.Equal(t, schema.StateIdle, b.GetStatus().State)
	require.False(t, b.CancelJob())
}

func TestStartJobAlreadyRunning(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	b, ctrl := newBridge(t, engineFunc(func(context.Context, schema.SimulationParams, *token.Token, control.ProgressFunc) (schema.SimulationResult, error) {
		<-release
		return schema.SimulationResult{}, nil
	}))

	_, err := b.StartJob(t.Context(), schema.SimulationParams{Preset: "smoke"})
	require.NoError(t, err)
	_, err = b.StartJob(t.Context(), schema.SimulationParams{Preset: "smoke"})
	require.ErrorIs(t, err, model.ErrAlreadyRunning)

	close(release)
	ctrl.Wait()
}

func TestSubscriptions(t *testing.T) {
	t.Parallel()
	b, ctrl := newBridge(t, engineFunc(func(_ context.Context, _ schema.SimulationParams, _ *token.Token, progress control.ProgressFunc) (schema.SimulationResult, error) {
		progress("sample", 10, "")
		return schema.SimulationResult{}, nil
	}))

	var startedSeen, progressSeen int
	unsubStarted := b.SubscribeStarted(func(schema.StartedEvent) { startedSeen++ })
	unsubProgress := b.SubscribeProgress(func(schema.ProgressEvent) { progressSeen++ })

	_, err := b.StartJob(t.Context(), schema.SimulationParams{Preset: "smoke"})
	require.NoError(t, err)
	ctrl.Wait()
	require.Equal(t, 1, startedSeen)
	require.Equal(t, 1, progressSeen)

	unsubStarted()
	unsubProgress()
	unsubProgress() // idempotent

	_, err = b.StartJob(t.Context(), schema.SimulationParams{Preset: "smoke"})
	require.NoError(t, err)
	ctrl.Wait()
	require.Equal(t, 1, startedSeen)
	require.Equal(t, 1, progressSeen)
}

func TestExportJSON(t *testing.T) {
	t.Parallel()
	b, _ := newBridge(t, okEngine(schema.SimulationResult{}))

	reply, err := b.ExportJSON(t.Context(), "result", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	require.NotEmpty(t, reply.Path)

	_, err = b.ExportJSON(t.Context(), "empty", nil)
	require.ErrorIs(t, err, model.ErrInvalidPayload)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()
	b, _ := newBridge(t, okEngine(schema.SimulationResult{}))

	reply, err := b.ExportCSV(t.Context(), "series", []string{"x"}, [][]string{{"1"}})
	require.NoError(t, err)
	require.NotEmpty(t, reply.Path)

	_, err = b.ExportCSV(t.Context(), "empty", nil, nil)
	require.ErrorIs(t, err, model.ErrInvalidPayload)
}
