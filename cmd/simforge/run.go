package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/simforge/simforge/internal/bridge"
	"github.com/simforge/simforge/internal/broadcast"
	"github.com/simforge/simforge/internal/control"
	"github.com/simforge/simforge/internal/engine"
	"github.com/simforge/simforge/internal/export"
	"github.com/simforge/simforge/internal/log"
	"github.com/simforge/simforge/pkg/schema"
)

var runFlags struct {
	preset      string
	particles   int
	sweeps      int
	coupling    float64
	temperature float64
	seed        int64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run executes one simulation locally and prints the result as JSON",
	RunE:  doLocalRun,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "presets lists the preset catalog",
	RunE:  doPresets,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.preset, "preset", "", "preset providing defaults for unset parameters")
	runCmd.Flags().IntVar(&runFlags.particles, "particles", 0, "number of chain sites")
	runCmd.Flags().IntVar(&runFlags.sweeps, "sweeps", 0, "number of sampling sweeps")
	runCmd.Flags().Float64Var(&runFlags.coupling, "coupling", 0, "nearest neighbour coupling")
	runCmd.Flags().Float64Var(&runFlags.temperature, "temperature", 0, "temperature")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 0, "random seed")
}

func doLocalRun(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.Group("simforge",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	exporter, err := export.New(config.ExportDir)
	if err != nil {
		return err
	}
	defer func() {
		_ = exporter.Close()
	}()

	startedHub := broadcast.New[schema.StartedEvent]()
	progressHub := broadcast.New[schema.ProgressEvent]()
	ctrl := control.New(engine.NewPhase1(config.Engine.Shards), startedHub, progressHub)
	brdg := bridge.New(ctrl, catalog, exporter, startedHub, progressHub)

	unsubscribe := brdg.SubscribeProgress(func(evt schema.ProgressEvent) {
		slog.DebugContext(ctx, "progress", "phase", evt.Phase, "percent", int(evt.Percent), "message", evt.Message)
	})
	defer unsubscribe()

	params := schema.SimulationParams{
		Preset:      runFlags.preset,
		Particles:   runFlags.particles,
		Sweeps:      runFlags.sweeps,
		Coupling:    runFlags.coupling,
		Temperature: runFlags.temperature,
		Seed:        runFlags.seed,
	}
	reply, err := brdg.StartJob(ctx, params)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "simulation accepted", "job_id", reply.JobID)

	ctrl.Wait()
	snap := brdg.GetStatus()
	switch snap.State {
	case schema.StateCompleted:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Result)
	case schema.StateFailed:
		return fmt.Errorf("simulation failed: %s", snap.Error)
	default:
		return fmt.Errorf("simulation ended in unexpected state %q", snap.State)
	}
}

func doPresets(cmd *cobra.Command, _ []string) error {
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	for _, p := range catalog.List() {
		fmt.Printf("%-16s particles=%-6d sweeps=%-7d T=%-6g %s\n",
			p.Name, p.Params.Particles, p.Params.Sweeps, p.Params.Temperature, p.Description)
	}
	return nil
}
