package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simforge/simforge/internal/bridge"
	"github.com/simforge/simforge/internal/broadcast"
	"github.com/simforge/simforge/internal/bus"
	"github.com/simforge/simforge/internal/control"
	"github.com/simforge/simforge/internal/engine"
	"github.com/simforge/simforge/internal/export"
	"github.com/simforge/simforge/internal/log"
	"github.com/simforge/simforge/internal/presets"
	"github.com/simforge/simforge/pkg/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve exposes the simulation bridge on NATS until interrupted",
	RunE:  doServe,
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs := slog.Group("simforge",
		slog.String("cmd", "serve"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	catalog, err := loadCatalog()
	if err != nil {
		return err
	}

	exporter, err := export.New(config.ExportDir)
	if err != nil {
		return err
	}

	startedHub := broadcast.New[schema.StartedEvent]()
	progressHub := broadcast.New[schema.ProgressEvent]()
	ctrl := control.New(engine.NewPhase1(config.Engine.Shards), startedHub, progressHub)
	brdg := bridge.New(ctrl, catalog, exporter, startedHub, progressHub)

	client, err := bus.Connect(config.NATSURL)
	if err != nil {
		return err
	}
	server := bus.NewServer(client, brdg)
	if err := server.Start(ctx); err != nil {
		server.Close()
		client.Close()
		return err
	}
	slog.InfoContext(ctx, "simforge serving", "nats_url", config.NATSURL, "export_dir", config.ExportDir)

	<-ctx.Done()
	slog.InfoContext(ctx, "shutting down")

	server.Close()
	ctrl.Wait()
	client.Close()
	if err := exporter.Close(); err != nil {
		slog.ErrorContext(ctx, "closing exporter", "error", err)
	}
	return nil
}

func loadCatalog() (*presets.Store, error) {
	if config.Presets != "" {
		return presets.Open(config.Presets)
	}
	return presets.Default(), nil
}
