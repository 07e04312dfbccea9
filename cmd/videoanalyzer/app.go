package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/checkpoint"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/logger"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/dupemodule"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/integritymodule"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/scannermodule"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/probe"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
)

// app bundles the wired components every subcommand needs.
type app struct {
	cfg       *config.Config
	store     *database.Store
	bus       events.EventBus
	metrics   *telemetry.Metrics
	prober    *probe.Runner
	scanner   *scannermodule.Module
	dupes     *dupemodule.Module
	integrity *integritymodule.Module
}

// newApp loads configuration and constructs the component graph.
func newApp() (*app, error) {
	if err := config.Load(configPath); err != nil {
		return nil, err
	}
	cfg := config.Get()

	logger.Configure(cfg.Logging.Level, os.Stderr, cfg.Logging.JSONFormat)
	log := logger.Named("app")

	store, err := database.New(cfg.Database, logger.Named("database"))
	if err != nil {
		return nil, err
	}

	metrics := telemetry.New()
	bus := events.NewEventBus(events.DefaultConfig(), logger.Named("events"))
	if err := bus.Start(context.Background()); err != nil {
		return nil, err
	}

	prober := probe.NewRunner(cfg.Probe, logger.Named("probe"))
	if !prober.Available() {
		log.Warn("ffprobe not found; scans will fail until it is installed")
	}

	checkpoints := checkpoint.NewStore(cfg.Database.DataDir, logger.Named("checkpoint"))

	scanMod, err := scannermodule.New(store, checkpoints, prober, bus, metrics, *cfg, logger.Named("scanner"))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     store,
		bus:       bus,
		metrics:   metrics,
		prober:    prober,
		scanner:   scanMod,
		dupes:     dupemodule.New(store, bus, metrics, cfg.Duplicates, logger.Named("duplicates")),
		integrity: integritymodule.New(store, bus, metrics, cfg.Integrity, logger.Named("integrity")),
	}, nil
}

// close tears the component graph down in reverse order.
func (a *app) close() {
	a.scanner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.bus.Stop(ctx)

	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "videoanalyzer: failed to close database: %v\n", err)
	}
}
