// Package scannermodule exposes the scan engine over the HTTP API and wires
// its supporting services (checkpoint recovery, folder monitoring).
package scannermodule

import (
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/checkpoint"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/scannermodule/scanner"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/hashicorp/go-hclog"
)

// Module bundles the scan engine with its lifecycle.
type Module struct {
	engine  *scanner.Engine
	monitor *scanner.FileMonitor
	cfg     config.Config
	logger  hclog.Logger
	bus     events.EventBus
}

// New constructs the scanner module.
func New(
	store *database.Store,
	checkpoints *checkpoint.Store,
	prober scanner.Prober,
	bus events.EventBus,
	metrics *telemetry.Metrics,
	cfg config.Config,
	logger hclog.Logger,
) (*Module, error) {
	var sysmon *scanner.SystemLoadMonitor
	if cfg.Scanner.AdaptiveThrottling {
		sysmon = scanner.NewSystemLoadMonitor(cfg.Scanner.CPUThreshold, cfg.Scanner.MemoryThreshold)
	}

	engine := scanner.NewEngine(store, checkpoints, prober, bus, metrics, cfg.Scanner, sysmon, logger.Named("engine"))

	var monitor *scanner.FileMonitor
	if cfg.Monitor.Enabled {
		var err error
		monitor, err = scanner.NewFileMonitor(store, prober, bus, cfg.Monitor.DebounceWindow, logger.Named("monitor"))
		if err != nil {
			logger.Warn("folder monitoring unavailable", "error", err)
			monitor = nil
		}
	}

	return &Module{
		engine:  engine,
		monitor: monitor,
		cfg:     cfg,
		logger:  logger,
		bus:     bus,
	}, nil
}

// Engine returns the scan engine for direct (CLI) use.
func (m *Module) Engine() *scanner.Engine {
	return m.engine
}

// Start launches the engine loop and, when monitoring is enabled, watches the
// folder of each scan that completes from then on. Folders of scans completed
// before Start are not watched.
func (m *Module) Start() {
	m.engine.Start()

	if m.monitor != nil {
		// Watch the folder of every scan that completes after Start.
		m.bus.Subscribe(events.EventFilter{Types: []events.EventType{events.EventScanCompleted}},
			func(event events.Event) {
				folder, _ := event.Data["folder_path"].(string)
				if folder == "" {
					return
				}
				if err := m.monitor.Watch(folder); err != nil {
					m.logger.Warn("failed to start folder monitoring", "folder", folder, "error", err)
				}
			})
	}
}

// CheckRecovery surfaces a resumable checkpoint, if any.
func (m *Module) CheckRecovery() (*scanner.RecoveryInfo, error) {
	return m.engine.CheckRecovery(m.cfg.Scanner.StaleCheckpointAge)
}

// Stop shuts the module down gracefully.
func (m *Module) Stop() {
	if m.monitor != nil {
		m.monitor.Stop()
	}
	m.engine.Stop()
}
