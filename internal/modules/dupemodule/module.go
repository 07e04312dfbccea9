package dupemodule

import (
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/hashicorp/go-hclog"
)

// Module runs duplicate detection over the catalog.
type Module struct {
	store    *database.Store
	detector *Detector
	bus      events.EventBus
	logger   hclog.Logger
}

// New constructs the duplicates module.
func New(store *database.Store, bus events.EventBus, metrics *telemetry.Metrics, cfg config.DuplicateConfig, logger hclog.Logger) *Module {
	return &Module{
		store:    store,
		detector: NewDetector(cfg.PartialHashWindow, metrics, logger),
		bus:      bus,
		logger:   logger,
	}
}

// Detector returns the underlying detector for direct (CLI) use.
func (m *Module) Detector() *Detector {
	return m.detector
}

// DetectAll runs detection over the whole catalog, publishing progress on
// the event bus.
func (m *Module) DetectAll(method Method) ([]Group, error) {
	videos, err := m.store.FetchFiltered(database.VideoFilters{SortBy: database.SortFileSize})
	if err != nil {
		return nil, err
	}

	groups, err := m.detector.Detect(videos, method, func(p Progress) {
		event := events.NewEvent(events.EventDuplicateProgress, "Duplicate Detection", string(p.Phase))
		event.Data = map[string]interface{}{
			"phase":     string(p.Phase),
			"current":   p.Current,
			"total":     p.Total,
			"file_path": p.FilePath,
		}
		_ = m.bus.PublishAsync(event)
	})
	if err != nil {
		return nil, err
	}

	// Full-content hashes are worth keeping: later runs can pre-filter on the
	// indexed file_hash column.
	if method == MethodFullHash {
		for _, group := range groups {
			for _, file := range group.Files {
				if err := m.store.SetFileHash(file.ID, group.Hash); err != nil {
					m.logger.Warn("failed to persist file hash", "file", file.FilePath, "error", err)
				}
			}
		}
	}

	return groups, nil
}
