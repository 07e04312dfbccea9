package integritymodule

import (
	"net/http"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// Module exposes integrity checking over the HTTP API.
type Module struct {
	store   *database.Store
	checker *Checker
	bus     events.EventBus
	logger  hclog.Logger
}

// New constructs the integrity module.
func New(store *database.Store, bus events.EventBus, metrics *telemetry.Metrics, cfg config.IntegrityConfig, logger hclog.Logger) *Module {
	return &Module{
		store:   store,
		checker: NewChecker(cfg, metrics, logger),
		bus:     bus,
		logger:  logger,
	}
}

// Checker returns the underlying checker for direct (CLI) use.
func (m *Module) Checker() *Checker {
	return m.checker
}

// CheckCatalog verifies every catalog record.
func (m *Module) CheckCatalog(progress ProgressFunc) ([]Result, error) {
	videos, err := m.store.FetchFiltered(database.VideoFilters{SortBy: database.SortFileName, SortAscending: true})
	if err != nil {
		return nil, err
	}
	return m.checker.CheckAll(m.store, m.bus, videos, progress), nil
}

// RegisterRoutes registers the integrity module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/integrity")
	{
		api.POST("/check", m.runCheck)
	}
}

func (m *Module) runCheck(c *gin.Context) {
	results, err := m.CheckCatalog(nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	corrupted := 0
	for _, r := range results {
		if r.IsCorrupted {
			corrupted++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"checked":   len(results),
		"corrupted": corrupted,
		"results":   results,
	})
}
