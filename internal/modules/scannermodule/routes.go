package scannermodule

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/scannermodule/scanner"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the scanner module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/scanner")
	{
		api.POST("/scan", m.startScan)
		api.POST("/pause", m.pauseScan)
		api.POST("/resume", m.resumeScan)
		api.POST("/cancel", m.cancelScan)

		api.GET("/status", m.getStatus)
		api.GET("/logs", m.getLogs)

		api.GET("/recovery", m.getRecovery)
		api.POST("/recovery/accept", m.acceptRecovery)
		api.POST("/recovery/dismiss", m.dismissRecovery)
	}
}

type startScanRequest struct {
	Path string `json:"path" binding:"required"`
}

func (m *Module) startScan(c *gin.Context) {
	var req startScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	if err := m.engine.StartScan(req.Path); err != nil {
		status := http.StatusInternalServerError
		var accessErr *scanner.ErrFolderAccessDenied
		switch {
		case errors.Is(err, scanner.ErrScanAlreadyInProgress):
			status = http.StatusConflict
		case errors.As(err, &accessErr):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, m.engine.Status())
}

func (m *Module) pauseScan(c *gin.Context) {
	m.lifecycle(c, m.engine.Pause)
}

func (m *Module) resumeScan(c *gin.Context) {
	m.lifecycle(c, m.engine.Resume)
}

func (m *Module) cancelScan(c *gin.Context) {
	m.lifecycle(c, m.engine.Cancel)
}

func (m *Module) lifecycle(c *gin.Context, op func() error) {
	if err := op(); err != nil {
		status := http.StatusConflict
		if errors.Is(err, scanner.ErrEngineStopped) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m.engine.Status())
}

func (m *Module) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, m.engine.Status())
}

func (m *Module) getLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	c.JSON(http.StatusOK, gin.H{"entries": m.engine.Logs(limit)})
}

func (m *Module) getRecovery(c *gin.Context) {
	info, err := m.CheckRecovery()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if info == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no recoverable checkpoint"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (m *Module) acceptRecovery(c *gin.Context) {
	if err := m.engine.AcceptRecovery(); err != nil {
		status := http.StatusConflict
		if errors.Is(err, scanner.ErrNoRecovery) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, m.engine.Status())
}

func (m *Module) dismissRecovery(c *gin.Context) {
	if err := m.engine.DismissRecovery(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scanner.ErrNoRecovery) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "dismissed"})
}
