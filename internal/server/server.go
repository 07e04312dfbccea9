// Package server assembles the HTTP API from the feature modules.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/config"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteRegistrar is implemented by every feature module.
type RouteRegistrar interface {
	RegisterRoutes(router *gin.Engine)
}

// Server hosts the HTTP API.
type Server struct {
	cfg    config.ServerConfig
	logger hclog.Logger
	http   *http.Server
}

// New builds the router and wires module routes, health, events, and metrics.
func New(cfg config.ServerConfig, bus events.EventBus, metrics *telemetry.Metrics, logger hclog.Logger, modules ...RouteRegistrar) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "videoanalyzer",
		})
	})

	router.GET("/api/events/recent", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"events": bus.RecentEvents(100)})
	})

	if cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}

	for _, module := range modules {
		module.RegisterRoutes(router)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		cfg:    cfg,
		logger: logger,
		http: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}
