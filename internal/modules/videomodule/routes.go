package videomodule

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/database"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/mediainfo"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterRoutes registers the video module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/videos")
	{
		api.GET("", m.listVideos)
		api.GET("/stats", m.getStatistics)
		api.GET("/:id", m.getVideo)
		api.DELETE("/:id", m.deleteVideo)
	}

	sessions := router.Group("/api/sessions")
	{
		sessions.GET("", m.listSessions)
		sessions.DELETE("/:id", m.deleteSession)
	}
}

// parseFilters maps query parameters onto the store's filter set. List
// parameters are comma-separated.
func parseFilters(c *gin.Context) database.VideoFilters {
	filters := database.VideoFilters{
		SearchText:    c.Query("search"),
		SortBy:        database.SortColumn(c.DefaultQuery("sort", string(database.SortFileName))),
		SortAscending: c.DefaultQuery("order", "asc") != "desc",
	}

	filters.VideoCodecs = splitParam(c.Query("video_codecs"))
	filters.HDRFormats = splitParam(c.Query("hdr_formats"))
	filters.AudioCodecs = splitParam(c.Query("audio_codecs"))
	filters.Containers = splitParam(c.Query("containers"))

	for _, raw := range splitParam(c.Query("resolutions")) {
		filters.ResolutionCategories = append(filters.ResolutionCategories, mediainfo.ResolutionCategory(raw))
	}

	if raw := c.Query("has_atmos"); raw != "" {
		v := raw == "true" || raw == "1"
		filters.HasAtmos = &v
	}
	if raw := c.Query("has_dtsx"); raw != "" {
		v := raw == "true" || raw == "1"
		filters.HasDTSX = &v
	}
	filters.ImmersiveAudio = c.Query("immersive_audio") == "true"

	if v, err := strconv.ParseFloat(c.Query("min_duration"), 64); err == nil {
		filters.MinDuration = &v
	}
	if v, err := strconv.ParseFloat(c.Query("max_duration"), 64); err == nil {
		filters.MaxDuration = &v
	}
	if v, err := strconv.ParseUint(c.Query("min_size"), 10, 64); err == nil {
		filters.MinSize = &v
	}
	if v, err := strconv.ParseUint(c.Query("max_size"), 10, 64); err == nil {
		filters.MaxSize = &v
	}

	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		filters.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		filters.Offset = v
	}

	return filters
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (m *Module) listVideos(c *gin.Context) {
	videos, err := m.store.FetchFiltered(parseFilters(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos, "count": len(videos)})
}

func (m *Module) getStatistics(c *gin.Context) {
	stats, err := m.store.FetchStatistics()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (m *Module) getVideo(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video ID"})
		return
	}

	video, err := m.store.GetVideo(uint(id))
	if err != nil {
		status := http.StatusInternalServerError
		if err == gorm.ErrRecordNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "video not found"})
		return
	}
	c.JSON(http.StatusOK, video)
}

func (m *Module) deleteVideo(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video ID"})
		return
	}

	if err := m.store.DeleteVideo(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (m *Module) listSessions(c *gin.Context) {
	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	sessions, err := m.store.ListSessions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (m *Module) deleteSession(c *gin.Context) {
	if err := m.store.DeleteSession(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
