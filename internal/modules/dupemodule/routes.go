package dupemodule

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the duplicates module routes
func (m *Module) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/duplicates")
	{
		api.POST("/detect", m.detect)
	}
}

type detectRequest struct {
	Method Method `json:"method"`
}

func (m *Module) detect(c *gin.Context) {
	req := detectRequest{Method: MethodFuzzy}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	groups, err := m.DetectAll(req.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	type groupView struct {
		Group
		TotalSize        uint64 `json:"total_size"`
		PotentialSavings uint64 `json:"potential_savings"`
	}
	views := make([]groupView, len(groups))
	var totalSavings uint64
	for i, g := range groups {
		views[i] = groupView{Group: g, TotalSize: g.TotalSize(), PotentialSavings: g.PotentialSavings()}
		totalSavings += g.PotentialSavings()
	}

	c.JSON(http.StatusOK, gin.H{
		"groups":            views,
		"group_count":       len(groups),
		"potential_savings": totalSavings,
	})
}
