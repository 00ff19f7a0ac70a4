package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register mounts the open probe endpoints and the authenticated dataset API.
// protected runs in order before every /api/v1 handler.
func Register(r *gin.Engine, h *DatasetHandler, protected ...gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1Group := r.Group("/api/v1", protected...)
	{
		v1Group.POST("/datasets", h.Upload)
		v1Group.GET("/summary", h.Summary)
		v1Group.GET("/history", h.History)
		v1Group.GET("/reports/latest", h.LatestReport)
		v1Group.GET("/reports/:id", h.Report)
	}
}
