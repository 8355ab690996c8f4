package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// metricsMiddleware records request count and latency per route template.
func (h *Handler) metricsMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.metrics.HTTPRequest(c.FullPath(), c.Writer.Status(), time.Since(start))
}
