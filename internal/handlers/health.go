package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports per-dependency connectivity. It never errors:
// a down dependency is a degraded value in an HTTP 200 body, so health
// pollers observe state transitions instead of failures.
type HealthHandler struct {
	hot     Pinger
	archive Archiver
}

func NewHealthHandler(hot Pinger, archive Archiver) *HealthHandler {
	return &HealthHandler{
		hot:     hot,
		archive: archive,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	// Bounded probes so a hung dependency cannot stall the poller.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "ok"

	valkeyStatus := "connected"
	if err := h.hot.Ping(ctx); err != nil {
		valkeyStatus = "disconnected"
		status = "degraded"
	}

	archiveStatus := h.archive.Status(ctx)
	if archiveStatus == "disconnected" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"valkey":   valkeyStatus,
		"postgres": archiveStatus,
	})
}
