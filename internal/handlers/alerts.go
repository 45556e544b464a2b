package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
)

const (
	defaultLookbackMinutes = 60
	maxLookbackMinutes     = 1440
)

// AlertsHandler serves the recent-alerts read path.
type AlertsHandler struct {
	alertStore TimelineStore
	logger     *slog.Logger
}

func NewAlertsHandler(alertStore TimelineStore, logger *slog.Logger) *AlertsHandler {
	return &AlertsHandler{
		alertStore: alertStore,
		logger:     logger,
	}
}

// GetRecentAlerts returns alert events within the caller-supplied
// lookback window (minutes, clamped to [1,1440], default 60), independent
// of the store's own retention.
func (h *AlertsHandler) GetRecentAlerts(c *gin.Context) {
	minutes := defaultLookbackMinutes
	if param := c.Query("minutes"); param != "" {
		if n, err := strconv.Atoi(param); err == nil {
			minutes = n
		}
	}
	if minutes < 1 {
		minutes = 1
	}
	if minutes > maxLookbackMinutes {
		minutes = maxLookbackMinutes
	}

	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	raw, err := h.alertStore.Since(c.Request.Context(), cutoff)
	if err != nil {
		h.logger.Error("alert store read failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert store unavailable"})
		return
	}

	events := make([]models.AlertEvent, 0, len(raw))
	for _, item := range raw {
		var event models.AlertEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, event)
	}

	c.JSON(http.StatusOK, events)
}
