package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/alerts"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/ratelimit"
)

const agentTokenHeader = "X-Agent-Token"

// MetricsHandler is the ingest gateway and the metrics read path. It owns
// no long-lived state beyond the rate limiter and the alert evaluator,
// both injected and internally locked.
type MetricsHandler struct {
	metrics    TimelineStore
	alertStore TimelineStore
	archive    Archiver
	evaluator  *alerts.Evaluator
	limiter    *ratelimit.Limiter
	agentToken string
	logger     *slog.Logger
}

func NewMetricsHandler(
	metrics TimelineStore,
	alertStore TimelineStore,
	archive Archiver,
	evaluator *alerts.Evaluator,
	limiter *ratelimit.Limiter,
	agentToken string,
	logger *slog.Logger,
) *MetricsHandler {
	return &MetricsHandler{
		metrics:    metrics,
		alertStore: alertStore,
		archive:    archive,
		evaluator:  evaluator,
		limiter:    limiter,
		agentToken: agentToken,
		logger:     logger,
	}
}

// IngestMetrics accepts one snapshot from an agent. The pipeline
// short-circuits on the first failure: schema validation (422), token
// check (401), rate limit (429), hot-store write (503). Archive persist,
// archive sweep, and alert evaluation run after the write and are
// best-effort: their failures are logged, never surfaced.
func (h *MetricsHandler) IngestMetrics(c *gin.Context) {
	var snapshot models.MetricSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed metric snapshot", "detail": err.Error()})
		return
	}
	if err := snapshot.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if h.agentToken != "" && c.GetHeader(agentTokenHeader) != h.agentToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing agent token"})
		return
	}

	if !h.limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	serialized, err := json.Marshal(&snapshot)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to serialize snapshot"})
		return
	}

	ctx := c.Request.Context()
	if err := h.metrics.Append(ctx, string(serialized), snapshot.Timestamp); err != nil {
		h.logger.Error("hot-store write failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hot store unavailable"})
		return
	}

	// Best-effort from here on. The snapshot is already visible in the
	// rolling window; nothing below may fail or roll back the request.
	if err := h.archive.Persist(ctx, &snapshot); err != nil {
		h.logger.Warn("archive persist failed", "error", err, "timestamp", snapshot.Timestamp)
	}
	h.archive.Sweep(ctx)

	h.evaluateAlert(c, &snapshot)

	c.JSON(http.StatusOK, gin.H{"status": "accepted", "timestamp": snapshot.Timestamp})
}

// evaluateAlert runs the rule engine and forwards a rising-edge event to
// the alert store. Alerting never blocks or fails ingest.
func (h *MetricsHandler) evaluateAlert(c *gin.Context, snapshot *models.MetricSnapshot) {
	event := h.evaluator.Evaluate(snapshot)
	if event == nil {
		return
	}

	serialized, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to serialize alert event", "error", err, "rule", event.Rule)
		return
	}

	if err := h.alertStore.Append(c.Request.Context(), string(serialized), event.Timestamp); err != nil {
		h.logger.Warn("alert store write failed", "error", err, "rule", event.Rule)
		return
	}

	h.logger.Info("alert triggered",
		"rule", event.Rule,
		"current_value", event.CurrentValue,
		"threshold", event.Threshold)
}

// GetRecentMetrics returns the current rolling window in timestamp order.
// Individually malformed stored records are skipped; one corrupt entry
// never fails the whole read.
func (h *MetricsHandler) GetRecentMetrics(c *gin.Context) {
	raw, err := h.metrics.Recent(c.Request.Context())
	if err != nil {
		h.logger.Error("hot-store read failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "hot store unavailable"})
		return
	}

	snapshots := make([]models.MetricSnapshot, 0, len(raw))
	for _, item := range raw {
		var snapshot models.MetricSnapshot
		if err := json.Unmarshal([]byte(item), &snapshot); err != nil {
			continue
		}
		if err := snapshot.Validate(); err != nil {
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	c.JSON(http.StatusOK, snapshots)
}
