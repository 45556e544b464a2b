package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/collector"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/config"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/retry"
)

const agentTokenHeader = "X-Agent-Token"

// Agent periodically collects one system snapshot and delivers it to the
// backend's ingest endpoint with retry and backoff.
type Agent struct {
	cfg       *config.AgentConfig
	collector *collector.Collector
	client    *http.Client
	logger    *zap.Logger
}

func New(cfg *config.AgentConfig, logger *zap.Logger) *Agent {
	return &Agent{
		cfg: cfg,
		collector: collector.New(logger, cfg.TopProcesses,
			cfg.CollectThreads, cfg.CollectIO, cfg.CollectHandles),
		client: &http.Client{
			Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// Run drives the collect-and-deliver loop until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	interval := time.Duration(a.cfg.IntervalSeconds) * time.Second

	a.logger.Info("agent started",
		zap.String("server", a.cfg.ServerURL),
		zap.Duration("interval", interval),
		zap.Int("top_processes", a.cfg.TopProcesses))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.collectAndDeliver(ctx)

		select {
		case <-ctx.Done():
			a.logger.Info("agent stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// collectAndDeliver performs one cycle. A failed cycle is logged and the
// loop moves on; the backend's rolling window tolerates gaps.
func (a *Agent) collectAndDeliver(ctx context.Context) {
	snapshot, err := a.collector.Collect(ctx)
	if err != nil {
		a.logger.Warn("collection failed", zap.Error(err))
		return
	}

	err = retry.WithExponentialBackoff(ctx, retry.DefaultConfig(), a.logger, "deliver snapshot", func() error {
		return a.deliver(ctx, snapshot)
	})
	if err != nil {
		a.logger.Warn("snapshot delivery failed", zap.Error(err),
			zap.Int64("timestamp", snapshot.Timestamp))
		return
	}

	a.logger.Debug("snapshot delivered",
		zap.Int64("timestamp", snapshot.Timestamp),
		zap.Float64("total_cpu_percent", snapshot.TotalCPUPercent))
}

func (a *Agent) deliver(ctx context.Context, snapshot *models.MetricSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.ServerURL+"/ingest/metrics", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.Token != "" {
		req.Header.Set(agentTokenHeader, a.cfg.Token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingest rejected with status %d: %s", resp.StatusCode, body)
	}
	return nil
}
