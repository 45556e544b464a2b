package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/alerts"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/config"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/database"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/handlers"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/logger"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/ratelimit"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/timeline"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/valkey"
)

func main() {
	cfg := config.Load()
	slogger := logger.New()

	gin.SetMode(cfg.GinMode)

	// Hot store is mandatory; without it there is no pipeline.
	valkeyClient, err := valkey.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Valkey: %v", err)
	}
	defer valkeyClient.Close()
	slogger.Info("connected to valkey", "address", cfg.GetValkeyAddress())

	// Archive is optional. Empty DSN leaves it nil; every call site
	// degrades to a no-op from there.
	var archive *database.Archive
	if cfg.PostgresDSN != "" {
		db, err := database.New(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to open archive database: %v", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.Ping(pingCtx); err != nil {
			slogger.Warn("archive database unreachable at startup, archival will retry per write", "error", err)
		} else {
			slogger.Info("connected to postgresql archive")
		}
		cancel()

		archive = database.NewArchive(db, cfg.ArchiveRetentionDays, slogger)
	}

	metricsStore := timeline.New(valkeyClient, cfg.MetricsKey, cfg.MetricsChannel, cfg.RetentionSeconds)
	alertStore := timeline.New(valkeyClient, cfg.AlertsKey, cfg.AlertsChannel, cfg.AlertRetentionSeconds)
	evaluator := alerts.NewEvaluator(cfg.AlertCPUThreshold, int64(cfg.AlertCPUDurationSeconds))
	limiter := ratelimit.New(cfg.RateLimitPerMinute)

	metricsHandler := handlers.NewMetricsHandler(
		metricsStore, alertStore, archive, evaluator, limiter, cfg.AgentToken, slogger)
	alertsHandler := handlers.NewAlertsHandler(alertStore, slogger)
	healthHandler := handlers.NewHealthHandler(valkeyClient, archive)
	metricsStream := handlers.NewStreamHandler(valkeyClient, cfg.MetricsChannel, slogger)
	alertsStream := handlers.NewStreamHandler(valkeyClient, cfg.AlertsChannel, slogger)

	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow agents from anywhere
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Agent-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	router.POST("/ingest/metrics", metricsHandler.IngestMetrics)
	router.GET("/api/metrics/recent", metricsHandler.GetRecentMetrics)
	router.GET("/api/alerts/recent", alertsHandler.GetRecentAlerts)
	router.GET("/health", healthHandler.Health)
	router.GET("/ws/metrics", metricsStream.HandleWebSocket)
	router.GET("/ws/alerts", alertsStream.HandleWebSocket)

	addr := ":" + cfg.Port
	log.Printf("Starting metrics backend on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
