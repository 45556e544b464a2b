package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// Valkey (hot store + pub/sub)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// PostgreSQL archive (optional; empty DSN disables archival)
	PostgresDSN          string
	ArchiveRetentionDays int

	// Timeline keys and channels
	MetricsKey     string
	AlertsKey      string
	MetricsChannel string
	AlertsChannel  string

	// Retention
	RetentionSeconds      int
	AlertRetentionSeconds int

	// Ingest edge
	AgentToken         string
	RateLimitPerMinute int

	// Alerting
	AlertCPUThreshold       float64
	AlertCPUDurationSeconds int

	// Server
	Port    string
	GinMode string
}

func Load() *Config {
	return &Config{
		// Valkey
		ValkeyHost:     getEnv("VALKEY_HOST", "localhost"),
		ValkeyPort:     getEnv("VALKEY_PORT", "6379"),
		ValkeyPassword: getEnv("VALKEY_PASSWORD", ""),

		// PostgreSQL
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		ArchiveRetentionDays: getEnvInt("ARCHIVE_RETENTION_DAYS", 14),

		// Keys and channels
		MetricsKey:     getEnv("METRICS_KEY", "metrics:timeline"),
		AlertsKey:      getEnv("ALERTS_KEY", "alerts:timeline"),
		MetricsChannel: getEnv("METRICS_CHANNEL", "metrics:updates"),
		AlertsChannel:  getEnv("ALERTS_CHANNEL", "alerts:updates"),

		// Retention
		RetentionSeconds:      getEnvInt("RETENTION_SECONDS", 300),
		AlertRetentionSeconds: getEnvInt("ALERT_RETENTION_SECONDS", 86400),

		// Ingest edge
		AgentToken:         getEnv("AGENT_TOKEN", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		// Alerting
		AlertCPUThreshold:       getEnvFloat("ALERT_CPU_THRESHOLD", 90),
		AlertCPUDurationSeconds: getEnvInt("ALERT_CPU_DURATION_SECONDS", 10),

		// Server
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),
	}
}

func (c *Config) GetValkeyAddress() string {
	return fmt.Sprintf("%s:%s", c.ValkeyHost, c.ValkeyPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
