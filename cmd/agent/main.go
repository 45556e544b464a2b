package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/agent"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/config"
)

func main() {
	cfg := config.LoadAgent()

	rootCmd := &cobra.Command{
		Use:   "agent",
		Short: "System metrics collection agent",
		Long:  "Samples CPU, memory, and per-process metrics and delivers snapshots to the metrics backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "backend base URL")
	flags.StringVar(&cfg.Token, "token", cfg.Token, "agent credential sent with each snapshot")
	flags.IntVar(&cfg.IntervalSeconds, "interval", cfg.IntervalSeconds, "seconds between snapshots")
	flags.IntVar(&cfg.TopProcesses, "top", cfg.TopProcesses, "number of top processes to report")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("agent failed: %v", err)
	}
}

func run(cfg *config.AgentConfig) error {
	logger, err := agent.BuildLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.New(cfg, logger)
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
