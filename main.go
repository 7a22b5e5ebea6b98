package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"flight_assoc/internal/config"
	"flight_assoc/internal/runner"
)

func initLogger(cfg *config.Config) {
	var logLevel slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("FLIGHT_ASSOC_CONFIG_PATH", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		// logger isn't initialized yet
		basicLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		basicLogger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	initLogger(cfg)

	// Interrupt cancels the run between phases; nothing is written then
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	r, err := runner.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	rep, err := r.Run(ctx)
	if closeErr := r.Close(); closeErr != nil {
		slog.Error("Error closing database", "error", closeErr)
	}
	if err != nil {
		slog.Error("Association run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Association run complete",
		"run_id", rep.RunID,
		"protocol", rep.Protocol,
		"targets", rep.Targets,
		"saved", rep.Saved,
		"duration", rep.Duration,
	)
}
