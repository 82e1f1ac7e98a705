package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/stepwise/internal/config"
	"github.com/tjfontaine/stepwise/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := os.Getenv("STEPWISE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Output:      os.Stderr,
			SampleRatio: cfg.Telemetry.SampleRatio,
			Pretty:      cfg.Telemetry.Pretty,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	defer a.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reseed users when the config file changes
	if _, err := os.Stat(configPath); err == nil {
		if err := config.Watch(ctx, configPath, logger, func(newCfg *config.Config) {
			if err := a.seedUsers(ctx, newCfg.Users); err != nil {
				logger.Error("failed to reload users", slog.String("error", err.Error()))
			}
		}); err != nil {
			logger.Warn("config watch disabled", slog.String("error", err.Error()))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping server...")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}
