package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jvreeland/questlog/internal/auditlog"
	"github.com/jvreeland/questlog/internal/config"
	"github.com/jvreeland/questlog/internal/delivery"
	"github.com/jvreeland/questlog/internal/logger"
	"github.com/jvreeland/questlog/internal/poller"
	"github.com/jvreeland/questlog/internal/provider"
	"github.com/jvreeland/questlog/internal/session"
	"github.com/jvreeland/questlog/internal/watcher"
	"github.com/jvreeland/questlog/pkg/executor"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level)
	log.Info(ctx, "========================================")
	log.Info(ctx, "Questlog Session Recap Service")
	log.Info(ctx, "========================================")
	log.Info(ctx, "LLM provider: %s (%s)", cfg.LLM.Provider, cfg.LLM.Model)
	log.Info(ctx, "Configuration loaded successfully")

	// Verify required directories exist
	if err := ensureDirectories(cfg); err != nil {
		log.Error(ctx, "Failed to create directories: %v", err)
		os.Exit(1)
	}

	// Open the audit log
	store, err := auditlog.Open(cfg.Database.Path)
	if err != nil {
		log.Error(ctx, "Failed to open audit log: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize dependencies
	exec := executor.New()
	prov, err := provider.New(cfg, store, log)
	if err != nil {
		log.Error(ctx, "Failed to configure LLM provider: %v", err)
		os.Exit(1)
	}
	poster := delivery.New(cfg.Discord.WebhookURL, cfg.Discord.MessageLimit,
		time.Duration(cfg.Discord.PauseMillis)*time.Millisecond, store, log)
	pipeline := session.New(cfg, log, exec, prov, poster)

	// Watcher gives the poller an early wake-up on new uploads; polling
	// remains authoritative, so a watcher failure is not fatal.
	w, err := watcher.New(cfg.Paths.Upload, log)
	if err != nil {
		log.Error(ctx, "Failed to create watcher: %v", err)
		os.Exit(1)
	}
	defer w.Stop()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn(ctx, "Upload watcher stopped: %v", err)
		}
	}()

	interval := time.Duration(cfg.Poller.IntervalSeconds) * time.Second
	p := poller.New(pipeline, log, interval, w.Notify())

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run(ctx)
	}()

	log.Info(ctx, "========================================")
	log.Info(ctx, "Questlog is ready!")
	log.Info(ctx, "Watching: %s (every %s)", cfg.Paths.Upload, interval)
	log.Info(ctx, "Sessions: %s", cfg.Paths.Sessions)
	log.Info(ctx, "Press Ctrl+C to stop")
	log.Info(ctx, "========================================")

	// Wait for shutdown signal or a fatal pipeline error
	select {
	case <-sigChan:
		log.Info(ctx, "Shutdown signal received")
		cancel()
		if err := <-errChan; err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "Poller error during shutdown: %v", err)
		}
	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "Fatal pipeline error: %v", err)
			cancel()
			os.Exit(1)
		}
	}

	log.Info(ctx, "Questlog stopped")
}

// ensureDirectories creates required directories if they don't exist
func ensureDirectories(cfg *config.Config) error {
	dirs := []string{
		cfg.Paths.Upload,
		cfg.Paths.Sessions,
		cfg.Paths.Archive,
		cfg.Paths.Scripts,
		filepath.Dir(cfg.Database.Path),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
