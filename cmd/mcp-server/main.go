package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/genepilepsy-guide/internal/app"
	"github.com/genepilepsy-guide/internal/config"
)

func main() {
	// stdout carries protocol frames
	log.SetOutput(os.Stderr)

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, app.WithLogger(app.NewLogger(cfg.Logging, os.Stderr)))
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		application.Logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	// Start MCP server
	if err := application.ServeMCP(ctx); err != nil {
		application.Logger.WithError(err).Error("MCP server failed")
		os.Exit(1)
	}

	application.Logger.Info("GenEpilepsyGuide MCP server stopped")
}
