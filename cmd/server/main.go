// ABOUTME: Main entry point for the HTTP question answering service
// ABOUTME: Loads configuration, then serves the API until SIGINT or SIGTERM
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/app"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/config"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting History of Rome RAG service",
		"address", cfg.ServerAddr(),
		"vector_store", cfg.VectorStore,
		"collection", cfg.Collection,
		"model", cfg.OllamaModel,
	)
	return app.Serve(ctx, cfg, app.WithLogger(logger))
}
