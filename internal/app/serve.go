// ABOUTME: HTTP service lifecycle: bind the listener, bootstrap collaborators in the background
// ABOUTME: Shuts down on context cancellation or a failed bootstrap
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/api"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/config"
	"github.com/MichaelShoemaker/history-of-rome-podcast-llm/internal/logging"
)

// Serve runs the HTTP API until ctx is cancelled. The listener is bound
// immediately; collaborators are connected in the background and requests
// get 503 until they are ready. A failed bootstrap stops the server and is
// returned.
func Serve(ctx context.Context, cfg *config.Config, opts ...Option) error {
	o := buildOptions(opts)
	logger := logging.NewComponentLogger(o.logger, "server")

	server := api.NewServer(cfg.ServerAddr(), o.logger)
	listener, err := server.Listen()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var services *Services
	bootstrapped := make(chan struct{})
	go func() {
		defer close(bootstrapped)
		s, err := Connect(ctx, cfg, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to initialize RAG service", logging.Error(err))
			cancel(err)
			return
		}
		services = s
		server.SetReady(s.RAG)
	}()

	serveErr := server.Serve(ctx, listener)
	cause := context.Cause(ctx)
	cancel(nil)
	<-bootstrapped

	if services != nil {
		if err := services.Close(); err != nil {
			logger.Warn("closing services", logging.Error(err))
		}
	}

	if cause != nil && !errors.Is(cause, context.Canceled) {
		return fmt.Errorf("bootstrap: %w", cause)
	}
	if serveErr != nil {
		return serveErr
	}
	logger.Info("server stopped", slog.String("address", listener.Addr().String()))
	return nil
}
