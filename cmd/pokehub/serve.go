package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kevinye7/PokeHub/internal/config"
	"github.com/kevinye7/PokeHub/internal/engine"
	"github.com/kevinye7/PokeHub/internal/handlers"
	"github.com/kevinye7/PokeHub/internal/profile"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func NewServeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

// newEngine builds the backend for cfg and starts an engine over it.
func newEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine.Engine, *engine.Backend, error) {
	backend, err := engine.NewBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	e := engine.NewEngine(actor.NewActorSystem(), engine.Options{
		Store:    backend.Store,
		Identity: backend.Identity,
		Avatars:  backend.Avatars,
		Metrics:  utils.NewMetricsCollector(),
		Logger:   logger,
		ProfileRetry: profile.RetryPolicy{
			MaxAttempts: cfg.ProfileRetry.MaxAttempts,
			Backoff:     profile.ConstantBackoff(cfg.ProfileRetry.Delay),
		},
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	e.Start(ctx)
	return e, backend, nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	e, backend, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close(context.Background()) //nolint:errcheck
	defer e.Close()

	server := handlers.NewServer(e, logger.Named("http"))
	if objects, ok := backend.Avatars.(handlers.ObjectSource); ok {
		server.Objects = objects
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(handlers.RouterConfig{AllowedOrigins: cfg.AllowedOrigins, MetricsEnabled: cfg.Server.MetricsEnabled}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", addr),
			zap.String("store", cfg.StoreType),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
