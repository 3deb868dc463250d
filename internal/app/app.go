// Package app assembles the providers and the HTTP read surface into one
// runnable service.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/virtualwinds/winds/internal/controllers/restserver"
	"github.com/virtualwinds/winds/internal/log"
	"github.com/virtualwinds/winds/internal/managers"
	"github.com/virtualwinds/winds/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Initialize the provider manager. Providers bootstrap from storage
	// before the HTTP surface comes up, so the API never serves an
	// inventory that is still being indexed.
	pm, err := managers.NewProviderManager(ctx, &wg, a.configProvider, a.logger)
	if err != nil {
		return err
	}
	if err := pm.StartProviders(); err != nil {
		return err
	}

	// Initialize the REST server
	restServer, err := restserver.NewController(ctx, &wg, a.configProvider, pm.Statuses(), a.logger)
	if err != nil {
		return err
	}
	if err := restServer.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
