// Package restserver exposes the forecast inventories over HTTP: a
// readiness probe plus the v1 and v2 winds endpoints consumed by
// routing applications.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/virtualwinds/winds/internal/log"
	"github.com/virtualwinds/winds/internal/status"
	"github.com/virtualwinds/winds/pkg/config"
)

// Controller represents the REST server controller.
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	Server   http.Server
	Statuses map[string]*status.Status
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller serving the given
// provider inventories.
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, statuses map[string]*status.Status, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:      ctx,
		wg:       wg,
		Statuses: statuses,
		logger:   logger,
	}

	listen, err := configProvider.GetListen()
	if err != nil {
		return nil, fmt.Errorf("error loading listen address: %w", err)
	}

	ctrl.handlers = NewHandlers(ctrl)

	router := ctrl.setupRouter()
	ctrl.Server.Addr = listen
	ctrl.Server.Handler = router

	return ctrl, nil
}

// StartController starts the REST server.
func (c *Controller) StartController() error {
	log.Infof("Starting REST server controller on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints.
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz/-/ready", c.handlers.GetReady).Methods(http.MethodGet)

	// v2 is the envelope current clients consume; v1 is kept for
	// routers that predate it.
	router.HandleFunc("/winds/api/v2/winds", c.handlers.GetWinds).Methods(http.MethodGet)
	router.HandleFunc("/winds/api/v1/winds", c.handlers.GetWindsV1).Methods(http.MethodGet)

	return router
}
