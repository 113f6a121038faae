package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"RiskArbiter/internal/engine"
	"RiskArbiter/internal/services/audit"
	"RiskArbiter/pkg/cache"
	pkgch "RiskArbiter/pkg/clickhouse"
	"RiskArbiter/pkg/config"
	xhttp "RiskArbiter/pkg/http"
	"RiskArbiter/pkg/logger"
)

// App encapsulates the application lifecycle: the arbitration engine,
// its audit export workers, and the HTTP surface.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	engine     *engine.Engine
	dispatcher *audit.Dispatcher
	handler    xhttp.Handler
	httpServer *xhttp.Server
	chClient   *pkgch.Client
	journal    cache.Service
}

// New creates the application with all dependencies. chClient and
// journal may be nil when the corresponding exports are disabled.
func New(
	cfg *config.Config,
	log *logger.Logger,
	eng *engine.Engine,
	dispatcher *audit.Dispatcher,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	journal cache.Service,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		engine:     eng,
		dispatcher: dispatcher,
		handler:    handler,
		chClient:   chClient,
		journal:    journal,
	}
}

// Engine returns the arbitration engine for embedding callers.
func (a *App) Engine() *engine.Engine { return a.engine }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.dispatcher != nil {
		a.dispatcher.Start(ctx)
		a.log.Info("audit dispatcher started",
			logger.Int("workers", a.cfg.Audit.Workers),
			logger.Int("queue_size", a.cfg.Audit.QueueSize))
	}

	a.httpServer = xhttp.NewServer(a.handler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start", logger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown", logger.Error(err))
	}

	// Drains queued decisions and closes the sinks.
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close", logger.Error(err))
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("journal close", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
