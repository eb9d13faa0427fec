// Package server owns the application lifecycle: restore, ingestion
// start, periodic flush and alert evaluation, and graceful shutdown.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"PairPulse/internal/usecase"
	pkgch "PairPulse/pkg/clickhouse"
	"PairPulse/pkg/config"
	xhttp "PairPulse/pkg/http"
	pkgkafka "PairPulse/pkg/kafka"
	applogger "PairPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	engine     *usecase.Engine
	collector  *usecase.TickCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Engine,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		engine:    engine,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Replay persisted ticks before accepting live traffic.
	if a.cfg.ClickHouse.Enabled {
		restoreCtx, rcancel := context.WithTimeout(ctx, 2*time.Minute)
		if err := a.engine.Restore(restoreCtx, a.cfg.Binance.Instruments, a.cfg.Engine.RestoreRetention); err != nil {
			a.log.Warn("restore failed, starting cold", applogger.Error(err))
		}
		rcancel()
	}

	a.engine.Start(ctx)

	a.httpServer = xhttp.NewServer(&healthHandler{app: a},
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start collector
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("collector error", applogger.Error(err))
		}
	}()
	a.log.Info("collector started", applogger.Strings("instruments", a.cfg.Binance.Instruments))

	// Periodic bar flush keeps idle series closing on time.
	go a.runTicker(ctx, a.cfg.Engine.FlushInterval, func(now time.Time) {
		a.engine.FlushBars(now)
	})

	// Alert evaluation cadence.
	go a.runTicker(ctx, a.cfg.Alerts.EvalInterval, func(time.Time) {
		a.engine.EvaluateAlerts(ctx)
	})

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

func (a *App) runTicker(ctx context.Context, interval time.Duration, fn func(time.Time)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now.UTC())
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Processor closes storage; publisher is closed by the engine's owner
	// via DI cleanup.
	a.collector.Processor().Close()

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

// healthHandler reports process liveness plus stream and storage state.
type healthHandler struct {
	app *App
}

func (h *healthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		body := map[string]interface{}{
			"status":           "ok",
			"stream_connected": h.app.collector.IsConnected(),
		}
		code := http.StatusOK
		if h.app.chClient != nil {
			if err := h.app.chClient.Health(c.Request().Context()); err != nil {
				body["clickhouse"] = err.Error()
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			} else {
				body["clickhouse"] = "ok"
			}
		}
		return c.JSON(code, body)
	})
}
