package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"rentalspot/internal/app/schedule"
	"rentalspot/internal/infra/config"
	ginserver "rentalspot/internal/infra/http/gin"
	"rentalspot/internal/infra/obs"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod", "info").Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if app.worker != nil {
		g.Go(func() error { return app.worker.Run(gctx) })
	}
	if app.consumer != nil {
		g.Go(func() error { return app.consumer.Run(gctx, cfg.PaymentsTopics) })
	}
	runner := schedule.NewRunner(logger, schedule.CalendarJobs(app.commands, schedule.Intervals{
		Sweep:       cfg.SweepInterval,
		Generate:    cfg.GenerateInterval,
		Reconcile:   cfg.ReconcileInterval,
		MonthsAhead: cfg.GenerateMonthsAhead,
	})...)
	g.Go(func() error { return runner.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("service stopped")
}
