package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"direct-messaging/internal/bootstrap"
	"direct-messaging/internal/infra/config"
	ginserver "direct-messaging/internal/infra/http/gin"
	"direct-messaging/internal/infra/obs"
	"direct-messaging/internal/infra/realtime"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := bootstrap.Build(cfg, logger)
	if err != nil {
		logger.Error("messaging core init failed", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}

	registry := realtime.NewRegistry()
	auth := ginserver.AuthMiddleware{Identity: app.Directory, Logger: logger}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks:  app.Checks,
		Timeout: cfg.ScyllaTimeout,
	}, ginserver.Handlers{
		Chat: ginserver.ChatHandler{Service: app.Service, Logger: logger},
		Live: ginserver.LiveHandler{
			Service:        app.Service,
			Registry:       registry,
			AllowedOrigins: cfg.CORSOrigins,
			Logger:         logger,
		},
		AuthMiddleware: auth.Handle,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("closing live sessions",
			"connections", registry.Len(), "subscriptions", app.Store.Subscriptions())
		registry.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})

	runErr := g.Wait()
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		logger.Error("messaging core close failed", "error", err)
	}
	if runErr != nil {
		logger.Error("server failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}
