package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jyl/universe/internal/application/auth"
	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/application/snapshot"
	"github.com/jyl/universe/internal/bootstrap"
	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/config"
	httpserver "github.com/jyl/universe/internal/infrastructure/http"
	"github.com/jyl/universe/internal/infrastructure/http/handler"
	"github.com/jyl/universe/internal/infrastructure/observability"
)

func main() {
	if err := run(); err != nil {
		// slog may not be configured yet if config loading failed
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}

	// Root context, cancelled on SIGTERM/SIGINT.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
		LogLevel:    cfg.Observability.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer func() {
		// Bounded so an unreachable collector can not hang exit.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to shut down telemetry: %v\n", err)
		}
	}()

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load collection catalog: %w", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	sink, err := bootstrap.OpenSink(ctx, cfg.Snapshot)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to open snapshot sink: %w", err)
	}

	authenticator := auth.NewAuthenticator(ctx, store, auth.Config{
		OperationTimeout: cfg.Auth.OperationTimeout,
		UpdateQueueSize:  cfg.Auth.UpdateQueueSize,
		SessionSecret:    []byte(cfg.Auth.SessionSecret),
		IdleTimeout:      cfg.Auth.SessionIdleTimeout,
		CheckInterval:    cfg.Auth.SessionCheckInterval,
	})
	hub := collection.NewHub(ctx, cat, store, collection.Config{OperationTimeout: cfg.Collections.SyncTimeout})
	snapshots := snapshot.NewService(cat, store, sink)
	records := record.NewService(cat, store)

	cleanup := newCleanup(hub, authenticator, sink, store)

	apiRouter, err := handler.NewRouter(hub, authenticator, snapshots, records)
	if err != nil {
		cleanup(context.Background())
		return err
	}

	srvCfg := httpserver.ServerConfig{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout:  cfg.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:     cfg.HTTP.MaxHeaderBytes,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
	}
	if cfg.HTTP.TLSEnabled {
		srvCfg.TLSCertFile = cfg.HTTP.TLSCertFile
		srvCfg.TLSKeyFile = cfg.HTTP.TLSKeyFile
	}
	server := httpserver.NewAPIServer(apiRouter, srvCfg)

	slog.InfoContext(ctx, "starting universe server",
		"driver", cfg.Database.Driver,
		"snapshot_sink", cfg.Snapshot.Sink,
		"collections", len(cat.All()))

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	// The root context is cancelled by now; shutdown gets its own budget.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	cleanup(shutdownCtx)

	slog.Info("universe server stopped")
	return runErr
}
