package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jyl/universe/internal/application/snapshot"
	"github.com/jyl/universe/internal/bootstrap"
	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/config"
	"github.com/jyl/universe/internal/infrastructure/observability"
)

func main() {
	once := flag.Bool("once", false, "export every list once and exit")
	flag.Parse()

	if err := run(*once); err != nil {
		fmt.Fprintf(os.Stderr, "worker failed: %v\n", err)
		os.Exit(1)
	}
}

func run(once bool) error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return err
	}

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load collection catalog: %w", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	sink, err := bootstrap.OpenSink(ctx, cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to open snapshot sink: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Error("failed to close snapshot sink", "error", err)
		}
	}()

	scheduler := snapshot.NewScheduler(
		snapshot.NewService(cat, store, sink),
		snapshot.WithInterval(cfg.Interval),
		snapshot.WithOperationTimeout(cfg.OperationTimeout),
	)

	if once {
		opCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
		defer cancel()
		_, err := scheduler.RunOnce(opCtx)
		return err
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	slog.Info("worker shut down gracefully")
	return nil
}
