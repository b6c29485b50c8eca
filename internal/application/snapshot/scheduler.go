package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jyl/universe/internal/domain"
)

// Exporter is the part of Service the scheduler drives.
type Exporter interface {
	ExportAll(ctx context.Context) ([]domain.SnapshotInfo, error)
}

// Scheduler exports every list on a fixed interval.
type Scheduler struct {
	exporter         Exporter
	interval         time.Duration
	operationTimeout time.Duration
	wg               sync.WaitGroup
}

// SchedulerOption is a functional option for configuring Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets how often every list is exported.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithOperationTimeout bounds one export cycle.
func WithOperationTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.operationTimeout = d
	}
}

// NewScheduler creates a scheduler with a daily interval.
func NewScheduler(exporter Exporter, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		exporter:         exporter,
		interval:         24 * time.Hour,
		operationTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start exports once immediately and then on every tick until ctx is
// cancelled. In-flight cycles finish before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "Snapshot scheduler started", "interval", s.interval)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.wg.Go(func() { s.runCycle(ctx) })
		case <-ctx.Done():
			slog.InfoContext(ctx, "Shutdown requested, waiting for in-flight exports...")
			s.wg.Wait()
			slog.InfoContext(ctx, "Snapshot scheduler stopped gracefully")
			return nil
		}
	}
}

// runCycle uses a context detached from shutdown so a started cycle is not
// cut short; the operation timeout still bounds it.
func (s *Scheduler) runCycle(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.operationTimeout)
	defer cancel()

	if _, err := s.RunOnce(opCtx); err != nil {
		slog.ErrorContext(opCtx, "Error exporting snapshots", "error", err)
	}
}

// RunOnce executes a single export cycle.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	infos, err := s.exporter.ExportAll(ctx)
	slog.InfoContext(ctx, "Snapshot cycle finished",
		"exported", len(infos),
		"duration", time.Since(start))
	return len(infos), err
}
