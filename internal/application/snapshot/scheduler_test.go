package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jyl/universe/internal/domain"
)

type countingExporter struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingExporter) ExportAll(ctx context.Context) ([]domain.SnapshotInfo, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []domain.SnapshotInfo{{ID: "x"}}, c.err
}

func TestSchedulerRunOnce(t *testing.T) {
	exp := &countingExporter{err: errors.New("partial failure")}
	s := NewScheduler(exp)

	n, err := s.RunOnce(context.Background())
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, exp.err)
	assert.Equal(t, int32(1), exp.calls.Load())
}

func TestSchedulerExportsOnStartAndOnTick(t *testing.T) {
	exp := &countingExporter{}
	s := NewScheduler(exp, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerWaitsForInFlightCycle(t *testing.T) {
	exp := &countingExporter{delay: 50 * time.Millisecond}
	s := NewScheduler(exp, WithInterval(5*time.Millisecond), WithOperationTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// The startup cycle runs inline; wait for a ticked one.
	require.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	start := time.Now()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Greater(t, time.Since(start), 10*time.Millisecond, "Start returns after in-flight cycles finish")
}

func TestSchedulerOperationTimeout(t *testing.T) {
	exp := &countingExporter{delay: time.Second}
	s := NewScheduler(exp, WithOperationTimeout(10*time.Millisecond))

	start := time.Now()
	s.runCycle(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
