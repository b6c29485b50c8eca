// Package fs stores snapshots as JSON files in a local directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jyl/universe/internal/application/snapshot"
	"github.com/jyl/universe/internal/domain"
)

var _ snapshot.Sink = (*Sink)(nil)

// Sink is a filesystem implementation of snapshot.Sink.
type Sink struct {
	baseDir string
	mu      sync.RWMutex
}

// NewSink creates the directory if needed and returns a sink over it.
func NewSink(baseDir string) (*Sink, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Sink{baseDir: baseDir}, nil
}

func (s *Sink) path(id string) string {
	return filepath.Join(s.baseDir, snapshot.ObjectName(id))
}

// Put writes a snapshot file. The file appears atomically via rename.
func (s *Sink) Put(ctx context.Context, snap *domain.Snapshot) error {
	if err := snapshot.ValidateID(snap.ID); err != nil {
		return err
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(snap.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("snapshot %s: %w", snap.ID, domain.ErrAlreadyExists)
	}

	tmp, err := os.CreateTemp(s.baseDir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// Get reads a snapshot file.
func (s *Sink) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	if err := snapshot.ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snapshot.Decode(data)
}

// List loads the header of every snapshot file in parallel.
// Unreadable files are skipped.
func (s *Sink) List(ctx context.Context) ([]domain.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var (
		mu    sync.Mutex
		infos = []domain.SnapshotInfo{}
		wg    sync.WaitGroup
	)

	// Bounded to avoid "too many open files" on large directories.
	const maxConcurrency = 20
	semaphore := make(chan struct{}, maxConcurrency)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := snapshot.IDFromObjectName(entry.Name()); !ok {
			continue
		}

		semaphore <- struct{}{}
		wg.Go(func() {
			defer func() { <-semaphore }()

			data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
			if err != nil {
				slog.WarnContext(ctx, "Skipping unreadable snapshot", "file", entry.Name(), "error", err)
				return
			}
			snap, err := snapshot.Decode(data)
			if err != nil {
				slog.WarnContext(ctx, "Skipping corrupt snapshot", "file", entry.Name(), "error", err)
				return
			}
			mu.Lock()
			infos = append(infos, snap.SnapshotInfo)
			mu.Unlock()
		})
	}

	wg.Wait()
	snapshot.SortNewestFirst(infos)
	return infos, nil
}
