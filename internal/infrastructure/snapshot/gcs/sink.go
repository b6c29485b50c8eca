// Package gcs stores snapshots as JSON objects in a Google Cloud Storage
// bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/jyl/universe/internal/application/snapshot"
	"github.com/jyl/universe/internal/domain"
)

var _ snapshot.Sink = (*Sink)(nil)

// Sink is a GCS implementation of snapshot.Sink. Objects live under an
// optional prefix.
type Sink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewSink creates a sink backed by a new client.
// It assumes the client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewSink(ctx context.Context, bucket, prefix string) (*Sink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return NewSinkWithClient(client, bucket, prefix), nil
}

// NewSinkWithClient creates a sink over an existing client.
func NewSinkWithClient(client *storage.Client, bucket, prefix string) *Sink {
	return &Sink{client: client, bucket: bucket, prefix: prefix}
}

// Close releases the client.
func (s *Sink) Close() error {
	return s.client.Close()
}

func (s *Sink) objectName(id string) string {
	return path.Join(s.prefix, snapshot.ObjectName(id))
}

// Put writes a snapshot object. The write is conditional on the object not
// existing yet.
func (s *Sink) Put(ctx context.Context, snap *domain.Snapshot) error {
	if err := snapshot.ValidateID(snap.ID); err != nil {
		return err
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}

	obj := s.client.Bucket(s.bucket).Object(s.objectName(snap.ID)).
		If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("snapshot %s: %w", snap.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// Get reads a snapshot object.
func (s *Sink) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	if err := snapshot.ValidateID(id); err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(s.bucket).Object(s.objectName(id)).NewReader(ctx)
	if err != nil {
		// Use errors.Is to handle wrapped errors from the GCS client
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return snapshot.Decode(data)
}

// List scans the prefix for snapshot objects and loads them in parallel.
func (s *Sink) List(ctx context.Context) ([]domain.SnapshotInfo, error) {
	query := &storage.Query{}
	if s.prefix != "" {
		query.Prefix = s.prefix
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, query)

	var ids []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		if id, ok := snapshot.IDFromObjectName(attrs.Name); ok {
			ids = append(ids, id)
		}
	}

	var (
		mu    sync.Mutex
		infos = []domain.SnapshotInfo{}
		wg    sync.WaitGroup
	)

	// GCS handles 20+ concurrent requests well, but we stay conservative.
	const maxConcurrency = 20
	semaphore := make(chan struct{}, maxConcurrency)

	for _, id := range ids {
		semaphore <- struct{}{}
		wg.Go(func() {
			defer func() { <-semaphore }()

			snap, err := s.Get(ctx, id)
			if err != nil {
				slog.WarnContext(ctx, "Skipping unreadable snapshot", "snapshot_id", id, "error", err)
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

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
