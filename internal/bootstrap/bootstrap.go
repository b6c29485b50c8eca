// Package bootstrap opens the configured row store and snapshot sink for
// the server, worker and admin binaries.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/jyl/universe/internal/application/auth"
	"github.com/jyl/universe/internal/application/collection"
	"github.com/jyl/universe/internal/application/record"
	"github.com/jyl/universe/internal/application/snapshot"
	"github.com/jyl/universe/internal/config"
	"github.com/jyl/universe/internal/infrastructure/persistence/memory"
	"github.com/jyl/universe/internal/infrastructure/persistence/postgres"
	"github.com/jyl/universe/internal/infrastructure/persistence/sqlite"
	"github.com/jyl/universe/internal/infrastructure/snapshot/fs"
	"github.com/jyl/universe/internal/infrastructure/snapshot/gcs"
)

// Store is a row store that also keeps keyed records, API keys and
// sessions.
type Store interface {
	collection.StoreProvider
	record.StoreProvider
	auth.Repository
	io.Closer
}

// SnapshotSink is a snapshot sink that may hold a client to release.
type SnapshotSink interface {
	snapshot.Sink
	io.Closer
}

// OpenStore connects to the configured database. Migrations run first
// when AutoMigrate is set; the memory driver needs none.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			AutoMigrate:     cfg.AutoMigrate,
		})
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "storage initialized", "driver", cfg.Driver, "dsn", MaskDSN(cfg.DSN))
		return store, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		slog.InfoContext(ctx, "storage initialized", "driver", cfg.Driver, "dsn", cfg.DSN)
		return store, nil

	case config.DriverMemory:
		slog.WarnContext(ctx, "storage initialized in memory; data is lost on exit")
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Migrate applies pending migrations of the configured database.
func Migrate(ctx context.Context, cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Migrate(ctx, cfg.DSN)
	case config.DriverSQLite:
		return withSQLite(ctx, cfg.DSN, func(s *sqlite.Store) error { return s.Migrate(ctx) })
	}
	return fmt.Errorf("driver %q has no migrations", cfg.Driver)
}

// MigrationStatus writes the applied state of every migration to w.
func MigrationStatus(ctx context.Context, cfg config.DatabaseConfig, w io.Writer) error {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.MigrationStatus(ctx, cfg.DSN, w)
	case config.DriverSQLite:
		return withSQLite(ctx, cfg.DSN, func(s *sqlite.Store) error { return s.MigrationStatus(ctx, w) })
	}
	return fmt.Errorf("driver %q has no migrations", cfg.Driver)
}

func withSQLite(ctx context.Context, dsn string, fn func(*sqlite.Store) error) error {
	store, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close sqlite store", "error", err)
		}
	}()
	return fn(store)
}

type nopCloser struct{ snapshot.Sink }

func (nopCloser) Close() error { return nil }

// OpenSink opens the configured snapshot sink.
func OpenSink(ctx context.Context, cfg config.SnapshotConfig) (SnapshotSink, error) {
	switch cfg.Sink {
	case config.SinkFS:
		sink, err := fs.NewSink(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return nopCloser{sink}, nil
	case config.SinkGCS:
		return gcs.NewSink(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	}
	return nil, fmt.Errorf("unknown snapshot sink %q", cfg.Sink)
}

// MaskDSN hides the password of a connection URL for logging.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
