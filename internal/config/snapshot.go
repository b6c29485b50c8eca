package config

import "fmt"

// Snapshot sinks.
const (
	SinkFS  = "fs"
	SinkGCS = "gcs"
)

// SnapshotConfig selects where collection exports are written.
type SnapshotConfig struct {
	Sink      string `env:"UNIVERSE_SNAPSHOT_SINK" default:"fs"` // fs, gcs
	Dir       string `env:"UNIVERSE_SNAPSHOT_DIR" default:"./universe-snapshots"`
	GCSBucket string `env:"UNIVERSE_SNAPSHOT_GCS_BUCKET"`
	GCSPrefix string `env:"UNIVERSE_SNAPSHOT_GCS_PREFIX" default:"snapshots/"`
}

// Validate checks that the selected sink is configured.
func (c *SnapshotConfig) Validate() error {
	switch c.Sink {
	case SinkFS:
		if c.Dir == "" {
			return fmt.Errorf("UNIVERSE_SNAPSHOT_DIR is required when UNIVERSE_SNAPSHOT_SINK is 'fs'")
		}
	case SinkGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("UNIVERSE_SNAPSHOT_GCS_BUCKET is required when UNIVERSE_SNAPSHOT_SINK is 'gcs'")
		}
	default:
		return fmt.Errorf("unknown UNIVERSE_SNAPSHOT_SINK: %s", c.Sink)
	}
	return nil
}
