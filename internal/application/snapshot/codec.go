package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/jyl/universe/internal/domain"
)

// Extension is the file suffix of an encoded snapshot.
const Extension = ".json"

// Encode renders a snapshot as indented JSON with a trailing newline.
func Encode(snap *domain.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot %s: %w", snap.ID, err)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded snapshot. JSON numbers in row fields come back
// as int64 when they are integral.
func Decode(data []byte) (*domain.Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var snap domain.Snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	for i := range snap.Rows {
		for k, v := range snap.Rows[i].Fields {
			n, ok := v.(json.Number)
			if !ok {
				continue
			}
			if iv, err := n.Int64(); err == nil {
				snap.Rows[i].Fields[k] = iv
			} else if fv, err := n.Float64(); err == nil {
				snap.Rows[i].Fields[k] = fv
			}
		}
	}
	return &snap, nil
}

// ObjectName returns the file or object name of a snapshot id.
func ObjectName(id string) string {
	return id + Extension
}

// IDFromObjectName extracts a snapshot id from a file or object name,
// reporting false for names that are not snapshots.
func IDFromObjectName(name string) (string, bool) {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	id, ok := strings.CutSuffix(name, Extension)
	if !ok {
		return "", false
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", false
	}
	return id, true
}

// ValidateID reports whether id is a well-formed snapshot id.
func ValidateID(id string) error {
	if _, err := ulid.ParseStrict(id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	return nil
}

// SortNewestFirst orders infos by id descending; ULIDs sort by time.
func SortNewestFirst(infos []domain.SnapshotInfo) {
	slices.SortFunc(infos, func(a, b domain.SnapshotInfo) int {
		return strings.Compare(b.ID, a.ID)
	})
}
