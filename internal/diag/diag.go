// ============================================================================
// Bulu Runtime Diagnostics - Periodic Stats Snapshot
// ============================================================================
//
// Package: internal/diag
// File: diag.go
// Purpose: Periodically persist a RuntimeSnapshot to disk via atomic
// temp-file-then-rename writes, for offline inspection (a support bundle,
// a post-mortem after a crash) rather than for crash recovery.
//
// Adapted from the donor repository's internal/snapshot.Manager: the same
// json.MarshalIndent + write-to-.tmp + os.Rename atomic-write sequence,
// and the same "missing file means no snapshot yet, not an error" Load
// semantics, repurposed from job-queue state (types.SnapshotData) to
// scheduler/memory stats (types.RuntimeSnapshot). The donor's schema
// version gate is kept because a stats dump format is just as liable to
// drift across versions as a job-queue snapshot.
//
// ============================================================================

package diag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bulu-lang/bulu-runtime/pkg/types"
)

// schemaVersion is bumped whenever the on-disk envelope's shape changes.
const schemaVersion = 1

var (
	ErrCorrupted           = errors.New("diag: snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("diag: snapshot schema version is incompatible")
)

// envelope wraps a RuntimeSnapshot with a schema version, so future
// format changes can be detected on Load.
type envelope struct {
	SchemaVer int                   `json:"schema_ver"`
	Snapshot  types.RuntimeSnapshot `json:"snapshot"`
}

// Manager persists RuntimeSnapshot values to a single file path via
// atomic temp-file-then-rename writes.
type Manager struct {
	path string
	mu   sync.Mutex
}

// NewManager builds a manager writing to path.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Write atomically persists snap to disk.
func (m *Manager) Write(snap types.RuntimeSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	env := envelope{SchemaVer: schemaVersion, Snapshot: snap}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("diag: marshal snapshot: %w", err)
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("diag: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("diag: rename snapshot: %w", err)
	}
	return nil
}

// Load reads the last persisted snapshot. A missing file is not an
// error: it returns the zero snapshot, since no dump has happened yet.
func (m *Manager) Load() (types.RuntimeSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.RuntimeSnapshot{}, nil
		}
		return types.RuntimeSnapshot{}, fmt.Errorf("diag: read snapshot: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return types.RuntimeSnapshot{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if env.SchemaVer != schemaVersion {
		return types.RuntimeSnapshot{}, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, env.SchemaVer, schemaVersion)
	}
	return env.Snapshot, nil
}

// SnapshotSource supplies the stats a Dumper periodically persists.
type SnapshotSource interface {
	Snapshot(now time.Time) types.RuntimeSnapshot
}

// Dumper periodically calls a SnapshotSource and persists the result via
// a Manager, in the donor's controller-loop style (internal/controller's
// snapshotLoop: a ticker-driven goroutine with a context-based stop).
type Dumper struct {
	source   SnapshotSource
	manager  *Manager
	interval time.Duration
}

// NewDumper builds a dumper that writes source's snapshot to manager's
// path every interval.
func NewDumper(source SnapshotSource, manager *Manager, interval time.Duration) *Dumper {
	return &Dumper{source: source, manager: manager, interval: interval}
}

// Run persists a snapshot every interval until ctx is cancelled.
func (d *Dumper) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			_ = d.manager.Write(d.source.Snapshot(now))
		}
	}
}
