package diag

// ============================================================================
// Diagnostics Manager Test File
// Purpose: Verify atomic snapshot writes, loading, and the periodic dumper,
// adapted from the donor's snapshot_manager_test.go style.
// ============================================================================

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bulu-lang/bulu-runtime/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	mgr := NewManager(path)

	snap := types.RuntimeSnapshot{
		TakenAt: time.Now(),
		Scheduler: types.SchedulerStats{
			Total: 10, Active: 2, Completed: 8, Workers: 4,
		},
		Memory: types.MemoryStats{StackBytes: 128, HeapUsed: 4096},
	}

	require.NoError(t, mgr.Write(snap))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, snap.Scheduler, loaded.Scheduler)
	assert.Equal(t, snap.Memory, loaded.Memory)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	mgr := NewManager(path)

	snap, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, types.RuntimeSnapshot{}, snap)
}

func TestLoadCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, writeRaw(path, "{not json"))

	mgr := NewManager(path)
	_, err := mgr.Load()
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestLoadIncompatibleSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, writeRaw(path, `{"schema_ver": 999, "snapshot": {}}`))

	mgr := NewManager(path)
	_, err := mgr.Load()
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

type fakeSource struct {
	snap types.RuntimeSnapshot
}

func (f fakeSource) Snapshot(now time.Time) types.RuntimeSnapshot {
	f.snap.TakenAt = now
	return f.snap
}

func TestDumperPersistsOnInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	mgr := NewManager(path)
	source := fakeSource{snap: types.RuntimeSnapshot{Scheduler: types.SchedulerStats{Total: 3}}}
	dumper := NewDumper(source, mgr, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	dumper.Run(ctx)

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), loaded.Scheduler.Total)
}

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
