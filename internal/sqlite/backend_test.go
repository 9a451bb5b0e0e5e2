// Tests for SQLite backend lifecycle and sync strategies.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	err := b.Attach(config)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	// Verify database file created
	dbPath := filepath.Join(tmpDir, dbFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("%s not created", dbFileName)
	}

	// Verify JSONL files created empty
	for _, name := range []string{habitsJSONL, checksJSONL} {
		info, err := os.Stat(filepath.Join(tmpDir, name))
		if err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
			continue
		}
		if info.Size() != 0 {
			t.Errorf("expected empty %s, got %d bytes", name, info.Size())
		}
	}

	// Verify double attach fails
	err = b.Attach(config)
	if err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}

	b.Detach()
}

func TestBackend_AttachCreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "data")

	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	if _, err := os.Stat(dataDir); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
	if got := b.DataDir(); got != dataDir {
		t.Errorf("DataDir() = %q, want %q", got, dataDir)
	}
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()

	err := b.Attach(types.Config{Backend: "", DataDir: t.TempDir()})
	if !errors.Is(err, types.ErrBackendEmpty) {
		t.Errorf("expected ErrBackendEmpty, got %v", err)
	}

	err = b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()})
	if !errors.Is(err, types.ErrBackendUnknown) {
		t.Errorf("expected ErrBackendUnknown, got %v", err)
	}

	if _, err := b.Habits(); err != types.ErrDetached {
		t.Errorf("backend should stay detached after failed Attach, got %v", err)
	}
}

func TestBackend_AttachStorageUnavailable(t *testing.T) {
	// A regular file where the data directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBackend()
	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: filepath.Join(blocker, "data")})
	if !errors.Is(err, types.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	var sue *types.StorageUnavailableError
	if !errors.As(err, &sue) {
		t.Fatalf("expected *StorageUnavailableError, got %T", err)
	}
	if sue.Path == "" {
		t.Error("StorageUnavailableError should carry the failing path")
	}
}

func TestBackend_Detach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	habits, _ := b.Habits()
	checks, _ := b.Checks()

	err := b.Detach()
	if err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	// Verify idempotent
	err = b.Detach()
	if err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}

	// Verify operations fail after detach
	if _, err := b.Habits(); err != types.ErrDetached {
		t.Errorf("expected ErrDetached from Habits, got %v", err)
	}
	if _, err := b.Checks(); err != types.ErrDetached {
		t.Errorf("expected ErrDetached from Checks, got %v", err)
	}

	// Stores obtained before Detach refuse to work afterwards.
	ctx := context.Background()
	if _, err := habits.List(ctx); err != types.ErrDetached {
		t.Errorf("expected ErrDetached from stale habits store, got %v", err)
	}
	if err := checks.SetChecked(ctx, "h", "2024-03-10", true); err != types.ErrDetached {
		t.Errorf("expected ErrDetached from stale checks store, got %v", err)
	}
	if err := b.Flush(); err != types.ErrDetached {
		t.Errorf("expected ErrDetached from Flush, got %v", err)
	}
}

func TestBackend_Reattach(t *testing.T) {
	tmpDir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: tmpDir}
	ctx := context.Background()

	b := NewBackend()
	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	habits, _ := b.Habits()
	checks, _ := b.Checks()
	id, err := habits.Add(ctx, "Read", "2024-03-01")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := checks.SetChecked(ctx, id, "2024-03-02", true); err != nil {
		t.Fatalf("SetChecked failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	if err := b.Attach(config); err != nil {
		t.Fatalf("re-Attach failed: %v", err)
	}
	defer b.Detach()

	habits, _ = b.Habits()
	checks, _ = b.Checks()
	list, err := habits.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].HabitID != id || list[0].Name != "Read" {
		t.Fatalf("unexpected habits after reattach: %+v", list)
	}
	ok, err := checks.IsChecked(ctx, id, "2024-03-02")
	if err != nil || !ok {
		t.Errorf("check lost across reattach: ok=%v err=%v", ok, err)
	}
}

func TestSyncStrategy_ImmediateDefault(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}
	b.Attach(config)
	defer b.Detach()

	if b.syncStrategy != types.SyncImmediate {
		t.Errorf("Default sync strategy should be 'immediate', got %q", b.syncStrategy)
	}

	habits, _ := b.Habits()
	if _, err := habits.Add(context.Background(), "Immediate", "2024-03-10"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, habitsJSONL))
	if err != nil {
		t.Fatalf("Read %s failed: %v", habitsJSONL, err)
	}
	if len(data) == 0 {
		t.Errorf("%s should contain data with immediate sync strategy", habitsJSONL)
	}
	if n := b.pendingCount(); n != 0 {
		t.Errorf("immediate strategy should not queue writes, got %d", n)
	}
}

func TestSyncStrategy_OnClose_DefersWrites(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy: types.SyncOnClose,
		},
	}
	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if b.syncStrategy != types.SyncOnClose {
		t.Errorf("Sync strategy should be 'on_close', got %q", b.syncStrategy)
	}

	ctx := context.Background()
	habits, _ := b.Habits()
	checks, _ := b.Checks()
	id, err := habits.Add(ctx, "Deferred", "2024-03-01")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	for _, d := range []string{"2024-03-02", "2024-03-03"} {
		if err := checks.SetChecked(ctx, id, dayOf(d), true); err != nil {
			t.Fatalf("SetChecked failed: %v", err)
		}
	}

	for _, name := range []string{habitsJSONL, checksJSONL} {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			t.Fatalf("Read %s failed: %v", name, err)
		}
		if len(data) > 0 {
			t.Errorf("%s should be empty before Detach with on_close, got %d bytes", name, len(data))
		}
	}

	if b.pendingCount() != 3 {
		t.Errorf("expected 3 pending writes, got %d", b.pendingCount())
	}

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	for _, name := range []string{habitsJSONL, checksJSONL} {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			t.Fatalf("Read %s after Detach failed: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s should contain data after Detach with on_close", name)
		}
	}
}

func TestSyncStrategy_Batch_FlushAtThreshold(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy:  types.SyncBatch,
			BatchSize:     3,
			BatchInterval: 3600,
		},
	}
	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	ctx := context.Background()
	habits, _ := b.Habits()
	for _, name := range []string{"First", "Second"} {
		if _, err := habits.Add(ctx, name, "2024-03-10"); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if got := countLines(t, filepath.Join(tmpDir, habitsJSONL)); got != 0 {
		t.Errorf("expected no lines before threshold, got %d", got)
	}

	// The write that fills the batch must itself be in the flushed file.
	if _, err := habits.Add(ctx, "Third", "2024-03-10"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	records, err := readJSONL(filepath.Join(tmpDir, habitsJSONL))
	if err != nil {
		t.Fatalf("reading %s: %v", habitsJSONL, err)
	}
	var names []string
	for _, raw := range records {
		var rec habitJSON
		if err := json.Unmarshal(raw, &rec); err != nil {
			t.Fatalf("decoding habit record: %v", err)
		}
		names = append(names, rec.Name)
	}
	if want := []string{"First", "Second", "Third"}; !slices.Equal(names, want) {
		t.Errorf("flushed habits = %v, want %v", names, want)
	}
	if b.pendingCount() != 0 {
		t.Errorf("queue should be empty after flush, got %d", b.pendingCount())
	}
}

func TestSyncStrategy_Batch_FlushesAcrossTables(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
		SQLiteConfig: &types.SQLiteConfig{
			SyncStrategy:  types.SyncBatch,
			BatchSize:     2,
			BatchInterval: 3600,
		},
	}
	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	ctx := context.Background()
	habits, _ := b.Habits()
	checks, _ := b.Checks()
	id, err := habits.Add(ctx, "Swim", "2024-03-01")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := checks.SetChecked(ctx, id, "2024-03-02", true); err != nil {
		t.Fatalf("SetChecked failed: %v", err)
	}

	if got := countLines(t, filepath.Join(tmpDir, habitsJSONL)); got != 1 {
		t.Errorf("expected 1 habit line after flush, got %d", got)
	}
	if got := countLines(t, filepath.Join(tmpDir, checksJSONL)); got != 1 {
		t.Errorf("expected 1 check line after flush, got %d", got)
	}

	// A no-op write changes nothing and queues nothing.
	if err := checks.SetChecked(ctx, id, "2024-03-02", true); err != nil {
		t.Fatalf("SetChecked failed: %v", err)
	}
	if b.pendingCount() != 0 {
		t.Errorf("no-op write should not be queued, got %d", b.pendingCount())
	}
}

func TestPersist_RestoreAfterFailedCommit(t *testing.T) {
	b := setupBackend(t)
	habits, _ := stores(t, b)
	ctx := context.Background()
	path := filepath.Join(b.DataDir(), habitsJSONL)

	if _, err := habits.Add(ctx, "Kept", "2024-03-01"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO habits (habit_id, name, created, position) VALUES ('x', 'Lost', '2024-03-02', 2)",
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	restore, err := b.persist(ctx, tx, types.HabitsTable)
	if err != nil {
		t.Fatalf("persist failed: %v", err)
	}
	if got := countLines(t, path); got != 2 {
		t.Fatalf("expected the uncommitted row in the file, got %d lines", got)
	}

	// Stand in for a commit that failed.
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	restore()

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Errorf("file not restored:\nbefore %q\nafter  %q", before, after)
	}
}

func TestBackend_FlushWritesPending(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      tmpDir,
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: types.SyncOnClose},
	}
	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	habits, _ := b.Habits()
	if _, err := habits.Add(context.Background(), "Flush me", "2024-03-10"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := countLines(t, filepath.Join(tmpDir, habitsJSONL)); got != 1 {
		t.Errorf("expected 1 line after Flush, got %d", got)
	}
}
