// Package sqlite implements the SQLite storage backend for habitgrid.
//
// SQLite is the query engine; the JSONL files in DataDir are the source of
// truth. Attach rebuilds a fresh database from the JSONL files, and every
// committed mutation rewrites the affected file according to the configured
// sync strategy.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// dbFileName is the SQLite file created inside DataDir.
const dbFileName = "habitgrid.db"

// Backend implements types.Journal using SQLite as the query engine
// and JSONL files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	logger   *zap.Logger

	habits *habitsTable
	checks *checksTable

	// Sync strategy state.
	syncStrategy  string         // effective sync strategy: immediate, on_close, batch
	batchSize     int            // number of writes before batch flush
	batchInterval time.Duration  // time between batch flushes
	pendingWrites []pendingWrite // queue of writes pending JSONL persist
	batchTimer    *time.Timer    // timer for interval-based batch flush
	batchMu       sync.Mutex     // protects pendingWrites and batchTimer
}

// pendingWrite represents a deferred JSONL write operation.
// Used by on_close and batch sync strategies.
type pendingWrite struct {
	tableName string // habits or checks
	operation string // add, delete, set, clear
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for flush and persistence diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ types.Journal = (*Backend)(nil)

// Habits returns the habits store.
// Returns ErrDetached if the backend is not attached.
func (b *Backend) Habits() (types.HabitStore, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	return b.habits, nil
}

// Checks returns the checks store.
// Returns ErrDetached if the backend is not attached.
func (b *Backend) Checks() (types.CheckStore, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	return b.checks, nil
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, builds a fresh SQLite schema,
// and loads the JSONL files into it.
// Returns ErrAlreadyAttached if already attached. Failures to open the
// store are reported as *types.StorageUnavailableError.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	config.DataDir = dataDir

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return &types.StorageUnavailableError{Path: dataDir, Err: err}
	}

	// The database is a cache of the JSONL files, so it is rebuilt on
	// every attach.
	dbPath := filepath.Join(dataDir, dbFileName)
	for _, stale := range []string{dbPath, dbPath + "-journal"} {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return &types.StorageUnavailableError{Path: stale, Err: err}
		}
	}

	db, err := openDB(dbPath)
	if err != nil {
		return &types.StorageUnavailableError{Path: dbPath, Err: err}
	}

	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return &types.StorageUnavailableError{Path: dataDir, Err: err}
	}

	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return &types.StorageUnavailableError{Path: dataDir, Err: fmt.Errorf("load JSONL: %w", err)}
	}

	b.db = db
	b.config = config

	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = nil

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	b.habits = &habitsTable{backend: b}
	b.checks = &checksTable{backend: b}
	b.attached = true

	b.logger.Debug("journal attached",
		zap.String("data_dir", dataDir),
		zap.String("sync_strategy", b.syncStrategy))
	return nil
}

// openDB opens the SQLite file, applies connection pragmas and the schema.
func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection avoids "database is locked" between our own
	// readers and writers; the backend mutex already serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating index: %w", err)
		}
	}
	return db, nil
}

// Detach releases all resources held by the backend.
// For on_close and batch sync strategies, flushes all pending writes before
// closing. After Detach, all operations return ErrDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushPendingWritesLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.habits = nil
	b.checks = nil

	b.logger.Debug("journal detached", zap.String("data_dir", b.config.DataDir))
	return nil
}

// Flush writes any queued JSONL updates now. It is a no-op under the
// immediate strategy.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrDetached
	}
	return b.flushPendingWritesLocked()
}

// DataDir returns the directory holding the JSONL files.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}

// Sync strategy methods

// shouldPersistImmediately returns true if JSONL writes should happen
// inside the mutating transaction.
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// persist rewrites the JSONL file for tableName through q (the open
// transaction) under the immediate strategy, so a failed file write rolls
// the mutation back. The returned restore puts the previous file contents
// back and must be called if the commit then fails. Deferred strategies
// write nothing here; the table calls queueWrite once the commit succeeds.
// The caller must hold b.mu.
func (b *Backend) persist(ctx context.Context, q querier, tableName string) (func(), error) {
	if !b.shouldPersistImmediately() {
		return func() {}, nil
	}

	tf, err := lookupTableFile(tableName)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(b.config.DataDir, tf.file)
	prev, err := readJSONL(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := persistTableJSONL(ctx, q, b.config.DataDir, tableName); err != nil {
		return nil, err
	}
	return func() {
		if err := writeJSONL(path, prev); err != nil {
			b.logger.Error("restoring JSONL after failed commit",
				zap.String("file", tf.file), zap.Error(err))
		}
	}, nil
}

// queueWrite records a committed mutation for the on_close and batch
// strategies and flushes once a batch is full. It is a no-op under the
// immediate strategy. The caller must hold b.mu and must not have a
// transaction open, since the flush reads through b.db.
func (b *Backend) queueWrite(tableName, operation string) {
	if b.shouldPersistImmediately() {
		return
	}

	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	b.pendingWrites = append(b.pendingWrites, pendingWrite{
		tableName: tableName,
		operation: operation,
	})

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && len(b.pendingWrites) >= b.batchSize {
		if err := b.flushPendingWritesBatchLocked(); err != nil {
			b.logger.Error("batch flush failed", zap.Error(err))
		}
	}
}

// flushPendingWritesLocked flushes all pending writes to JSONL files.
// The caller must hold b.mu write lock.
func (b *Backend) flushPendingWritesLocked() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked rewrites each table with pending writes
// once. The queue is only cleared when every file was written, so a
// failed flush is retried on the next one.
// The caller must hold b.batchMu lock.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}

	written := make(map[string]bool, len(types.StandardTableNames))
	for _, pw := range b.pendingWrites {
		if written[pw.tableName] {
			continue
		}
		if err := persistTableJSONL(context.Background(), b.db, b.config.DataDir, pw.tableName); err != nil {
			return fmt.Errorf("flush %s %s: %w", pw.tableName, pw.operation, err)
		}
		written[pw.tableName] = true
	}

	b.logger.Debug("flushed pending writes", zap.Int("writes", len(b.pendingWrites)))
	b.pendingWrites = nil
	return nil
}

// pendingCount returns the number of queued writes.
func (b *Backend) pendingCount() int {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()
	return len(b.pendingWrites)
}

// startBatchTimer starts the batch interval timer for periodic flushes.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}

		if err := b.flushPendingWritesLocked(); err != nil {
			b.logger.Error("interval flush failed", zap.Error(err))
		}

		b.batchMu.Lock()
		if b.batchTimer != nil && b.attached {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}
