// Package sqlite provides the public API for the SQLite Journal backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/habitgrid/internal/sqlite"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	journal := sqlite.NewBackend(zap.NewNop())
//	err := journal.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".habitgrid-db",
//	})
//	defer journal.Detach()
func NewBackend(logger *zap.Logger) types.Journal {
	return sqlite.NewBackend(sqlite.WithLogger(logger))
}
