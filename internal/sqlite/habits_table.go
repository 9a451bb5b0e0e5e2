// This file implements the habits table accessor for the SQLite backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// Compile-time interface check: habitsTable must implement HabitStore.
var _ types.HabitStore = (*habitsTable)(nil)

// habitsTable implements types.HabitStore. Each mutation runs in one
// transaction and rewrites habits.jsonl before committing.
type habitsTable struct {
	backend *Backend
}

// Add trims and validates the name, assigns a UUID v7 and the next
// insertion position, and persists the habit.
func (ht *habitsTable) Add(ctx context.Context, name string, created days.Day) (string, error) {
	name, err := types.NormalizeName(name)
	if err != nil {
		return "", err
	}
	if _, err := days.Parse(string(created)); err != nil {
		return "", err
	}

	newID, err := uuid.NewV7()
	if err != nil {
		return "", &types.WriteFailedError{Op: "add habit", Err: fmt.Errorf("generating UUID v7: %w", err)}
	}
	id := newID.String()

	b := ht.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return "", types.ErrDetached
	}

	if err := ht.insert(ctx, id, name, created); err != nil {
		return "", &types.WriteFailedError{Op: "add habit", Err: err}
	}
	return id, nil
}

func (ht *habitsTable) insert(ctx context.Context, id, name string, created days.Day) error {
	b := ht.backend
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var position int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), 0) + 1 FROM habits",
	).Scan(&position); err != nil {
		return fmt.Errorf("allocating position: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO habits (habit_id, name, created, position) VALUES (?, ?, ?, ?)",
		id, name, string(created), position,
	); err != nil {
		return fmt.Errorf("inserting habit: %w", err)
	}

	restore, err := b.persist(ctx, tx, types.HabitsTable)
	if err != nil {
		return fmt.Errorf("persisting %s: %w", habitsJSONL, err)
	}

	if err := tx.Commit(); err != nil {
		restore()
		return fmt.Errorf("committing habit: %w", err)
	}
	b.queueWrite(types.HabitsTable, "add")
	return nil
}

// Get retrieves a habit by ID.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (ht *habitsTable) Get(ctx context.Context, id string) (*types.Habit, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}

	b := ht.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	row := b.db.QueryRowContext(ctx,
		"SELECT habit_id, name, created, position FROM habits WHERE habit_id = ?", id)
	h, err := hydrateHabit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting habit %s: %w", id, err)
	}
	return h, nil
}

// List returns all habits in insertion order. The result is never nil.
func (ht *habitsTable) List(ctx context.Context) ([]types.Habit, error) {
	b := ht.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT habit_id, name, created, position FROM habits ORDER BY position ASC, habit_id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing habits: %w", err)
	}
	defer rows.Close()

	habits := []types.Habit{}
	for rows.Next() {
		h, err := hydrateHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating habit: %w", err)
		}
		habits = append(habits, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating habits: %w", err)
	}
	return habits, nil
}

// Delete removes the habit row. A missing ID is a no-op. Checks are not
// touched; callers remove them with CheckStore.DeleteAllForHabit.
func (ht *habitsTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}

	b := ht.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	if err := ht.delete(ctx, id); err != nil {
		return &types.WriteFailedError{Op: "delete habit", Err: err}
	}
	return nil
}

func (ht *habitsTable) delete(ctx context.Context, id string) error {
	b := ht.backend
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM habits WHERE habit_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting habit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting deleted habits: %w", err)
	}
	if n == 0 {
		return nil
	}

	restore, err := b.persist(ctx, tx, types.HabitsTable)
	if err != nil {
		return fmt.Errorf("persisting %s: %w", habitsJSONL, err)
	}

	if err := tx.Commit(); err != nil {
		restore()
		return fmt.Errorf("committing habit deletion: %w", err)
	}
	b.queueWrite(types.HabitsTable, "delete")
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// hydrateHabit converts a row into a *types.Habit.
func hydrateHabit(row scanner) (*types.Habit, error) {
	var h types.Habit
	var created string
	if err := row.Scan(&h.HabitID, &h.Name, &created, &h.Position); err != nil {
		return nil, err
	}
	day, err := parseDay(created)
	if err != nil {
		return nil, fmt.Errorf("parsing created: %w", err)
	}
	h.Created = day
	return &h, nil
}
