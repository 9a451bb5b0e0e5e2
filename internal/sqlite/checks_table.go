// This file implements the checks table accessor for the SQLite backend.
package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

var _ types.CheckStore = (*checksTable)(nil)

// checksTable implements types.CheckStore over the checks table, whose
// primary key (habit_id, day) orders facts by habit and then by day.
type checksTable struct {
	backend *Backend
}

func validateKey(habitID string, day days.Day) error {
	if habitID == "" {
		return types.ErrInvalidID
	}
	if _, err := days.Parse(string(day)); err != nil {
		return err
	}
	return nil
}

// IsChecked reports whether a fact exists for (habitID, day).
func (ct *checksTable) IsChecked(ctx context.Context, habitID string, day days.Day) (bool, error) {
	if err := validateKey(habitID, day); err != nil {
		return false, err
	}

	b := ct.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return false, types.ErrDetached
	}

	var n int
	err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM checks WHERE habit_id = ? AND day = ?",
		habitID, string(day),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s on %s: %w", habitID, day, err)
	}
	return n > 0, nil
}

// SetChecked inserts the fact when value is true and deletes it when
// false. Both run in a single transaction together with the JSONL
// rewrite, so a concurrent reader sees either the old or the new state.
// A call that changes nothing does not touch the JSONL file.
func (ct *checksTable) SetChecked(ctx context.Context, habitID string, day days.Day, value bool) error {
	if err := validateKey(habitID, day); err != nil {
		return err
	}

	b := ct.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	op, stmt := "set check", "INSERT OR IGNORE INTO checks (habit_id, day) VALUES (?, ?)"
	if !value {
		op, stmt = "clear check", "DELETE FROM checks WHERE habit_id = ? AND day = ?"
	}
	if err := ct.mutate(ctx, op, stmt, habitID, string(day)); err != nil {
		return &types.WriteFailedError{Op: op, Err: err}
	}
	return nil
}

// RangeForHabit returns every checked day of habitID in [from, to]
// inclusive using one range scan over the primary key. If from is after
// to the result is empty.
func (ct *checksTable) RangeForHabit(ctx context.Context, habitID string, from, to days.Day) (days.Set, error) {
	if err := validateKey(habitID, from); err != nil {
		return nil, err
	}
	if _, err := days.Parse(string(to)); err != nil {
		return nil, err
	}

	b := ct.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	set := days.NewSet()
	if to.Before(from) {
		return set, nil
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT day FROM checks WHERE habit_id = ? AND day >= ? AND day <= ? ORDER BY day",
		habitID, string(from), string(to),
	)
	if err != nil {
		return nil, fmt.Errorf("querying checks for %s: %w", habitID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning check day: %w", err)
		}
		set.Add(days.Day(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating checks for %s: %w", habitID, err)
	}
	return set, nil
}

// DeleteAllForHabit removes every fact for habitID.
func (ct *checksTable) DeleteAllForHabit(ctx context.Context, habitID string) error {
	if habitID == "" {
		return types.ErrInvalidID
	}

	b := ct.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	const op = "delete checks"
	if err := ct.mutate(ctx, op, "DELETE FROM checks WHERE habit_id = ?", habitID); err != nil {
		return &types.WriteFailedError{Op: op, Err: err}
	}
	return nil
}

// mutate runs stmt in a transaction and persists checks.jsonl when rows
// changed. Under the immediate strategy a failed commit puts the previous
// file back. The caller must hold b.mu.
func (ct *checksTable) mutate(ctx context.Context, op, stmt string, args ...any) error {
	b := ct.backend
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}
	if n == 0 {
		return nil
	}

	restore, err := b.persist(ctx, tx, types.ChecksTable)
	if err != nil {
		return fmt.Errorf("persisting %s: %w", checksJSONL, err)
	}
	if err := tx.Commit(); err != nil {
		restore()
		return fmt.Errorf("committing %s: %w", op, err)
	}
	b.queueWrite(types.ChecksTable, op)
	return nil
}
