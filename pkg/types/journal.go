package types

import (
	"context"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
)

// Journal is the process-wide storage handle. Callers attach it to a
// backend, obtain the two stores, and detach when done.
type Journal interface {
	// Attach connects the Journal to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached, and a *StorageUnavailableError if
	// the underlying store cannot be opened.
	Attach(config Config) error

	// Detach flushes pending writes and releases backend resources.
	// Idempotent. After Detach, store operations return ErrDetached.
	Detach() error

	// Habits returns the habit definitions store.
	Habits() (HabitStore, error)

	// Checks returns the completion facts store.
	Checks() (CheckStore, error)
}

// HabitStore persists habit definitions.
type HabitStore interface {
	// Add validates and persists a new habit, returning its generated ID.
	// The name is trimmed; an empty name yields a *ValidationError.
	Add(ctx context.Context, name string, created days.Day) (string, error)

	// Get returns the habit with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Habit, error)

	// List returns all habits in insertion order.
	List(ctx context.Context) ([]Habit, error)

	// Delete removes the habit. Deleting a missing ID is a no-op.
	// Checks for the habit are left in place.
	Delete(ctx context.Context, id string) error
}

// CheckStore persists completion facts keyed by (habit ID, day).
type CheckStore interface {
	// IsChecked reports whether a fact exists for the key.
	IsChecked(ctx context.Context, habitID string, day days.Day) (bool, error)

	// SetChecked inserts the fact when value is true and removes it when
	// false. Each call is atomic and idempotent.
	SetChecked(ctx context.Context, habitID string, day days.Day, value bool) error

	// RangeForHabit returns the checked days of the habit within
	// [from, to] inclusive, in a single query.
	RangeForHabit(ctx context.Context, habitID string, from, to days.Day) (days.Set, error)

	// DeleteAllForHabit removes every fact for the habit.
	DeleteAllForHabit(ctx context.Context, habitID string) error
}
