// Package types defines the Journal, HabitStore and CheckStore interfaces,
// the Habit and Check entities, and the standard errors of the habit grid
// storage system.
package types
