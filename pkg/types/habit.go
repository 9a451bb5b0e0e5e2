package types

import (
	"strings"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
)

// Habit is a tracked habit definition. Habits are created once and never
// mutated; deleting one does not delete its checks, the caller does that.
type Habit struct {
	HabitID  string   `json:"habit_id"` // UUID v7, assigned by the store.
	Name     string   `json:"name"`     // Trimmed, non-empty.
	Created  days.Day `json:"created"`  // First day the habit can be checked.
	Position int64    `json:"position"` // Insertion ordinal; List sorts by it.
}

// ActiveOn reports whether d is on or after the habit's creation day.
func (h Habit) ActiveOn(d days.Day) bool {
	return d >= h.Created
}

// Check is a completion fact: the habit was completed on Day. Its key is
// the pair (HabitID, Day). An absent check means not completed.
type Check struct {
	HabitID string   `json:"habit_id"`
	Day     days.Day `json:"day"`
}

// NormalizeName trims surrounding whitespace and rejects an empty result
// with a *ValidationError.
func NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return trimmed, nil
}
