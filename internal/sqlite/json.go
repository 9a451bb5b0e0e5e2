// JSON record structures for SQLite backend persistence.
// These structures define the JSONL record format for data files.
package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// JSONL file names, one per table.
const (
	habitsJSONL = "habits.jsonl"
	checksJSONL = "checks.jsonl"
)

// habitJSON represents a habit in habits.jsonl. Completion facts in
// checks.jsonl are written as types.Check.
type habitJSON struct {
	HabitID  string `json:"habit_id"`
	Name     string `json:"name"`
	Created  string `json:"created"`
	Position int64  `json:"position"`
}

// tableFile describes how one table is written to and read from JSONL.
type tableFile struct {
	file    string
	table   string
	columns []string
	orderBy string
	// valid rejects records that cannot be loaded, beyond what the
	// table constraints already catch.
	valid func(rec map[string]any) bool
}

// tableFiles maps tables to JSONL files in load order.
var tableFiles = []tableFile{
	{
		file:    habitsJSONL,
		table:   types.HabitsTable,
		columns: []string{"habit_id", "name", "created", "position"},
		orderBy: "position ASC, habit_id ASC",
		valid:   validHabitRecord,
	},
	{
		file:    checksJSONL,
		table:   types.ChecksTable,
		columns: []string{"habit_id", "day"},
		orderBy: "habit_id ASC, day ASC",
		valid:   validCheckRecord,
	},
}

// lookupTableFile returns the JSONL mapping for tableName.
func lookupTableFile(tableName string) (tableFile, error) {
	for _, tf := range tableFiles {
		if tf.table == tableName {
			return tf, nil
		}
	}
	return tableFile{}, fmt.Errorf("%w: %s", types.ErrTableNotFound, tableName)
}

func validHabitRecord(rec map[string]any) bool {
	id, _ := rec["habit_id"].(string)
	name, _ := rec["name"].(string)
	created, _ := rec["created"].(string)
	if _, ok := rec["position"].(float64); !ok || id == "" || name == "" {
		return false
	}
	return days.Day(created).Valid()
}

func validCheckRecord(rec map[string]any) bool {
	id, _ := rec["habit_id"].(string)
	day, _ := rec["day"].(string)
	return id != "" && days.Day(day).Valid()
}
