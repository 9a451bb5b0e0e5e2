package sqlite

// Schema DDL for all tables.
const (
	createHabits = `CREATE TABLE habits (
    habit_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created TEXT NOT NULL,
    position INTEGER NOT NULL
);`

	// The composite primary key keeps checks sorted by (habit_id, day),
	// which serves both point lookups and per-habit day ranges.
	createChecks = `CREATE TABLE checks (
    habit_id TEXT NOT NULL,
    day TEXT NOT NULL,
    PRIMARY KEY (habit_id, day)
) WITHOUT ROWID;`
)

// Index DDL for common queries.
const (
	idxHabitsPosition = `CREATE INDEX idx_habits_position ON habits(position);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createHabits,
	createChecks,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxHabitsPosition,
}
