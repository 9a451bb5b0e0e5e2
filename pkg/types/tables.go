package types

// Standard collection names. Each maps to one SQLite table and one JSONL file.
const (
	HabitsTable = "habits"
	ChecksTable = "checks"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	HabitsTable,
	ChecksTable,
}
