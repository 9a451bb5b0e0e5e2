// This file implements JSONL loading on attach.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// loadAllJSONL reads each JSONL file from dataDir and inserts records into
// the corresponding SQLite tables. Loading is transactional: all succeed or
// the database remains empty. Malformed lines and records that fail
// validation or table constraints are skipped. Unknown fields are ignored so
// files written by newer versions still load.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tf := range tableFiles {
		records, err := readJSONL(filepath.Join(dataDir, tf.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", tf.file, err)
		}
		if len(records) == 0 {
			continue
		}
		if err := insertRecords(tx, tf, records); err != nil {
			return fmt.Errorf("loading %s into %s: %w", tf.file, tf.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL records into a SQLite table. Only the
// mapped columns are extracted.
func insertRecords(tx *sql.Tx, tf tableFile, records []json.RawMessage) error {
	placeholders := make([]string, len(tf.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		tf.table,
		strings.Join(tf.columns, ", "),
		strings.Join(placeholders, ", "),
	)

	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", tf.table, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var obj map[string]any
		if err := json.Unmarshal(rec, &obj); err != nil {
			continue
		}
		if tf.valid != nil && !tf.valid(obj) {
			continue
		}

		args := make([]any, len(tf.columns))
		for i, col := range tf.columns {
			args[i] = obj[col]
		}

		// Duplicate keys and constraint violations are skipped; the first
		// record for a key wins.
		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}
	return nil
}
