// This file provides JSONL read/write helpers with atomic persistence.
package sqlite

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// parseDay validates a stored day value.
func parseDay(s string) (days.Day, error) {
	return days.Parse(s)
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// initJSONLFiles creates an empty JSONL file for every table that does not
// have one yet.
func initJSONLFiles(dataDir string) error {
	for _, tf := range tableFiles {
		path := filepath.Join(dataDir, tf.file)
		_, err := os.Stat(path)
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", tf.file, err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", tf.file, err)
		}
	}
	return nil
}

// persistTableJSONL reads every row of tableName through q and rewrites the
// table's JSONL file atomically.
func persistTableJSONL(ctx context.Context, q querier, dataDir, tableName string) error {
	tf, err := lookupTableFile(tableName)
	if err != nil {
		return err
	}

	var records []json.RawMessage
	switch tableName {
	case types.HabitsTable:
		records, err = habitRecords(ctx, q, tf)
	case types.ChecksTable:
		records, err = checkRecords(ctx, q, tf)
	}
	if err != nil {
		return err
	}

	return writeJSONL(filepath.Join(dataDir, tf.file), records)
}

func habitRecords(ctx context.Context, q querier, tf tableFile) ([]json.RawMessage, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT habit_id, name, created, position FROM habits ORDER BY "+tf.orderBy)
	if err != nil {
		return nil, fmt.Errorf("querying habits for JSONL: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var rec habitJSON
		if err := rows.Scan(&rec.HabitID, &rec.Name, &rec.Created, &rec.Position); err != nil {
			return nil, fmt.Errorf("scanning habit for JSONL: %w", err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshaling habit for JSONL: %w", err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating habits for JSONL: %w", err)
	}
	return records, nil
}

func checkRecords(ctx context.Context, q querier, tf tableFile) ([]json.RawMessage, error) {
	rows, err := q.QueryContext(ctx, "SELECT habit_id, day FROM checks ORDER BY "+tf.orderBy)
	if err != nil {
		return nil, fmt.Errorf("querying checks for JSONL: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var rec types.Check
		if err := rows.Scan(&rec.HabitID, &rec.Day); err != nil {
			return nil, fmt.Errorf("scanning check for JSONL: %w", err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshaling check for JSONL: %w", err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating checks for JSONL: %w", err)
	}
	return records, nil
}
