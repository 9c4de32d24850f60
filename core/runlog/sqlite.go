package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS sampling_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        job_id TEXT,
        finished INTEGER,
        record TEXT
    );
    CREATE INDEX IF NOT EXISTS sampling_runs_finished ON sampling_runs (finished);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sampling_runs (job_id, finished, record) VALUES (?, ?, ?)`,
		rec.JobID, rec.Finished.UnixNano(), string(b))
	return err
}

// Query returns records matching q ordered by completion time.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	inner := `SELECT id, finished, record FROM sampling_runs WHERE 1=1`
	if !q.Start.IsZero() {
		inner += ` AND finished >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		inner += ` AND finished <= ?`
		args = append(args, q.End.UnixNano())
	}
	inner += ` ORDER BY finished DESC, id DESC`
	if q.Limit > 0 {
		inner += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	query := `SELECT record FROM (` + inner + `) ORDER BY finished, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
