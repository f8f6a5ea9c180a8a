package errlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// SQLiteStore persists records across restarts, trimmed to a fixed capacity.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
}

// OpenSQLite opens (and if needed creates) the error log database at path.
func OpenSQLite(path string, capacity int) (*SQLiteStore, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, capacity: capacity}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS error_records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			ts INTEGER NOT NULL,
			level TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			fields TEXT,
			stack TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_error_records_ts ON error_records(ts)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, r Record) error {
	var fields []byte
	if len(r.Fields) > 0 {
		var err error
		if fields, err = json.Marshal(r.Fields); err != nil {
			return fmt.Errorf("encode fields: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO error_records (id, ts, level, category, message, fields, stack) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Time.UnixNano(), r.Level, r.Category, r.Message, string(fields), r.Stack,
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM error_records WHERE seq <= (SELECT seq FROM error_records ORDER BY seq DESC LIMIT 1 OFFSET ?)`,
		s.capacity,
	); err != nil {
		return fmt.Errorf("trim records: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = s.capacity
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, level, category, message, fields, stack FROM error_records ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r      Record
			ts     int64
			fields sql.NullString
			stack  sql.NullString
		)
		if err := rows.Scan(&r.ID, &ts, &r.Level, &r.Category, &r.Message, &fields, &stack); err != nil {
			return nil, err
		}
		r.Time = time.Unix(0, ts).UTC()
		r.Stack = stack.String
		if fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &r.Fields); err != nil {
				return nil, fmt.Errorf("decode fields of %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) EvictBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM error_records WHERE ts < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
