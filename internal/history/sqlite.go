package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the violation history in a SQLite database in WAL
// mode, so cool-downs survive a restart.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and initializes the
// schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS violations (
		group_id         TEXT NOT NULL,
		user_id          TEXT NOT NULL,
		count            INTEGER NOT NULL DEFAULT 0,
		last_enforced_at TEXT NOT NULL,
		PRIMARY KEY (group_id, user_id)
	);`)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, groupID, userID string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT group_id, user_id, count, last_enforced_at FROM violations
		 WHERE group_id = ? AND user_id = ?`, groupID, userID)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *SQLiteStore) RecordEnforcement(ctx context.Context, groupID, userID string, at time.Time) (Record, error) {
	ts := at.UTC().Format(time.RFC3339Nano)
	err := retryOnContention(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO violations (group_id, user_id, count, last_enforced_at)
			 VALUES (?, ?, 1, ?)
			 ON CONFLICT(group_id, user_id) DO UPDATE SET
			   count = count + 1,
			   last_enforced_at = excluded.last_enforced_at`,
			groupID, userID, ts)
		return err
	})
	if err != nil {
		return Record{}, fmt.Errorf("record enforcement for %s/%s: %w", groupID, userID, err)
	}
	r, _, err := s.Get(ctx, groupID, userID)
	return r, err
}

func (s *SQLiteStore) List(ctx context.Context, groupID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, user_id, count, last_enforced_at FROM violations
		 WHERE group_id = ? ORDER BY user_id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var ts string
	if err := row.Scan(&r.GroupID, &r.UserID, &r.Count, &ts); err != nil {
		return Record{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Record{}, fmt.Errorf("parse last_enforced_at for %s/%s: %w", r.GroupID, r.UserID, err)
	}
	r.LastEnforcedAt = t
	return r, nil
}
