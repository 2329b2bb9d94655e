// Package cache persists evaluations in SQLite, keyed by a content hash of the
// dataset and the evaluation parameters.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	cache_key    TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	dataset_hash TEXT NOT NULL,
	params_json  TEXT NOT NULL,
	result_json  TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluations_dataset ON evaluations(dataset_hash);
`

// Entry is one stored evaluation.
type Entry struct {
	Key         string
	RunID       string
	DatasetHash string
	ParamsJSON  string
	ResultJSON  string
	CreatedAt   time.Time
}

// Store is a SQLite-backed evaluation cache.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the entry stored under key. ok is false when there is none.
func (s *Store) Get(ctx context.Context, key string) (e Entry, ok bool, err error) {
	var created int64
	err = s.db.QueryRowContext(ctx, `
		SELECT cache_key, run_id, dataset_hash, params_json, result_json, created_at
		FROM evaluations WHERE cache_key = ?`, key,
	).Scan(&e.Key, &e.RunID, &e.DatasetHash, &e.ParamsJSON, &e.ResultJSON, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("querying evaluation %s: %w", key, err)
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	return e, true, nil
}

// Put stores e, replacing any entry with the same key.
func (s *Store) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (cache_key, run_id, dataset_hash, params_json, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			run_id = excluded.run_id,
			dataset_hash = excluded.dataset_hash,
			params_json = excluded.params_json,
			result_json = excluded.result_json,
			created_at = excluded.created_at`,
		e.Key, e.RunID, e.DatasetHash, e.ParamsJSON, e.ResultJSON, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("storing evaluation %s: %w", e.Key, err)
	}
	return nil
}

// Count returns the number of stored evaluations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting evaluations: %w", err)
	}
	return n, nil
}

// Purge removes every entry computed for the given dataset hash and returns
// how many were deleted.
func (s *Store) Purge(ctx context.Context, datasetHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE dataset_hash = ?`, datasetHash)
	if err != nil {
		return 0, fmt.Errorf("purging dataset %s: %w", datasetHash, err)
	}
	return res.RowsAffected()
}
