// Package results persists analysis runs by key, the way the host framework
// stores brain results: run metadata plus per-sample scores and leak id
// lists, reloadable in a later session.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrRunNotFound is returned when no run exists under the given key.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	key         TEXT PRIMARY KEY,
	method      TEXT NOT NULL,
	config_yaml TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS scores (
	run_key   TEXT NOT NULL REFERENCES runs(key) ON DELETE CASCADE,
	sample_id TEXT NOT NULL,
	value     REAL NOT NULL,
	PRIMARY KEY (run_key, sample_id)
);

CREATE TABLE IF NOT EXISTS leaks (
	run_key   TEXT NOT NULL REFERENCES runs(key) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	sample_id TEXT NOT NULL,
	PRIMARY KEY (run_key, position)
);
`

// Run is a persisted analysis run.
type Run struct {
	Key        string
	Method     string
	ConfigYAML string
	CreatedAt  time.Time
}

// Store is a SQLite-backed run store.
type Store struct {
	db *sql.DB
}

// Open opens or creates a store at the given path, with WAL mode for better
// concurrency.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3",
		"file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveRun inserts or replaces the run record. Replacing a run clears its
// scores and leaks via the foreign-key cascade.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.Key == "" {
		return fmt.Errorf("run key cannot be empty")
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	// DELETE before INSERT rather than upsert so the cascade clears any
	// previous run's scores and leaks.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE key = ?`, run.Key); err != nil {
		return fmt.Errorf("failed to clear previous run %q: %w", run.Key, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (key, method, config_yaml, created_at) VALUES (?, ?, ?, ?)`,
		run.Key, run.Method, run.ConfigYAML, createdAt)
	if err != nil {
		return fmt.Errorf("failed to save run %q: %w", run.Key, err)
	}
	return nil
}

// GetRun loads the run record under the given key.
func (s *Store) GetRun(ctx context.Context, key string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT key, method, config_yaml, created_at FROM runs WHERE key = ?`, key).
		Scan(&run.Key, &run.Method, &run.ConfigYAML, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %q: %w", key, err)
	}
	return run, nil
}

// ListRuns returns all run records, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, method, config_yaml, created_at FROM runs ORDER BY created_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.Key, &run.Method, &run.ConfigYAML, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveScores stores per-sample scores under the run key, replacing any
// previous scores for the same samples.
func (s *Store) SaveScores(ctx context.Context, key string, scores map[string]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO scores (run_key, sample_id, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare scores insert: %w", err)
	}
	defer stmt.Close()

	for sampleID, value := range scores {
		if _, err := stmt.ExecContext(ctx, key, sampleID, value); err != nil {
			return fmt.Errorf("failed to save score for sample %s: %w", sampleID, err)
		}
	}
	return tx.Commit()
}

// GetScores loads the per-sample scores stored under the run key.
func (s *Store) GetScores(ctx context.Context, key string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample_id, value FROM scores WHERE run_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores for run %q: %w", key, err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var sampleID string
		var value float64
		if err := rows.Scan(&sampleID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores[sampleID] = value
	}
	return scores, rows.Err()
}

// SaveLeaks stores an ordered leak id list under the run key, replacing any
// previous list.
func (s *Store) SaveLeaks(ctx context.Context, key string, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaks WHERE run_key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear leaks for run %q: %w", key, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leaks (run_key, position, sample_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare leaks insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, key, i, id); err != nil {
			return fmt.Errorf("failed to save leak %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetLeaks loads the ordered leak id list stored under the run key.
func (s *Store) GetLeaks(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample_id FROM leaks WHERE run_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaks for run %q: %w", key, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan leak: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteRun removes the run and its scores and leaks.
func (s *Store) DeleteRun(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete run %q: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, key)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
