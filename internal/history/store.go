// Package history records finished pipeline runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/bgricker/cisim/internal/pipeline"
	"github.com/bgricker/cisim/internal/report"
)

// DefaultLimit is used by List when no positive limit is given.
const DefaultLimit = 20

// timeLayout has a fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded run.
type Entry struct {
	RunID     string           `json:"run_id"`
	Pipeline  string           `json:"pipeline"`
	Dialect   pipeline.Dialect `json:"type"`
	Path      string           `json:"path"`
	Digest    string           `json:"digest"`
	Success   bool             `json:"success"`
	Jobs      int              `json:"jobs"`
	Steps     int              `json:"steps"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"-"`
	Result    json.RawMessage  `json:"result,omitempty"`
}

// NewEntry builds an entry from a finished run and the pipeline source bytes.
func NewEntry(p pipeline.Pipeline, source []byte, result report.PipelineResult) (Entry, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return Entry{}, fmt.Errorf("encode result: %w", err)
	}
	summary := result.Summary()
	return Entry{
		RunID:     result.RunID,
		Pipeline:  result.Name,
		Dialect:   p.Dialect,
		Path:      p.Path,
		Digest:    Digest(source),
		Success:   result.Success,
		Jobs:      summary.TotalJobs,
		Steps:     summary.TotalSteps,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
		Result:    payload,
	}, nil
}

// Digest returns the hex BLAKE3 hash of a pipeline source.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store is a run history database.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(pctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  run_id      TEXT PRIMARY KEY,
  pipeline    TEXT NOT NULL,
  dialect     TEXT NOT NULL,
  path        TEXT NOT NULL,
  digest      TEXT NOT NULL,
  success     INTEGER NOT NULL,
  jobs        INTEGER NOT NULL,
  steps       INTEGER NOT NULL,
  started_at  TEXT NOT NULL,
  duration_ms INTEGER NOT NULL,
  result      JSON NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap history: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished run.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		return errors.New("history entry has no run id")
	}
	result := e.Result
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs(run_id, pipeline, dialect, path, digest, success, jobs, steps, started_at, duration_ms, result)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.RunID,
		e.Pipeline,
		string(e.Dialect),
		e.Path,
		e.Digest,
		boolToInt(e.Success),
		e.Jobs,
		e.Steps,
		e.StartedAt.UTC().Format(timeLayout),
		e.Duration.Milliseconds(),
		string(result),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", e.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, pipeline, dialect, path, digest, success, jobs, steps, started_at, duration_ms, result
FROM runs
ORDER BY started_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			dialect    string
			success    int
			startedAt  string
			durationMS int64
			result     string
		)
		if err := rows.Scan(&e.RunID, &e.Pipeline, &dialect, &e.Path, &e.Digest, &success, &e.Jobs, &e.Steps, &startedAt, &durationMS, &result); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.Dialect = pipeline.Dialect(dialect)
		e.Success = success != 0
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.Result = json.RawMessage(result)
		if t, err := time.Parse(timeLayout, startedAt); err == nil {
			e.StartedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
