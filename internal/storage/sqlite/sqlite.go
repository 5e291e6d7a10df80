// Package sqlite is the SQLite-backed reference implementation of the
// storage collaborator, used by the CLI shell. WAL mode keeps concurrent
// readers cheap.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/stackscout/scout/internal/storage"
	"github.com/stackscout/scout/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	trace_id     TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	evaluated    INTEGER NOT NULL,
	recommended  INTEGER NOT NULL,
	total_ms     INTEGER NOT NULL,
	error_count  INTEGER NOT NULL,
	started_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	id          TEXT PRIMARY KEY,
	trace_id    TEXT NOT NULL REFERENCES runs(trace_id),
	project_id  TEXT NOT NULL,
	item_id     TEXT NOT NULL,
	subject     TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	action      TEXT NOT NULL,
	priority    INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS adoptions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id     TEXT NOT NULL,
	estimated_days REAL NOT NULL,
	actual_days    REAL NOT NULL,
	recorded_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_adoptions_project ON adoptions(project_id);
`

// SQLiteStore implements storage.Store on a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements the collaborator interface
var _ storage.Store = (*SQLiteStore)(nil)

// New opens (creating if needed) the database at path
func New(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRun stores the run summary and its recommendations in one transaction
func (s *SQLiteStore) SaveRun(ctx context.Context, result *types.MatchingResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (trace_id, project_id, evaluated, recommended, total_ms, error_count, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.TraceID, result.ProjectID, result.Summary.Evaluated, result.Summary.Recommended,
		result.TotalMs, len(result.Errors), result.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", result.TraceID, err)
	}

	for i := range result.Recommendations {
		rec := &result.Recommendations[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal recommendation %s: %w", rec.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO recommendations (id, trace_id, project_id, item_id, subject, verdict, action, priority, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.TraceID, rec.ProjectID, rec.ItemID, rec.Subject.Name,
			string(rec.Assessment.Verdict), string(rec.Classification.Action),
			rec.Classification.Priority, string(payload), rec.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert recommendation %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, project_id, evaluated, recommended, total_ms, error_count, started_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []storage.RunRecord
	for rows.Next() {
		var r storage.RunRecord
		if err := rows.Scan(&r.TraceID, &r.ProjectID, &r.Evaluated, &r.Recommended, &r.TotalMs, &r.ErrorCount, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecordAdoption stores one estimated-vs-actual effort observation
func (s *SQLiteStore) RecordAdoption(ctx context.Context, projectID string, estimatedDays, actualDays float64) error {
	if estimatedDays <= 0 || actualDays <= 0 {
		return fmt.Errorf("estimated and actual days must be positive (got %.1f, %.1f)", estimatedDays, actualDays)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO adoptions (project_id, estimated_days, actual_days, recorded_at) VALUES (?, ?, ?, ?)`,
		projectID, estimatedDays, actualDays, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert adoption: %w", err)
	}
	return nil
}

// LoadCalibration aggregates adoption history into calibration stats.
// The bias label uses a 10% dead band around perfect accuracy.
func (s *SQLiteStore) LoadCalibration(ctx context.Context, projectID string) (types.CalibrationStats, error) {
	var stats types.CalibrationStats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(actual_days / estimated_days), 0)
		 FROM adoptions WHERE project_id = ?`, projectID)
	if err := row.Scan(&stats.Adoptions, &stats.AccuracyRatio); err != nil {
		return stats, fmt.Errorf("aggregate adoptions for %s: %w", projectID, err)
	}
	switch {
	case stats.Adoptions == 0:
		stats.Bias = ""
	case stats.AccuracyRatio > 1.1:
		stats.Bias = "underestimate"
	case stats.AccuracyRatio < 0.9:
		stats.Bias = "overestimate"
	default:
		stats.Bias = "balanced"
	}
	return stats, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
