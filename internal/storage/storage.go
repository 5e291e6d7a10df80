// Package storage defines the persistence collaborator boundary. The
// matching core never imports it: runs go in, calibration stats come
// out, and everything in between belongs to the implementation.
package storage

import (
	"context"

	"github.com/stackscout/scout/internal/types"
)

// RunRecord summarizes one stored pipeline invocation
type RunRecord struct {
	TraceID     string
	ProjectID   string
	Evaluated   int
	Recommended int
	TotalMs     int64
	ErrorCount  int
	StartedAt   string // RFC 3339
}

// Store persists pipeline results and the calibration history that feeds
// future profiles. Implementations must be safe for concurrent use.
type Store interface {
	// SaveRun records the result summary and its recommendations.
	SaveRun(ctx context.Context, result *types.MatchingResult) error

	// RecentRuns returns up to limit run records, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// RecordAdoption records the outcome of one adopted recommendation:
	// the estimated effort midpoint and what it actually took, in days.
	RecordAdoption(ctx context.Context, projectID string, estimatedDays, actualDays float64) error

	// LoadCalibration aggregates the project's adoption history into the
	// stats the stability gate calibrates against.
	LoadCalibration(ctx context.Context, projectID string) (types.CalibrationStats, error)

	// Close releases the underlying resources.
	Close() error
}
