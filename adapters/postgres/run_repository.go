// Package postgres persists analysis runs and their estimate tables behind
// ports.RunStore.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"incuba/domain/core"
	"incuba/domain/results"
	"incuba/internal/errors"
	"incuba/ports"
)

// RunRepository implements ports.RunStore for PostgreSQL
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

func dbError(message string, err error) error {
	return &errors.AppError{Code: errors.CodeDatabaseError, Message: message, Cause: err}
}

// SaveRun stores a run, replacing any run with the same ID
func (r *RunRepository) SaveRun(ctx context.Context, run *results.Run) error {
	if run == nil || run.Manifest.RunID == "" {
		return errors.InvalidInput("run requires a manifest with a run ID")
	}

	manifestJSON, err := json.Marshal(run.Manifest)
	if err != nil {
		return errors.Wrap(err, "failed to marshal run manifest")
	}

	updatedAt := run.UpdatedAt.Time()
	if run.UpdatedAt.IsZero() {
		updatedAt = run.Manifest.CreatedAt.Time()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, manifest, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			manifest = EXCLUDED.manifest,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at`,
		run.Manifest.RunID, run.Status, manifestJSON, run.Error,
		run.Manifest.CreatedAt.Time(), updatedAt)
	if err != nil {
		return dbError("failed to save run", err)
	}

	return nil
}

// UpdateRunStatus transitions a run's lifecycle state
func (r *RunRepository) UpdateRunStatus(ctx context.Context, runID core.RunID, status results.RunStatus, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1`,
		runID, status, errMsg)
	if err != nil {
		return dbError("failed to update run status", err)
	}

	if count, _ := res.RowsAffected(); count == 0 {
		return errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, runID core.RunID) (*results.Run, error) {
	var (
		manifestJSON []byte
		status       string
		errMsg       string
		updatedAt    time.Time
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT manifest, status, error, updated_at
		FROM runs
		WHERE id = $1`, runID).
		Scan(&manifestJSON, &status, &errMsg, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("run %s", runID))
		}
		return nil, dbError("failed to get run", err)
	}

	return buildRun(manifestJSON, status, errMsg, updatedAt)
}

// ListRuns returns all stored runs, newest first
func (r *RunRepository) ListRuns(ctx context.Context) ([]*results.Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT manifest, status, error, updated_at
		FROM runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, dbError("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*results.Run
	for rows.Next() {
		var (
			manifestJSON []byte
			status       string
			errMsg       string
			updatedAt    time.Time
		)
		if err := rows.Scan(&manifestJSON, &status, &errMsg, &updatedAt); err != nil {
			return nil, dbError("failed to scan run", err)
		}

		run, err := buildRun(manifestJSON, status, errMsg, updatedAt)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError("failed to iterate runs", err)
	}
	return runs, nil
}

// SaveEstimates stores a run's estimate rows, replacing any existing rows
func (r *RunRepository) SaveEstimates(ctx context.Context, runID core.RunID, records []ports.EstimateRecord) error {
	if err := r.runExists(ctx, runID); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM estimates WHERE run_id = $1`, runID); err != nil {
		return dbError("failed to clear estimates", err)
	}

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO estimates (run_id, family, method, name, kind, point, lo, hi, ordinal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			runID, rec.Family, rec.Method, rec.Name, rec.Kind,
			rec.Point, rec.Lo, rec.Hi, rec.Ordinal)
		if err != nil {
			return dbError("failed to insert estimate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError("failed to commit estimates", err)
	}
	return nil
}

// GetEstimates retrieves a run's estimate rows in insert order
func (r *RunRepository) GetEstimates(ctx context.Context, runID core.RunID) ([]ports.EstimateRecord, error) {
	if err := r.runExists(ctx, runID); err != nil {
		return nil, err
	}

	var records []ports.EstimateRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT run_id, family, method, name, kind, point, lo, hi, ordinal
		FROM estimates
		WHERE run_id = $1
		ORDER BY ordinal`, runID)
	if err != nil {
		return nil, dbError("failed to get estimates", err)
	}
	return records, nil
}

// SaveReport attaches the full fit report to a run
func (r *RunRepository) SaveReport(ctx context.Context, runID core.RunID, report *results.FitReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(err, "failed to marshal fit report")
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET report = $2, updated_at = NOW()
		WHERE id = $1`,
		runID, reportJSON)
	if err != nil {
		return dbError("failed to save report", err)
	}

	if count, _ := res.RowsAffected(); count == 0 {
		return errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	return nil
}

// GetReport retrieves a run's full fit report
func (r *RunRepository) GetReport(ctx context.Context, runID core.RunID) (*results.FitReport, error) {
	var reportJSON []byte
	err := r.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = $1`, runID).
		Scan(&reportJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound(fmt.Sprintf("run %s", runID))
		}
		return nil, dbError("failed to get report", err)
	}
	if reportJSON == nil {
		return nil, errors.NotFound(fmt.Sprintf("report for run %s", runID))
	}

	var report results.FitReport
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal fit report")
	}
	return &report, nil
}

// runExists checks that a run row is present before touching its children.
func (r *RunRepository) runExists(ctx context.Context, runID core.RunID) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = $1`, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	if err != nil {
		return dbError("failed to check run", err)
	}
	return nil
}

// buildRun assembles a run from its scanned columns.
func buildRun(manifestJSON []byte, status, errMsg string, updatedAt time.Time) (*results.Run, error) {
	var manifest results.RunManifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal run manifest")
	}

	return &results.Run{
		Manifest:  manifest,
		Status:    results.RunStatus(status),
		Error:     errMsg,
		UpdatedAt: core.NewTimestamp(updatedAt),
	}, nil
}

// Ensure RunRepository implements ports.RunStore
var _ ports.RunStore = (*RunRepository)(nil)
