package ports

import (
	"context"

	"incuba/domain/core"
	"incuba/domain/dist"
	"incuba/domain/results"
)

// EstimateKind classifies a persisted estimate row
type EstimateKind string

const (
	KindParam    EstimateKind = "param"    // distribution parameter
	KindQuantile EstimateKind = "quantile" // incubation-period quantile
	KindMean     EstimateKind = "mean"     // distribution mean
)

// EstimateRecord is one persisted estimate row of a run
type EstimateRecord struct {
	RunID   core.RunID     `json:"run_id" db:"run_id"`
	Family  dist.Family    `json:"family" db:"family"`
	Method  results.Method `json:"method" db:"method"`
	Name    string         `json:"name" db:"name"`
	Kind    EstimateKind   `json:"kind" db:"kind"`
	Point   float64        `json:"point" db:"point"`
	Lo      float64        `json:"lo" db:"lo"`
	Hi      float64        `json:"hi" db:"hi"`
	Ordinal int            `json:"ordinal" db:"ordinal"`
}

// RunStore persists analysis runs and their estimate rows
type RunStore interface {
	// SaveRun stores a new run record
	SaveRun(ctx context.Context, run *results.Run) error

	// UpdateRunStatus transitions a run's lifecycle state, recording the
	// error message for failed runs
	UpdateRunStatus(ctx context.Context, runID core.RunID, status results.RunStatus, errMsg string) error

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, runID core.RunID) (*results.Run, error)

	// ListRuns returns all stored runs, newest first
	ListRuns(ctx context.Context) ([]*results.Run, error)

	// SaveEstimates stores the estimate rows of a completed run
	SaveEstimates(ctx context.Context, runID core.RunID, records []EstimateRecord) error

	// GetEstimates retrieves a run's estimate rows in insert order
	GetEstimates(ctx context.Context, runID core.RunID) ([]EstimateRecord, error)

	// SaveReport attaches the full fit report to a completed run so renderers
	// can reproduce the original tables without refitting
	SaveReport(ctx context.Context, runID core.RunID, report *results.FitReport) error

	// GetReport retrieves a run's full fit report
	GetReport(ctx context.Context, runID core.RunID) (*results.FitReport, error)
}

// FlattenEstimates turns a fit report into persistable estimate rows, one
// per parameter, quantile, and mean across every fitted family. Ordinals
// preserve report order so retrieval reproduces the table layout.
func FlattenEstimates(runID core.RunID, report *results.FitReport) []EstimateRecord {
	var records []EstimateRecord
	ordinal := 0

	add := func(result results.FitResult, row results.EstimateRow, kind EstimateKind) {
		records = append(records, EstimateRecord{
			RunID:   runID,
			Family:  result.Family,
			Method:  result.Method,
			Name:    row.Name,
			Kind:    kind,
			Point:   row.Point,
			Lo:      row.Lo,
			Hi:      row.Hi,
			Ordinal: ordinal,
		})
		ordinal++
	}

	for _, result := range report.Results {
		for _, row := range result.Params {
			add(result, row, KindParam)
		}
		for _, row := range result.Rows {
			kind := KindQuantile
			if row.Name == "mean" {
				kind = KindMean
			}
			add(result, row, kind)
		}
	}

	return records
}
