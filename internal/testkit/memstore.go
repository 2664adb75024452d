package testkit

import (
	"context"
	"fmt"
	"sync"

	"incuba/domain/core"
	"incuba/domain/results"
	"incuba/internal/errors"
	"incuba/ports"
)

// InMemoryRunStore implements ports.RunStore with mutex-guarded maps
type InMemoryRunStore struct {
	runs      map[core.RunID]*results.Run
	estimates map[core.RunID][]ports.EstimateRecord
	reports   map[core.RunID]*results.FitReport
	order     []core.RunID
	mu        sync.RWMutex
}

// NewInMemoryRunStore creates an empty store
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs:      make(map[core.RunID]*results.Run),
		estimates: make(map[core.RunID][]ports.EstimateRecord),
		reports:   make(map[core.RunID]*results.FitReport),
	}
}

// SaveRun stores a run, replacing any run with the same ID
func (s *InMemoryRunStore) SaveRun(ctx context.Context, run *results.Run) error {
	if run == nil || run.Manifest.RunID == "" {
		return errors.InvalidInput("run requires a manifest with a run ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := run.Manifest.RunID
	if _, exists := s.runs[id]; !exists {
		s.order = append(s.order, id)
	}
	copied := *run
	s.runs[id] = &copied
	return nil
}

// UpdateRunStatus transitions a run's lifecycle state
func (s *InMemoryRunStore) UpdateRunStatus(ctx context.Context, runID core.RunID, status results.RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		return errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	run.Status = status
	run.Error = errMsg
	run.UpdatedAt = core.Now()
	return nil
}

// GetRun retrieves a run by ID
func (s *InMemoryRunStore) GetRun(ctx context.Context, runID core.RunID) (*results.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns all runs, newest first
func (s *InMemoryRunStore) ListRuns(ctx context.Context) ([]*results.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*results.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		copied := *s.runs[s.order[i]]
		runs = append(runs, &copied)
	}
	return runs, nil
}

// SaveEstimates stores a run's estimate rows, replacing any existing rows
func (s *InMemoryRunStore) SaveEstimates(ctx context.Context, runID core.RunID, records []ports.EstimateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	copied := make([]ports.EstimateRecord, len(records))
	copy(copied, records)
	s.estimates[runID] = copied
	return nil
}

// GetEstimates retrieves a run's estimate rows in insert order
func (s *InMemoryRunStore) GetEstimates(ctx context.Context, runID core.RunID) ([]ports.EstimateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.runs[runID]; !exists {
		return nil, errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	records := make([]ports.EstimateRecord, len(s.estimates[runID]))
	copy(records, s.estimates[runID])
	return records, nil
}

// SaveReport attaches the full fit report to a run
func (s *InMemoryRunStore) SaveReport(ctx context.Context, runID core.RunID, report *results.FitReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return errors.NotFound(fmt.Sprintf("run %s", runID))
	}
	copied := *report
	s.reports[runID] = &copied
	return nil
}

// GetReport retrieves a run's full fit report
func (s *InMemoryRunStore) GetReport(ctx context.Context, runID core.RunID) (*results.FitReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[runID]
	if !exists {
		return nil, errors.NotFound(fmt.Sprintf("report for run %s", runID))
	}
	copied := *report
	return &copied, nil
}

// Ensure InMemoryRunStore implements ports.RunStore
var _ ports.RunStore = (*InMemoryRunStore)(nil)
