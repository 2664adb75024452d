package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Input errors
	ErrMalformedRecord = errors.New("malformed case record")
	ErrEmptyCohort     = errors.New("cohort contains no records")
	ErrUnknownFamily   = errors.New("unknown distribution family")

	// Estimation errors
	ErrOptimizationFailed     = errors.New("optimization failed to converge")
	ErrInsufficientReplicates = errors.New("insufficient successful bootstrap replicates")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewMalformedRecordError(id RecordID, reason string) error {
	return fmt.Errorf("%w: record %s: %s", ErrMalformedRecord, id, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsMalformedRecordError(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

func IsEstimationError(err error) bool {
	return errors.Is(err, ErrOptimizationFailed) ||
		errors.Is(err, ErrInsufficientReplicates)
}
