package cases

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"incuba/domain/core"
)

func validRecords() []Record {
	return []Record{
		{ID: "c1", ExposureLeft: 0, ExposureRight: 5, OnsetLeft: 5, OnsetRight: 10},
		{ID: "c2", ExposureLeft: 0, ExposureRight: 2, OnsetLeft: 3, OnsetRight: 6},
		{ID: "c3", ExposureLeft: 1, ExposureRight: 1, OnsetLeft: 4, OnsetRight: 4},
	}
}

// TestNewCohortRejectsEmpty tests empty cohort construction
func TestNewCohortRejectsEmpty(t *testing.T) {
	_, err := NewCohort(nil)
	if !errors.Is(err, core.ErrEmptyCohort) {
		t.Errorf("Expected ErrEmptyCohort, got %v", err)
	}
}

// TestNewCohortRejectsMalformed tests that one bad record aborts construction
func TestNewCohortRejectsMalformed(t *testing.T) {
	records := validRecords()
	records = append(records, Record{ID: "bad", ExposureLeft: 7, ExposureRight: 1, OnsetLeft: 0, OnsetRight: 1})

	_, err := NewCohort(records)
	if err == nil {
		t.Fatal("Expected error for malformed record")
	}
	if !core.IsMalformedRecordError(err) {
		t.Errorf("Expected malformed record error, got %v", err)
	}
}

// TestCohortImmutability tests that the cohort owns its storage
func TestCohortImmutability(t *testing.T) {
	records := validRecords()
	cohort, err := NewCohort(records)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	records[0].ExposureLeft = -999
	if cohort.Record(0).ExposureLeft == -999 {
		t.Error("Cohort shares storage with the input slice")
	}

	out := cohort.Records()
	out[1].OnsetRight = -999
	if cohort.Record(1).OnsetRight == -999 {
		t.Error("Records() exposes internal storage")
	}
}

// TestMidpointMoments tests seeding moments on known midpoint delays
func TestMidpointMoments(t *testing.T) {
	// Midpoint delays: 5, 3.5, 3.
	cohort, err := NewCohort(validRecords())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	mean, sd, ok := cohort.MidpointMoments()
	if !ok {
		t.Fatal("Expected usable moments")
	}
	m := (5.0 + 3.5 + 3.0) / 3
	if math.Abs(mean-m) > 1e-12 {
		t.Errorf("Expected mean %v, got %v", m, mean)
	}
	expectedSD := math.Sqrt(((5-m)*(5-m) + (3.5-m)*(3.5-m) + (3-m)*(3-m)) / 2)
	if math.Abs(sd-expectedSD) > 1e-12 {
		t.Errorf("Expected sd %v, got %v", expectedSD, sd)
	}
}

// TestMidpointMomentsDegenerate tests fallback signaling on degenerate cohorts
func TestMidpointMomentsDegenerate(t *testing.T) {
	// All records identical: positive midpoints exist but have zero spread.
	records := []Record{
		{ID: "c1", ExposureLeft: 0, ExposureRight: 2, OnsetLeft: 4, OnsetRight: 6},
		{ID: "c2", ExposureLeft: 0, ExposureRight: 2, OnsetLeft: 4, OnsetRight: 6},
	}
	cohort, err := NewCohort(records)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, ok := cohort.MidpointMoments(); ok {
		t.Error("Expected ok=false for zero-spread midpoints")
	}

	// Single positive midpoint is not enough either.
	one, err := NewCohort(validRecords()[:1])
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, ok := one.MidpointMoments(); ok {
		t.Error("Expected ok=false for a single midpoint")
	}
}

// TestResampleDeterminism tests that equal seeds give equal resamples
func TestResampleDeterminism(t *testing.T) {
	cohort, err := NewCohort(validRecords())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	a := cohort.Resample(rand.New(rand.NewSource(99)))
	b := cohort.Resample(rand.New(rand.NewSource(99)))

	if a.Size() != cohort.Size() || b.Size() != cohort.Size() {
		t.Fatalf("Resample changed cohort size: %d, %d", a.Size(), b.Size())
	}
	for i := 0; i < a.Size(); i++ {
		if a.Record(i) != b.Record(i) {
			t.Errorf("Resamples diverge at index %d: %v vs %v", i, a.Record(i), b.Record(i))
		}
	}
}

// TestCohortHash tests fingerprint determinism and sensitivity
func TestCohortHash(t *testing.T) {
	a, _ := NewCohort(validRecords())
	b, _ := NewCohort(validRecords())
	if a.Hash() != b.Hash() {
		t.Error("Equal cohorts produced different hashes")
	}

	shifted := validRecords()
	shifted[0].OnsetRight += 0.5
	c, _ := NewCohort(shifted)
	if a.Hash() == c.Hash() {
		t.Error("Different cohorts produced the same hash")
	}
}
