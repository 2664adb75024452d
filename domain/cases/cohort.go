package cases

import (
	"math"
	"math/rand"

	"incuba/domain/core"
)

// Cohort is an immutable collection of validated case records. Construction
// validates every record; all downstream components may assume ordering
// invariants hold.
type Cohort struct {
	records []Record
}

// NewCohort validates every record and builds a cohort. The first invalid
// record aborts construction with that record's ID in the error.
func NewCohort(records []Record) (*Cohort, error) {
	if len(records) == 0 {
		return nil, core.ErrEmptyCohort
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	owned := make([]Record, len(records))
	copy(owned, records)
	return &Cohort{records: owned}, nil
}

// Size returns the number of records in the cohort
func (c *Cohort) Size() int {
	return len(c.records)
}

// Record returns the record at index i
func (c *Cohort) Record(i int) Record {
	return c.records[i]
}

// Records returns a copy of the underlying record slice
func (c *Cohort) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// PositiveMidpoints returns the positive window-midpoint delays in record
// order. Non-positive delays (possible when windows overlap) are skipped.
func (c *Cohort) PositiveMidpoints() []float64 {
	var delays []float64
	for _, r := range c.records {
		if d := r.MidpointDelay(); d > 0 {
			delays = append(delays, d)
		}
	}
	return delays
}

// MidpointMoments returns the mean and sample standard deviation of the
// positive midpoint delays. ok is false when fewer than two positive
// midpoints exist or the spread is zero; callers fall back to a default
// seed in that case.
func (c *Cohort) MidpointMoments() (mean, sd float64, ok bool) {
	delays := c.PositiveMidpoints()
	if len(delays) < 2 {
		return 0, 0, false
	}
	var sum float64
	for _, d := range delays {
		sum += d
	}
	mean = sum / float64(len(delays))
	var ss float64
	for _, d := range delays {
		ss += (d - mean) * (d - mean)
	}
	sd = math.Sqrt(ss / float64(len(delays)-1))
	if sd == 0 {
		return mean, 0, false
	}
	return mean, sd, true
}

// Resample draws a bootstrap resample of the same size, with replacement,
// from the supplied random stream. The result shares no storage with the
// source cohort.
func (c *Cohort) Resample(rng *rand.Rand) *Cohort {
	out := make([]Record, len(c.records))
	for i := range out {
		out[i] = c.records[rng.Intn(len(c.records))]
	}
	return &Cohort{records: out}
}

// Hash returns a deterministic fingerprint of the cohort's bounds
func (c *Cohort) Hash() core.CohortHash {
	bounds := make([][4]float64, len(c.records))
	for i, r := range c.records {
		bounds[i] = r.Bounds()
	}
	return core.ComputeCohortHash(bounds)
}
