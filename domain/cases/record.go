package cases

import (
	"fmt"
	"math"

	"incuba/domain/core"
)

// WidthEpsilon is the window width in days below which a bound pair is
// treated as a point observation rather than an interval (1e-6 days ~ 86ms).
const WidthEpsilon = 1e-6

// CensoringType classifies how much interval uncertainty a record carries
type CensoringType string

const (
	CensoringDoubly CensoringType = "doubly_censored" // both windows have positive width
	CensoringSingly CensoringType = "singly_censored" // exactly one window is degenerate
	CensoringExact  CensoringType = "exact"           // both windows are degenerate
)

// Record represents one observed case: a window on the exposure time and a
// window on the symptom-onset time, both in fractional days since the run's
// reference epoch. Windows may overlap; a fully degenerate record (all four
// bounds equal) is legal.
type Record struct {
	ID            core.RecordID `json:"id"`
	ExposureLeft  float64       `json:"exposure_left"`
	ExposureRight float64       `json:"exposure_right"`
	OnsetLeft     float64       `json:"onset_left"`
	OnsetRight    float64       `json:"onset_right"`
}

// NewRecord creates a validated case record
func NewRecord(id core.RecordID, exposureLeft, exposureRight, onsetLeft, onsetRight float64) (Record, error) {
	r := Record{
		ID:            id,
		ExposureLeft:  exposureLeft,
		ExposureRight: exposureRight,
		OnsetLeft:     onsetLeft,
		OnsetRight:    onsetRight,
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Validate checks the interval ordering invariants. A violation is reported
// with the record's ID and never silently dropped.
func (r Record) Validate() error {
	for _, b := range []float64{r.ExposureLeft, r.ExposureRight, r.OnsetLeft, r.OnsetRight} {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return core.NewMalformedRecordError(r.ID, "non-finite bound")
		}
	}
	if r.ExposureLeft > r.ExposureRight {
		return core.NewMalformedRecordError(r.ID,
			fmt.Sprintf("exposure window inverted: [%g, %g]", r.ExposureLeft, r.ExposureRight))
	}
	if r.OnsetLeft > r.OnsetRight {
		return core.NewMalformedRecordError(r.ID,
			fmt.Sprintf("onset window inverted: [%g, %g]", r.OnsetLeft, r.OnsetRight))
	}
	return nil
}

// ExposureWidth returns the width of the exposure window in days
func (r Record) ExposureWidth() float64 {
	return r.ExposureRight - r.ExposureLeft
}

// OnsetWidth returns the width of the onset window in days
func (r Record) OnsetWidth() float64 {
	return r.OnsetRight - r.OnsetLeft
}

// Censoring derives the record's censoring type from its window widths
func (r Record) Censoring() CensoringType {
	exposureWide := r.ExposureWidth() > WidthEpsilon
	onsetWide := r.OnsetWidth() > WidthEpsilon
	switch {
	case exposureWide && onsetWide:
		return CensoringDoubly
	case exposureWide || onsetWide:
		return CensoringSingly
	default:
		return CensoringExact
	}
}

// MidpointDelay returns mid(onset) - mid(exposure), the crude incubation
// delay used for optimizer seeding and empirical CDF overlays.
func (r Record) MidpointDelay() float64 {
	return (r.OnsetLeft+r.OnsetRight)/2 - (r.ExposureLeft+r.ExposureRight)/2
}

// Bounds returns the four bounds in canonical order for hashing
func (r Record) Bounds() [4]float64 {
	return [4]float64{r.ExposureLeft, r.ExposureRight, r.OnsetLeft, r.OnsetRight}
}
