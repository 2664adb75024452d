package linelist

import (
	"log"
	"time"

	"incuba/domain/cases"
	"incuba/domain/core"
)

// Options controls the date-to-day conversion.
type Options struct {
	// Epoch anchors all elapsed-day bounds.
	Epoch core.Epoch
	// ExactDates treats a single-day range as a point observation at the
	// day start instead of a one-day window.
	ExactDates bool
}

// DefaultOptions returns the standard conversion settings.
func DefaultOptions() Options {
	return Options{Epoch: core.DefaultEpoch()}
}

// Summary is the accounting of one cohort build. Rejected rows are listed
// by ID with the rule that rejected them, never silently dropped.
type Summary struct {
	Total     int         `json:"total"`
	Accepted  int         `json:"accepted"`
	Defaulted int         `json:"defaulted"` // rows with at least one filled bound
	Rejected  []Rejection `json:"rejected,omitempty"`
}

// Rejection identifies one rejected row.
type Rejection struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// RejectedCount returns the number of rejected rows.
func (s *Summary) RejectedCount() int {
	return len(s.Rejected)
}

// BuildCohort converts parsed rows into a validated cohort of elapsed-day
// records. Default filling per row, applied in date space:
//
//	missing exposure_start -> the reference epoch
//	missing exposure_end   -> onset_end
//	missing onset_end      -> onset_start
//	missing onset_start    -> row rejected (malformed)
//
// A date range start..end maps to the window [days(start), days(end)+1],
// treating a date as covering its whole day. With ExactDates a single-day
// range collapses to a zero-width bound at the day start.
//
// The primary-analysis rule rejects rows whose exposure bound exceeds the
// matching onset bound (exposure_right > onset_right or exposure_left >
// onset_left), so the core never sees a negatively bounded incubation
// period. Each rejection is logged with the row ID and counted.
func BuildCohort(list *LineList, opts Options) (*cases.Cohort, *Summary, error) {
	summary := &Summary{Total: len(list.Rows)}
	records := make([]cases.Record, 0, len(list.Rows))

	for _, row := range list.Rows {
		record, defaulted, rej := convertRow(row, opts)
		if rej != nil {
			log.Printf("[LineList] Rejecting row %s: %s", rej.ID, rej.Reason)
			summary.Rejected = append(summary.Rejected, *rej)
			continue
		}
		if defaulted {
			summary.Defaulted++
		}
		records = append(records, record)
	}

	summary.Accepted = len(records)
	log.Printf("[LineList] Cohort built: %d accepted, %d rejected, %d with defaulted bounds (epoch %s)",
		summary.Accepted, summary.RejectedCount(), summary.Defaulted, opts.Epoch)

	cohort, err := cases.NewCohort(records)
	if err != nil {
		return nil, summary, err
	}
	return cohort, summary, nil
}

// convertRow applies the filling rules and window convention to one row.
func convertRow(row Row, opts Options) (cases.Record, bool, *Rejection) {
	if row.OnsetStart == nil {
		return cases.Record{}, false, &Rejection{ID: row.ID, Reason: "missing onset_start"}
	}

	defaulted := false
	onsetStart := *row.OnsetStart

	onsetEnd := onsetStart
	if row.OnsetEnd != nil {
		onsetEnd = *row.OnsetEnd
	} else {
		defaulted = true
	}

	exposureStart := opts.Epoch.Time()
	if row.ExposureStart != nil {
		exposureStart = *row.ExposureStart
	} else {
		defaulted = true
	}

	exposureEnd := onsetEnd
	if row.ExposureEnd != nil {
		exposureEnd = *row.ExposureEnd
	} else {
		defaulted = true
	}

	eL, eR := window(exposureStart, exposureEnd, opts)
	oL, oR := window(onsetStart, onsetEnd, opts)

	if eL > oL {
		return cases.Record{}, false, &Rejection{ID: row.ID, Reason: "exposure_left after onset_left"}
	}
	if eR > oR {
		return cases.Record{}, false, &Rejection{ID: row.ID, Reason: "exposure_right after onset_right"}
	}

	record, err := cases.NewRecord(core.RecordID(row.ID), eL, eR, oL, oR)
	if err != nil {
		return cases.Record{}, false, &Rejection{ID: row.ID, Reason: err.Error()}
	}
	return record, defaulted, nil
}

// window maps a date range to fractional-day bounds under the end-of-day
// convention.
func window(start, end time.Time, opts Options) (float64, float64) {
	left := opts.Epoch.Days(start)
	if opts.ExactDates && start.Equal(end) {
		return left, left
	}
	return left, opts.Epoch.Days(end) + 1
}
