package linelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incuba/domain/cases"
	"incuba/domain/core"
)

func fixtureList(t *testing.T) *LineList {
	t.Helper()
	list, err := NewReader(writeFixtureCSV(t, fixtureCSV)).Read()
	require.NoError(t, err)
	return list
}

func recordByID(t *testing.T, cohort *cases.Cohort, id string) cases.Record {
	t.Helper()
	for _, r := range cohort.Records() {
		if r.ID == core.RecordID(id) {
			return r
		}
	}
	t.Fatalf("record %s not in cohort", id)
	return cases.Record{}
}

// TestBuildCohortBounds tests the documented filling rules and the
// end-of-day window convention against the fixture line list.
func TestBuildCohortBounds(t *testing.T) {
	cohort, summary, err := BuildCohort(fixtureList(t), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 4, summary.Accepted)
	assert.Equal(t, 2, summary.Defaulted)
	require.Equal(t, 2, summary.RejectedCount())

	// Dates cover their whole day: start..end becomes [days(start), days(end)+1].
	c1 := recordByID(t, cohort, "c1")
	assert.InDelta(t, 9, c1.ExposureLeft, 1e-9)
	assert.InDelta(t, 15, c1.ExposureRight, 1e-9)
	assert.InDelta(t, 19, c1.OnsetLeft, 1e-9)
	assert.InDelta(t, 22, c1.OnsetRight, 1e-9)

	// Missing exposure_start anchors at the epoch; missing onset_end copies
	// onset_start.
	c2 := recordByID(t, cohort, "c2")
	assert.InDelta(t, 0, c2.ExposureLeft, 1e-9)
	assert.InDelta(t, 12, c2.ExposureRight, 1e-9)
	assert.InDelta(t, 13, c2.OnsetLeft, 1e-9)
	assert.InDelta(t, 14, c2.OnsetRight, 1e-9)

	// Missing exposure_end copies the (already filled) onset_end.
	c3 := recordByID(t, cohort, "c3")
	assert.InDelta(t, 0, c3.ExposureLeft, 1e-9)
	assert.InDelta(t, 18, c3.ExposureRight, 1e-9)
	assert.InDelta(t, 17, c3.OnsetLeft, 1e-9)
	assert.InDelta(t, 18, c3.OnsetRight, 1e-9)
}

// TestBuildCohortRejections tests the primary-analysis rule and the
// missing-onset rejection, both reported by row ID.
func TestBuildCohortRejections(t *testing.T) {
	_, summary, err := BuildCohort(fixtureList(t), DefaultOptions())
	require.NoError(t, err)

	reasons := make(map[string]string)
	for _, rej := range summary.Rejected {
		reasons[rej.ID] = rej.Reason
	}
	assert.Contains(t, reasons["c4"], "exposure_left after onset_left")
	assert.Contains(t, reasons["c6"], "missing onset_start")
}

// TestBuildCohortExactDates tests that single-day ranges collapse to point
// observations under ExactDates.
func TestBuildCohortExactDates(t *testing.T) {
	opts := DefaultOptions()
	opts.ExactDates = true
	cohort, _, err := BuildCohort(fixtureList(t), opts)
	require.NoError(t, err)

	c5 := recordByID(t, cohort, "c5")
	assert.Equal(t, c5.ExposureLeft, c5.ExposureRight)
	assert.Equal(t, c5.OnsetLeft, c5.OnsetRight)
	assert.InDelta(t, 4, c5.ExposureLeft, 1e-9)
	assert.InDelta(t, 8, c5.OnsetLeft, 1e-9)
	assert.Equal(t, cases.CensoringExact, c5.Censoring())

	// Multi-day ranges keep their width.
	c1 := recordByID(t, cohort, "c1")
	assert.Equal(t, cases.CensoringDoubly, c1.Censoring())
}

// TestBuildCohortEpochShift tests that a year-earlier epoch shifts complete
// records by exactly 365 days while re-anchoring imputed exposure bounds.
func TestBuildCohortEpochShift(t *testing.T) {
	list := fixtureList(t)

	base, _, err := BuildCohort(list, DefaultOptions())
	require.NoError(t, err)

	shifted := DefaultOptions()
	shifted.Epoch = shifted.Epoch.ShiftYears(-1)
	moved, _, err := BuildCohort(list, shifted)
	require.NoError(t, err)

	// c1 has all four dates recorded: every bound moves together.
	c1 := recordByID(t, base, "c1")
	c1s := recordByID(t, moved, "c1")
	assert.InDelta(t, c1.ExposureLeft+365, c1s.ExposureLeft, 1e-9)
	assert.InDelta(t, c1.ExposureRight+365, c1s.ExposureRight, 1e-9)
	assert.InDelta(t, c1.OnsetLeft+365, c1s.OnsetLeft, 1e-9)
	assert.InDelta(t, c1.OnsetRight+365, c1s.OnsetRight, 1e-9)

	// c2 has its exposure left imputed from the epoch, so its window widens
	// by the year instead of moving with the rest.
	c2s := recordByID(t, moved, "c2")
	assert.InDelta(t, 0, c2s.ExposureLeft, 1e-9)
	assert.InDelta(t, 12+365, c2s.ExposureRight, 1e-9)
}

func TestBuildCohortAllRejected(t *testing.T) {
	list, err := NewReader(writeFixtureCSV(t, `id,exposure_start,exposure_end,onset_start,onset_end
bad,2019-12-25,2019-12-26,2019-12-20,2019-12-21
`)).Read()
	require.NoError(t, err)

	_, summary, err := BuildCohort(list, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, 1, summary.RejectedCount())
}
