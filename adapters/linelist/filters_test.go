package linelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		input   string
		want    FilterName
		wantErr bool
	}{
		{"", FilterNone, false},
		{"none", FilterNone, false},
		{"all", FilterNone, false},
		{"fever", FilterFever, false},
		{"Travel", FilterTravel, false},
		{"non-local", FilterTravel, false},
		{"epoch-1y", FilterEpoch, false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFilter(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

// TestFilterSubsets tests that fever and travel predicates select exactly
// the matching rows.
func TestFilterSubsets(t *testing.T) {
	list := fixtureList(t)

	fever := list.Filter(FeverOnly)
	require.Len(t, fever.Rows, 3)
	for _, row := range fever.Rows {
		assert.True(t, row.Fever, "row %s", row.ID)
	}

	travel := list.Filter(TravelOnly("wuhan"))
	require.Len(t, travel.Rows, 2)
	for _, row := range travel.Rows {
		assert.NotEqual(t, "wuhan", row.Region, "row %s", row.ID)
	}
}

func TestApplyEpochFilterShiftsOptions(t *testing.T) {
	list := fixtureList(t)
	opts := DefaultOptions()

	subset, shifted, err := Apply(FilterEpoch, list, opts, "wuhan")
	require.NoError(t, err)
	assert.Len(t, subset.Rows, len(list.Rows))
	assert.Equal(t, "2018-12-01", shifted.Epoch.String())
	// The caller's options are untouched.
	assert.Equal(t, "2019-12-01", opts.Epoch.String())
}

func TestSensitivitySet(t *testing.T) {
	set, err := SensitivitySet(fixtureList(t), DefaultOptions(), "wuhan")
	require.NoError(t, err)

	names := make(map[FilterName]NamedCohort, len(set))
	for _, entry := range set {
		names[entry.Name] = entry
	}
	require.Contains(t, names, FilterNone)
	require.Contains(t, names, FilterFever)
	require.Contains(t, names, FilterTravel)
	require.Contains(t, names, FilterEpoch)

	assert.Equal(t, 4, names[FilterNone].Cohort.Size())
	// Fever rows c1 and c3 survive conversion; c6 has no onset date.
	assert.Equal(t, 2, names[FilterFever].Cohort.Size())
	// Travel rows are c2 (accepted) and c4 (rejected by the primary rule).
	assert.Equal(t, 1, names[FilterTravel].Cohort.Size())
	assert.Equal(t, names[FilterNone].Cohort.Size(), names[FilterEpoch].Cohort.Size())

	// Each entry records the epoch its bounds were derived against.
	assert.Equal(t, "2019-12-01", names[FilterNone].Epoch.String())
	assert.Equal(t, "2018-12-01", names[FilterEpoch].Epoch.String())
}
