package linelist

import (
	"fmt"
	"log"
	"strings"

	"incuba/domain/cases"
	"incuba/domain/core"
)

// FilterName identifies a cohort subset for fitting.
type FilterName string

const (
	FilterNone   FilterName = "none"     // every accepted row
	FilterFever  FilterName = "fever"    // rows with a recorded fever
	FilterTravel FilterName = "travel"   // rows from outside the local region
	FilterEpoch  FilterName = "epoch-1y" // all rows, epoch shifted one year back
)

// ParseFilter maps a user-facing filter name to a FilterName.
func ParseFilter(name string) (FilterName, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "all":
		return FilterNone, nil
	case "fever":
		return FilterFever, nil
	case "travel", "non-local", "nonlocal":
		return FilterTravel, nil
	case "epoch-1y", "epoch1y":
		return FilterEpoch, nil
	}
	return "", fmt.Errorf("unknown filter %q (use none, fever, travel or epoch-1y)", name)
}

// FeverOnly keeps rows with a recorded fever.
func FeverOnly(row Row) bool {
	return row.Fever
}

// TravelOnly keeps rows whose region is present and differs from the local
// region, the travel-associated subset of the line list.
func TravelOnly(localRegion string) func(Row) bool {
	local := strings.ToLower(strings.TrimSpace(localRegion))
	return func(row Row) bool {
		return row.Region != "" && row.Region != local
	}
}

// Apply builds the cohort selected by name. The epoch-1y filter keeps every
// row but re-derives bounds against an epoch one year earlier, widening the
// imputed exposure windows of rows with no recorded exposure start.
func Apply(name FilterName, list *LineList, opts Options, localRegion string) (*LineList, Options, error) {
	switch name {
	case FilterNone:
		return list, opts, nil
	case FilterFever:
		return list.Filter(FeverOnly), opts, nil
	case FilterTravel:
		return list.Filter(TravelOnly(localRegion)), opts, nil
	case FilterEpoch:
		shifted := opts
		shifted.Epoch = opts.Epoch.ShiftYears(-1)
		return list, shifted, nil
	}
	return nil, opts, fmt.Errorf("unknown filter %q", name)
}

// NamedCohort is one entry of a sensitivity set. Epoch is the reference
// epoch the cohort's bounds were derived against, which differs from the
// requested one for the epoch-1y variant.
type NamedCohort struct {
	Name    FilterName
	Cohort  *cases.Cohort
	Summary *Summary
	Epoch   core.Epoch
}

// SensitivitySet builds the standard sensitivity cohorts side by side:
// the full cohort, the fever-only and travel-associated subsets, and the
// year-shifted epoch variant. The full cohort must build; subsets that
// come out empty are skipped with a log line.
func SensitivitySet(list *LineList, opts Options, localRegion string) ([]NamedCohort, error) {
	set := make([]NamedCohort, 0, 4)
	for _, name := range []FilterName{FilterNone, FilterFever, FilterTravel, FilterEpoch} {
		subset, subOpts, err := Apply(name, list, opts, localRegion)
		if err != nil {
			return nil, err
		}
		cohort, summary, err := BuildCohort(subset, subOpts)
		if err != nil {
			if name == FilterNone {
				return nil, err
			}
			log.Printf("[LineList] Skipping %s sensitivity cohort: %v", name, err)
			continue
		}
		set = append(set, NamedCohort{Name: name, Cohort: cohort, Summary: summary, Epoch: subOpts.Epoch})
	}
	return set, nil
}
