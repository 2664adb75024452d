package results

import (
	"incuba/domain/core"
	"incuba/domain/dist"
)

// Method identifies how a fit was produced
type Method string

const (
	MethodOptim Method = "optim" // direct likelihood maximization + bootstrap CIs
	MethodMCMC  Method = "mcmc"  // Metropolis posterior sampling (Erlang)
)

// ParseMethod maps a user-facing method name to a Method
func ParseMethod(name string) (Method, error) {
	switch name {
	case "optim":
		return MethodOptim, nil
	case "mcmc":
		return MethodMCMC, nil
	}
	return "", core.NewValidationError("method", "must be one of optim, mcmc")
}

// EstimateRow is one reported estimate: a point value with its interval.
// For bootstrap fits the interval is a percentile CI; for MCMC fits it is a
// credible interval. The schema is identical so consumers never branch.
type EstimateRow struct {
	Name  string  `json:"name"`
	Point float64 `json:"point"`
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
}

// FitResult is the immutable outcome of fitting one family to one cohort.
// Params holds the parameter rows; Rows holds the quantile rows in ascending
// probability order followed by the mean row.
type FitResult struct {
	Family     dist.Family       `json:"family"`
	Method     Method            `json:"method"`
	SampleSize int               `json:"sample_size"`
	LogLik     float64           `json:"log_lik"`
	Fitted     dist.Distribution `json:"fitted"`
	Params     []EstimateRow     `json:"params"`
	Rows       []EstimateRow     `json:"rows"`

	// Uncertainty accounting: bootstrap replicates or posterior draws.
	Requested int `json:"requested_replicates"`
	Failed    int `json:"failed_replicates"`
	Used      int `json:"ci_sample_size"`
}

// Row finds an estimate row by name across params and rows
func (r FitResult) Row(name string) (EstimateRow, bool) {
	for _, row := range r.Params {
		if row.Name == name {
			return row, true
		}
	}
	for _, row := range r.Rows {
		if row.Name == name {
			return row, true
		}
	}
	return EstimateRow{}, false
}

// RunStatus represents the lifecycle state of an analysis run
type RunStatus string

const (
	StatusRunning  RunStatus = "running"
	StatusComplete RunStatus = "complete"
	StatusFailed   RunStatus = "failed"
)

// Run pairs a manifest with its lifecycle state for storage and serving
type Run struct {
	Manifest  RunManifest    `json:"manifest"`
	Status    RunStatus      `json:"status"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt core.Timestamp `json:"updated_at"`
}

// FitReport aggregates per-family results for one run. Failures carries the
// error message per family that did not fit; a report with no successful
// results never leaves the analysis service.
type FitReport struct {
	Manifest RunManifest       `json:"manifest"`
	Results  []FitResult       `json:"results"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Result finds a fit result by family
func (r *FitReport) Result(family dist.Family) (FitResult, bool) {
	for _, res := range r.Results {
		if res.Family == family {
			return res, true
		}
	}
	return FitResult{}, false
}
