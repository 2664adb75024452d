// Package report turns fitted distributions and their uncertainty samples
// into estimate tables: one row per parameter, one per requested quantile,
// and one for the mean, each carrying a point value and an interval.
package report

import (
	"fmt"
	"sort"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/domain/results"
	"incuba/internal/bootstrap"
	"incuba/internal/fitting"
	"incuba/internal/likelihood"
	"incuba/internal/mcmc"
)

// Level is the two-sided coverage of reported intervals.
const Level = 0.95

// Reporter assembles FitResults from point fits plus bootstrap samples or
// posterior chains. Bootstrap intervals and credible intervals share the
// same row schema.
type Reporter struct {
	engine    *likelihood.Engine
	quantiles []float64
}

// NewReporter creates a reporter for the given quantile probabilities.
// Rows are emitted in ascending probability order; callers validate that
// each probability lies strictly inside (0, 1).
func NewReporter(engine *likelihood.Engine, quantiles []float64) *Reporter {
	qs := make([]float64, len(quantiles))
	copy(qs, quantiles)
	sort.Float64s(qs)
	return &Reporter{engine: engine, quantiles: qs}
}

// FromBootstrap builds the estimate table for a directly optimized family:
// points come from the full-cohort fit, intervals from the per-replicate
// spread.
func (r *Reporter) FromBootstrap(fit fitting.Fit, sample *bootstrap.Sample, cohort *cases.Cohort) results.FitResult {
	dists := make([]dist.Distribution, 0, len(sample.Fits))
	for _, rep := range sample.Fits {
		dists = append(dists, rep.Dist)
	}

	return results.FitResult{
		Family:     fit.Dist.Family,
		Method:     results.MethodOptim,
		SampleSize: cohort.Size(),
		LogLik:     fit.LogLik,
		Fitted:     fit.Dist,
		Params:     r.paramRows(fit.Dist, dists),
		Rows:       r.statRows(fit.Dist, dists),
		Requested:  sample.Requested,
		Failed:     sample.Failed,
		Used:       sample.Used(),
	}
}

// FromChain builds the same table from an Erlang posterior chain: points
// come from the posterior median state, intervals from the retained draws.
func (r *Reporter) FromChain(chain *mcmc.Chain, cohort *cases.Cohort) results.FitResult {
	shape, scale := chain.PosteriorMedian()
	fitted := dist.Distribution{Family: dist.Erlang, P1: float64(shape), P2: scale}

	retained := chain.Retained()
	dists := make([]dist.Distribution, 0, len(retained))
	for _, d := range retained {
		dists = append(dists, dist.Distribution{Family: dist.Erlang, P1: float64(d.Shape), P2: d.Scale})
	}

	return results.FitResult{
		Family:     dist.Erlang,
		Method:     results.MethodMCMC,
		SampleSize: cohort.Size(),
		LogLik:     r.engine.CohortLogLik(fitted, cohort),
		Fitted:     fitted,
		Params:     r.paramRows(fitted, dists),
		Rows:       r.statRows(fitted, dists),
		Requested:  len(chain.Draws),
		Used:       len(retained),
	}
}

// paramRows builds one row per distribution parameter.
func (r *Reporter) paramRows(central dist.Distribution, dists []dist.Distribution) []results.EstimateRow {
	names := central.Family.ParamNames()
	rows := make([]results.EstimateRow, 0, len(names))
	for i, name := range names {
		values := make([]float64, 0, len(dists))
		for _, d := range dists {
			values = append(values, param(d, i))
		}
		lo, hi := bootstrap.Interval(values, Level)
		rows = append(rows, results.EstimateRow{Name: name, Point: param(central, i), Lo: lo, Hi: hi})
	}
	return rows
}

// statRows builds the quantile rows in ascending probability order followed
// by the mean row.
func (r *Reporter) statRows(central dist.Distribution, dists []dist.Distribution) []results.EstimateRow {
	rows := make([]results.EstimateRow, 0, len(r.quantiles)+1)
	for _, p := range r.quantiles {
		values := make([]float64, 0, len(dists))
		for _, d := range dists {
			values = append(values, d.Quantile(p))
		}
		lo, hi := bootstrap.Interval(values, Level)
		rows = append(rows, results.EstimateRow{Name: QuantileName(p), Point: central.Quantile(p), Lo: lo, Hi: hi})
	}

	means := make([]float64, 0, len(dists))
	for _, d := range dists {
		means = append(means, d.Mean())
	}
	lo, hi := bootstrap.Interval(means, Level)
	return append(rows, results.EstimateRow{Name: "mean", Point: central.Mean(), Lo: lo, Hi: hi})
}

func param(d dist.Distribution, i int) float64 {
	if i == 0 {
		return d.P1
	}
	return d.P2
}

// QuantileName labels a probability as a percentile row, e.g. p50 for the
// median and p2.5 for the lower interval bound.
func QuantileName(p float64) string {
	return fmt.Sprintf("p%g", p*100)
}
