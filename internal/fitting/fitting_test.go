package fitting

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/internal/errors"
	"incuba/internal/likelihood"
)

// syntheticCohort builds n interval-censored records around true delays from
// gen. Every tenth record is exact; the rest carry windows up to 1.5 days
// wide on each side, overlapping freely.
func syntheticCohort(t *testing.T, n int, seed int64, gen func(rng *rand.Rand) float64) *cases.Cohort {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	records := make([]cases.Record, 0, n)
	for i := 0; i < n; i++ {
		delay := gen(rng)
		exposure := rng.Float64() * 10
		onset := exposure + delay

		r := cases.Record{
			ExposureLeft:  exposure - rng.Float64()*1.5,
			ExposureRight: exposure + rng.Float64()*1.5,
			OnsetLeft:     onset - rng.Float64()*1.5,
			OnsetRight:    onset + rng.Float64()*1.5,
		}
		if i%10 == 9 {
			r = cases.Record{
				ExposureLeft:  exposure,
				ExposureRight: exposure,
				OnsetLeft:     onset,
				OnsetRight:    onset,
			}
		}
		records = append(records, r)
	}

	cohort, err := cases.NewCohort(records)
	if err != nil {
		t.Fatalf("synthetic cohort: %v", err)
	}
	return cohort
}

func TestGoldStandard_RecoverLogNormal(t *testing.T) {
	cohort := syntheticCohort(t, 800, 42, func(rng *rand.Rand) float64 {
		return math.Exp(rng.NormFloat64()*0.6 + 1.6)
	})

	fit, err := NewEstimator(likelihood.NewEngine()).Fit(dist.LogNormal, cohort, 42)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	if math.Abs(fit.Dist.P1-1.6) > 0.1 {
		t.Fatalf("expected meanlog within 0.1 of 1.6, got %.4f (loglik=%.2f)", fit.Dist.P1, fit.LogLik)
	}
	if math.Abs(fit.Dist.P2-0.6) > 0.1 {
		t.Fatalf("expected sdlog within 0.1 of 0.6, got %.4f (loglik=%.2f)", fit.Dist.P2, fit.LogLik)
	}
}

func TestGoldStandard_RecoverGamma(t *testing.T) {
	// Shape 3 gamma sampled as a sum of three exponentials.
	cohort := syntheticCohort(t, 800, 42, func(rng *rand.Rand) float64 {
		return -1.8 * math.Log(rng.Float64()*rng.Float64()*rng.Float64())
	})

	fit, err := NewEstimator(likelihood.NewEngine()).Fit(dist.Gamma, cohort, 42)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	if math.Abs(fit.Dist.P1-3) > 0.75 {
		t.Fatalf("expected shape within 0.75 of 3, got %.4f", fit.Dist.P1)
	}
	if math.Abs(fit.Dist.P2-1.8) > 0.5 {
		t.Fatalf("expected scale within 0.5 of 1.8, got %.4f", fit.Dist.P2)
	}
}

func TestGoldStandard_RecoverWeibull(t *testing.T) {
	cohort := syntheticCohort(t, 800, 42, func(rng *rand.Rand) float64 {
		return 6.1 * math.Pow(-math.Log(1-rng.Float64()), 1/1.8)
	})

	fit, err := NewEstimator(likelihood.NewEngine()).Fit(dist.Weibull, cohort, 42)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	if math.Abs(fit.Dist.P1-1.8) > 0.4 {
		t.Fatalf("expected shape within 0.4 of 1.8, got %.4f", fit.Dist.P1)
	}
	if math.Abs(fit.Dist.P2-6.1) > 0.7 {
		t.Fatalf("expected scale within 0.7 of 6.1, got %.4f", fit.Dist.P2)
	}
}

// TestThreeRecordScenario tests the minimal end-to-end cohort from the
// primary analysis
func TestThreeRecordScenario(t *testing.T) {
	cohort, err := cases.NewCohort([]cases.Record{
		{ID: "r1", ExposureLeft: 0, ExposureRight: 5, OnsetLeft: 5, OnsetRight: 10},
		{ID: "r2", ExposureLeft: 0, ExposureRight: 2, OnsetLeft: 3, OnsetRight: 6},
		{ID: "r3", ExposureLeft: 1, ExposureRight: 1, OnsetLeft: 4, OnsetRight: 4},
	})
	if err != nil {
		t.Fatalf("cohort: %v", err)
	}

	engine := likelihood.NewEngine()
	fit, err := NewEstimator(engine).Fit(dist.LogNormal, cohort, 42)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	if !(fit.Dist.P1 > 0) || math.IsInf(fit.Dist.P1, 0) {
		t.Errorf("expected finite positive meanlog, got %v", fit.Dist.P1)
	}
	if !(fit.Dist.P2 > 0) || math.IsInf(fit.Dist.P2, 0) {
		t.Errorf("expected finite positive sdlog, got %v", fit.Dist.P2)
	}

	poor := engine.CohortLogLik(dist.Distribution{Family: dist.LogNormal, P1: 0, P2: 10}, cohort)
	if fit.LogLik <= poor {
		t.Errorf("fitted log-likelihood %v does not beat poor guess %v", fit.LogLik, poor)
	}
}

// TestFitDeterminism tests that a fixed (cohort, seed) pair reproduces the
// identical fit
func TestFitDeterminism(t *testing.T) {
	cohort := syntheticCohort(t, 120, 7, func(rng *rand.Rand) float64 {
		return math.Exp(rng.NormFloat64()*0.5 + 1.4)
	})

	est := NewEstimator(likelihood.NewEngine())
	a, err := est.Fit(dist.Gamma, cohort, 42)
	if err != nil {
		t.Fatalf("fit a: %v", err)
	}
	b, err := est.Fit(dist.Gamma, cohort, 42)
	if err != nil {
		t.Fatalf("fit b: %v", err)
	}

	if a.Dist != b.Dist || a.LogLik != b.LogLik {
		t.Errorf("fits diverge: %+v vs %+v", a, b)
	}
}

// TestFitAllInfeasible tests the optimization failure path
func TestFitAllInfeasible(t *testing.T) {
	// Onset windows strictly before exposure: no parameters are feasible.
	cohort, err := cases.NewCohort([]cases.Record{
		{ID: "b1", ExposureLeft: 10, ExposureRight: 12, OnsetLeft: 1, OnsetRight: 2},
		{ID: "b2", ExposureLeft: 8, ExposureRight: 9, OnsetLeft: 3, OnsetRight: 4},
	})
	if err != nil {
		t.Fatalf("cohort: %v", err)
	}

	_, err = NewEstimator(likelihood.NewEngine()).Fit(dist.LogNormal, cohort, 42)
	if err == nil {
		t.Fatal("expected optimization failure")
	}
	if code := errors.GetCode(err); code != errors.CodeOptimizationFailure {
		t.Errorf("expected %s, got %s", errors.CodeOptimizationFailure, code)
	}
	if !strings.Contains(err.Error(), "log-normal") || !strings.Contains(err.Error(), "n=2") {
		t.Errorf("expected family and sample size in error, got %q", err.Error())
	}
}

// TestFitRejectsErlang tests that the integer-shape family is routed away
// from the continuous optimizer
func TestFitRejectsErlang(t *testing.T) {
	cohort := syntheticCohort(t, 50, 3, func(rng *rand.Rand) float64 {
		return math.Exp(rng.NormFloat64()*0.5 + 1.4)
	})

	_, err := NewEstimator(likelihood.NewEngine()).Fit(dist.Erlang, cohort, 42)
	if err == nil {
		t.Fatal("expected error for erlang")
	}
	if code := errors.GetCode(err); code != errors.CodeInvalidInput {
		t.Errorf("expected %s, got %s", errors.CodeInvalidInput, code)
	}
}

// TestStartingPoint tests the documented moment-matching seed rules
func TestStartingPoint(t *testing.T) {
	// Exact records with delays 4 and 6: mean 5, sd sqrt(2).
	cohort, err := cases.NewCohort([]cases.Record{
		{ID: "a", ExposureLeft: 0, ExposureRight: 0, OnsetLeft: 4, OnsetRight: 4},
		{ID: "b", ExposureLeft: 0, ExposureRight: 0, OnsetLeft: 6, OnsetRight: 6},
	})
	if err != nil {
		t.Fatalf("cohort: %v", err)
	}

	m, s := 5.0, math.Sqrt2

	ln := StartingPoint(dist.LogNormal, cohort)
	sigma2 := math.Log(1 + (s*s)/(m*m))
	if math.Abs(ln.P1-(math.Log(m)-sigma2/2)) > 1e-12 || math.Abs(ln.P2-math.Sqrt(sigma2)) > 1e-12 {
		t.Errorf("log-normal seed mismatch: %+v", ln)
	}

	ga := StartingPoint(dist.Gamma, cohort)
	if math.Abs(ga.P1-(m/s)*(m/s)) > 1e-12 || math.Abs(ga.P2-s*s/m) > 1e-12 {
		t.Errorf("gamma seed mismatch: %+v", ga)
	}

	we := StartingPoint(dist.Weibull, cohort)
	k := math.Pow(s/m, -1.086)
	if math.Abs(we.P1-k) > 1e-12 || math.Abs(we.P2-m/math.Gamma(1+1/k)) > 1e-12 {
		t.Errorf("weibull seed mismatch: %+v", we)
	}

	er := StartingPoint(dist.Erlang, cohort)
	if er.P1 != math.Round((m/s)*(m/s)) || math.Abs(er.P2-m/er.P1) > 1e-12 {
		t.Errorf("erlang seed mismatch: %+v", er)
	}
	if er.Validate() != nil {
		t.Errorf("erlang seed must validate: %+v", er)
	}
}

// TestStartingPointFallback tests the fixed fallback moments
func TestStartingPointFallback(t *testing.T) {
	// Identical records: zero spread, so the fallback applies.
	cohort, err := cases.NewCohort([]cases.Record{
		{ID: "a", ExposureLeft: 0, ExposureRight: 2, OnsetLeft: 4, OnsetRight: 6},
		{ID: "b", ExposureLeft: 0, ExposureRight: 2, OnsetLeft: 4, OnsetRight: 6},
	})
	if err != nil {
		t.Fatalf("cohort: %v", err)
	}

	ln := StartingPoint(dist.LogNormal, cohort)
	sigma2 := math.Log(1 + (fallbackSD*fallbackSD)/(fallbackMean*fallbackMean))
	if math.Abs(ln.P1-(math.Log(fallbackMean)-sigma2/2)) > 1e-12 {
		t.Errorf("fallback meanlog mismatch: %+v", ln)
	}
	if math.Abs(ln.P2-math.Sqrt(sigma2)) > 1e-12 {
		t.Errorf("fallback sdlog mismatch: %+v", ln)
	}
}
