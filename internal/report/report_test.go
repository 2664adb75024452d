package report

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/domain/results"
	"incuba/internal/bootstrap"
	"incuba/internal/fitting"
	"incuba/internal/likelihood"
	"incuba/internal/mcmc"
)

var testQuantiles = []float64{0.025, 0.05, 0.25, 0.5, 0.75, 0.95, 0.975}

// intervalCohort samples n delays from gen and wraps them in interval
// windows up to one day wide on each side.
func intervalCohort(t *testing.T, n int, seed int64, gen func(*rand.Rand) float64) *cases.Cohort {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	records := make([]cases.Record, 0, n)
	for i := 0; i < n; i++ {
		delay := gen(rng)
		exposure := rng.Float64() * 10
		onset := exposure + delay
		records = append(records, cases.Record{
			ExposureLeft:  exposure - rng.Float64(),
			ExposureRight: exposure + rng.Float64(),
			OnsetLeft:     onset - rng.Float64(),
			OnsetRight:    onset + rng.Float64(),
		})
	}
	cohort, err := cases.NewCohort(records)
	if err != nil {
		t.Fatalf("synthetic cohort: %v", err)
	}
	return cohort
}

func TestFromBootstrapTable(t *testing.T) {
	cohort := intervalCohort(t, 80, 42, func(rng *rand.Rand) float64 {
		return math.Exp(rng.NormFloat64()*0.5 + 1.5)
	})

	engine := likelihood.NewEngine()
	estimator := fitting.NewEstimator(engine)
	fit, err := estimator.Fit(dist.LogNormal, cohort, 42)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	cfg := bootstrap.DefaultConfig()
	cfg.Replicates = 25
	sample, err := bootstrap.NewEngine(estimator, cfg).Run(context.Background(), dist.LogNormal, cohort, 42)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	result := NewReporter(engine, testQuantiles).FromBootstrap(fit, sample, cohort)

	if result.Family != dist.LogNormal || result.Method != results.MethodOptim {
		t.Fatalf("unexpected header: family=%s method=%s", result.Family, result.Method)
	}
	if result.SampleSize != cohort.Size() {
		t.Errorf("expected sample size %d, got %d", cohort.Size(), result.SampleSize)
	}
	if result.Requested != 25 || result.Used != 25-result.Failed {
		t.Errorf("replicate accounting off: requested=%d failed=%d used=%d", result.Requested, result.Failed, result.Used)
	}

	if len(result.Params) != 2 || result.Params[0].Name != "meanlog" || result.Params[1].Name != "sdlog" {
		t.Fatalf("unexpected param rows: %+v", result.Params)
	}
	if len(result.Rows) != len(testQuantiles)+1 {
		t.Fatalf("expected %d rows, got %d", len(testQuantiles)+1, len(result.Rows))
	}
	if last := result.Rows[len(result.Rows)-1]; last.Name != "mean" {
		t.Fatalf("expected final mean row, got %q", last.Name)
	}

	// The log-normal median is exp(meanlog), with no rounding slack.
	median, ok := result.Row("p50")
	if !ok {
		t.Fatal("missing p50 row")
	}
	if median.Point != math.Exp(fit.Dist.P1) {
		t.Errorf("expected p50 = exp(meanlog) = %v, got %v", math.Exp(fit.Dist.P1), median.Point)
	}

	for i := 1; i < len(testQuantiles); i++ {
		if result.Rows[i].Point <= result.Rows[i-1].Point {
			t.Errorf("quantile points not increasing: %s=%v then %s=%v",
				result.Rows[i-1].Name, result.Rows[i-1].Point, result.Rows[i].Name, result.Rows[i].Point)
		}
	}
	for _, row := range append(result.Params, result.Rows...) {
		if row.Lo > row.Hi {
			t.Errorf("row %s has inverted interval (%v, %v)", row.Name, row.Lo, row.Hi)
		}
	}
}

func TestFromChainTable(t *testing.T) {
	cohort := intervalCohort(t, 150, 42, func(rng *rand.Rand) float64 {
		delay := 0.0
		for j := 0; j < 4; j++ {
			delay += -1.5 * math.Log(1-rng.Float64())
		}
		return delay
	})

	engine := likelihood.NewEngine()
	cfg := mcmc.DefaultConfig()
	cfg.Iterations = 2000
	chain, err := mcmc.NewSampler(engine, cfg).Sample(context.Background(), cohort, 42)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}

	result := NewReporter(engine, testQuantiles).FromChain(chain, cohort)

	if result.Family != dist.Erlang || result.Method != results.MethodMCMC {
		t.Fatalf("unexpected header: family=%s method=%s", result.Family, result.Method)
	}
	if result.Requested != len(chain.Draws) || result.Used != len(chain.Retained()) {
		t.Errorf("draw accounting off: requested=%d used=%d", result.Requested, result.Used)
	}

	if len(result.Params) != 2 || result.Params[0].Name != "shape" || result.Params[1].Name != "scale" {
		t.Fatalf("unexpected param rows: %+v", result.Params)
	}
	shape := result.Params[0].Point
	if shape < 1 || shape != math.Trunc(shape) {
		t.Errorf("expected integer shape >= 1, got %v", shape)
	}

	mean, ok := result.Row("mean")
	if !ok {
		t.Fatal("missing mean row")
	}
	if want := result.Fitted.Mean(); math.Abs(mean.Point-want) > 1e-12 {
		t.Errorf("expected mean row %v, got %v", want, mean.Point)
	}

	if math.IsInf(result.LogLik, 0) || math.IsNaN(result.LogLik) {
		t.Errorf("expected finite log-likelihood, got %v", result.LogLik)
	}
	for i := 1; i < len(testQuantiles); i++ {
		if result.Rows[i].Point < result.Rows[i-1].Point {
			t.Errorf("quantile points decreasing at %s", result.Rows[i].Name)
		}
	}
}

// TestReporterOrdersQuantiles tests that rows come out in ascending
// probability order regardless of input order
func TestReporterOrdersQuantiles(t *testing.T) {
	cohort := intervalCohort(t, 40, 7, func(rng *rand.Rand) float64 {
		return math.Exp(rng.NormFloat64()*0.4 + 1.4)
	})

	engine := likelihood.NewEngine()
	estimator := fitting.NewEstimator(engine)
	fit, err := estimator.Fit(dist.LogNormal, cohort, 42)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	cfg := bootstrap.DefaultConfig()
	cfg.Replicates = 10
	sample, err := bootstrap.NewEngine(estimator, cfg).Run(context.Background(), dist.LogNormal, cohort, 42)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	result := NewReporter(engine, []float64{0.975, 0.5, 0.025}).FromBootstrap(fit, sample, cohort)

	want := []string{"p2.5", "p50", "p97.5", "mean"}
	if len(result.Rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(result.Rows))
	}
	for i, row := range result.Rows {
		if row.Name != want[i] {
			t.Errorf("row %d: expected %q, got %q", i, want[i], row.Name)
		}
	}
}

func TestQuantileName(t *testing.T) {
	tests := []struct {
		p    float64
		want string
	}{
		{0.025, "p2.5"},
		{0.05, "p5"},
		{0.25, "p25"},
		{0.5, "p50"},
		{0.95, "p95"},
		{0.975, "p97.5"},
	}

	for _, tt := range tests {
		if got := QuantileName(tt.p); got != tt.want {
			t.Errorf("QuantileName(%v) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
