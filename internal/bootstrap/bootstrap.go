// Package bootstrap resamples a cohort with replacement and refits the
// delay distribution on each replicate, producing the empirical spread
// that percentile confidence intervals are read from.
package bootstrap

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/internal"
	"incuba/internal/errors"
	"incuba/internal/fitting"
)

// Config controls the size and tolerance of a bootstrap run.
type Config struct {
	Replicates     int     // Number of resampled refits to attempt
	Workers        int     // Concurrent fit workers
	MaxFailureFrac float64 // Largest tolerated fraction of failed replicates
}

// DefaultConfig returns the standard bootstrap configuration.
func DefaultConfig() Config {
	return Config{
		Replicates:     1000,
		Workers:        4,
		MaxFailureFrac: 0.10,
	}
}

// Sample holds the surviving replicate fits of one bootstrap run.
type Sample struct {
	Family    dist.Family
	Fits      []fitting.Fit
	Requested int
	Failed    int
}

// Used returns the number of replicates that converged.
func (s *Sample) Used() int {
	return len(s.Fits)
}

type replicateResult struct {
	index int
	fit   fitting.Fit
	err   error
}

// Engine runs bootstrap replicates through a concurrent worker pool.
type Engine struct {
	estimator *fitting.Estimator
	cfg       Config
	logger    *internal.Logger
}

// NewEngine creates a bootstrap engine around an estimator.
func NewEngine(estimator *fitting.Estimator, cfg Config) *Engine {
	return &Engine{
		estimator: estimator,
		cfg:       cfg,
		logger:    internal.NewDefaultLogger(),
	}
}

// Run resamples the cohort Replicates times and refits family on each
// resample. Replicates that fail to converge are dropped and counted; the
// run aborts only when the failed fraction exceeds MaxFailureFrac.
//
// The same seed always produces the same Sample regardless of worker count:
// per-replicate seeds are drawn up front from a single master stream and
// results are keyed by replicate index.
func (e *Engine) Run(ctx context.Context, family dist.Family, cohort *cases.Cohort, seed int64) (*Sample, error) {
	if e.cfg.Replicates < 1 {
		return nil, errors.InvalidInput("bootstrap requires at least one replicate")
	}
	if family == dist.Erlang {
		return nil, errors.InvalidInput("bootstrap intervals support log-normal, gamma and weibull only")
	}

	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, e.cfg.Replicates)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	numWorkers := e.cfg.Workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if e.cfg.Replicates < numWorkers {
		numWorkers = e.cfg.Replicates
	}

	workChan := make(chan int, e.cfg.Replicates)
	resultChan := make(chan replicateResult, e.cfg.Replicates)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.replicateWorker(ctx, family, cohort, seeds, workChan, resultChan)
		}()
	}

	go func() {
		for i := 0; i < e.cfg.Replicates; i++ {
			workChan <- i
		}
		close(workChan)
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	fits := make([]*fitting.Fit, e.cfg.Replicates)
	for result := range resultChan {
		if result.err != nil {
			e.logger.Debug("[Bootstrap] %s replicate %d failed: %v", family, result.index, result.err)
			continue
		}
		fit := result.fit
		fits[result.index] = &fit
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sample := &Sample{Family: family, Requested: e.cfg.Replicates}
	for _, fit := range fits {
		if fit == nil {
			sample.Failed++
			continue
		}
		sample.Fits = append(sample.Fits, *fit)
	}

	if frac := float64(sample.Failed) / float64(sample.Requested); frac > e.cfg.MaxFailureFrac {
		return nil, errors.InsufficientReplicates(sample.Failed, sample.Requested)
	}

	e.logger.Debug("[Bootstrap] %s kept %d/%d replicates", family, sample.Used(), sample.Requested)
	return sample, nil
}

// replicateWorker resamples and refits replicates pulled from workChan.
func (e *Engine) replicateWorker(ctx context.Context, family dist.Family, cohort *cases.Cohort, seeds []int64, workChan <-chan int, resultChan chan<- replicateResult) {
	for index := range workChan {
		select {
		case <-ctx.Done():
			return
		default:
			rng := rand.New(rand.NewSource(seeds[index]))
			resampled := cohort.Resample(rng)
			fit, err := e.estimator.Fit(family, resampled, rng.Int63())
			resultChan <- replicateResult{index: index, fit: fit, err: err}
		}
	}
}

// Percentile returns the linearly interpolated p-th percentile of data.
// p is expressed in percent, e.g. 2.5 and 97.5 for a 95% interval.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Interval returns the percentile interval covering level, e.g. 0.95 for a
// 95% interval.
func Interval(values []float64, level float64) (float64, float64) {
	tail := (1 - level) / 2 * 100
	return Percentile(values, tail), Percentile(values, 100-tail)
}
