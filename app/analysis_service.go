package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"incuba/domain/cases"
	"incuba/domain/core"
	"incuba/domain/dist"
	"incuba/domain/results"
	"incuba/internal"
	"incuba/internal/bootstrap"
	"incuba/internal/config"
	"incuba/internal/errors"
	"incuba/internal/fitting"
	"incuba/internal/likelihood"
	"incuba/internal/mcmc"
	"incuba/internal/report"
	"incuba/ports"
)

// CodeVersion stamps run manifests. It enters the fingerprint, so bumping it
// separates runs made before and after an estimation-behavior change.
const CodeVersion = "v0.1.0"

// familyConcurrency bounds how many families fit at once. Each family already
// runs its own bootstrap worker pool, so the fan-out stays small.
const familyConcurrency = 4

// AnalysisService fits the requested delay families to one cohort and
// assembles the per-family estimate tables into a single report
type AnalysisService struct {
	engine    *likelihood.Engine
	estimator *fitting.Estimator
	rngPort   ports.RNGPort
	store     ports.RunStore // optional, nil disables persistence
	logger    *internal.Logger
}

// AnalysisRequest defines the inputs for a deterministic estimation run
type AnalysisRequest struct {
	Cohort   *cases.Cohort
	Families []dist.Family         // empty means all supported families
	Method   results.Method        // empty selects per family: mcmc for erlang, optim otherwise
	Config   config.AnalysisConfig // seed, replicates, quantiles, chain settings
	Epoch    core.Epoch
	RunID    core.RunID // optional, will be generated if empty
}

// NewAnalysisService creates an analysis service. Pass a nil store for
// one-shot callers that handle the report themselves.
func NewAnalysisService(engine *likelihood.Engine, rngPort ports.RNGPort, store ports.RunStore) *AnalysisService {
	return &AnalysisService{
		engine:    engine,
		estimator: fitting.NewEstimator(engine),
		rngPort:   rngPort,
		store:     store,
		logger:    internal.NewDefaultLogger(),
	}
}

// RunAnalysis executes an estimation run synchronously and returns the
// report. Families fail independently: each failure is recorded under its
// family name, and only a run with zero successful families is an error.
// When a store is configured the completed run is persisted before return.
func (s *AnalysisService) RunAnalysis(ctx context.Context, req AnalysisRequest) (*results.FitReport, error) {
	families, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	manifest := s.buildManifest(req, families)
	fitReport, err := s.execute(ctx, req, families, manifest)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.persist(ctx, fitReport); err != nil {
			return nil, err
		}
	}
	return fitReport, nil
}

// Submit records the run as running and completes it in the background,
// returning immediately with the manifest callers poll by. A store is
// required; without one there would be nothing to poll.
func (s *AnalysisService) Submit(ctx context.Context, req AnalysisRequest) (*results.Run, error) {
	if s.store == nil {
		return nil, errors.InvalidInput("background runs require a run store")
	}

	families, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	manifest := s.buildManifest(req, families)
	run := &results.Run{Manifest: manifest, Status: results.StatusRunning, UpdatedAt: core.Now()}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	go s.finish(req, families, manifest)
	return run, nil
}

// finish completes a submitted run. It runs on a fresh context so the fits
// outlive the submitting request.
func (s *AnalysisService) finish(req AnalysisRequest, families []dist.Family, manifest results.RunManifest) {
	ctx := context.Background()
	runID := manifest.RunID

	fitReport, err := s.execute(ctx, req, families, manifest)
	if err == nil {
		if serr := s.store.SaveEstimates(ctx, runID, ports.FlattenEstimates(runID, fitReport)); serr != nil {
			err = fmt.Errorf("failed to save estimates: %w", serr)
		}
	}
	if err == nil {
		if serr := s.store.SaveReport(ctx, runID, fitReport); serr != nil {
			err = fmt.Errorf("failed to save report: %w", serr)
		}
	}

	if err != nil {
		s.logger.Error("[Analysis] run %s failed: %v", runID, err)
		if uerr := s.store.UpdateRunStatus(ctx, runID, results.StatusFailed, err.Error()); uerr != nil {
			s.logger.Error("[Analysis] run %s could not be marked failed: %v", runID, uerr)
		}
		return
	}

	if uerr := s.store.UpdateRunStatus(ctx, runID, results.StatusComplete, ""); uerr != nil {
		s.logger.Error("[Analysis] run %s could not be marked complete: %v", runID, uerr)
	}
}

// execute fits every family and assembles the report for an
// already-validated request. It does not touch the store.
func (s *AnalysisService) execute(ctx context.Context, req AnalysisRequest, families []dist.Family, manifest results.RunManifest) (*results.FitReport, error) {
	startTime := time.Now()
	s.logger.Info("[Analysis] run %s fitting %d families to %d records (seed %d)",
		manifest.RunID, len(families), req.Cohort.Size(), req.Config.Seed)

	outcomes := s.fitFamilies(ctx, req, families)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fitReport := &results.FitReport{Manifest: manifest}
	for _, family := range families {
		outcome := outcomes[family]
		if outcome.err != nil {
			if fitReport.Failures == nil {
				fitReport.Failures = make(map[string]string)
			}
			fitReport.Failures[family.String()] = outcome.err.Error()
			s.logger.Warn("[Analysis] run %s family %s failed: %v", manifest.RunID, family, outcome.err)
			continue
		}
		fitReport.Results = append(fitReport.Results, outcome.result)
	}

	if len(fitReport.Results) == 0 {
		parts := make([]string, 0, len(families))
		for _, family := range families {
			parts = append(parts, fmt.Sprintf("%s: %v", family, outcomes[family].err))
		}
		return nil, errors.New(errors.CodeOptimizationFailure,
			"every family failed to fit: "+strings.Join(parts, "; "))
	}

	s.logger.Info("[Analysis] run %s fitted %d/%d families in %dms",
		manifest.RunID, len(fitReport.Results), len(families), time.Since(startTime).Milliseconds())
	return fitReport, nil
}

type familyOutcome struct {
	family dist.Family
	result results.FitResult
	err    error
}

// fitFamilies fans out one goroutine per family, bounded by a weighted
// semaphore. Results are keyed by family, so completion order never matters.
func (s *AnalysisService) fitFamilies(ctx context.Context, req AnalysisRequest, families []dist.Family) map[dist.Family]familyOutcome {
	sem := semaphore.NewWeighted(familyConcurrency)
	reporter := report.NewReporter(s.engine, req.Config.Quantiles)
	resultChan := make(chan familyOutcome, len(families))

	var wg sync.WaitGroup
	for _, family := range families {
		wg.Add(1)
		go func(family dist.Family) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				resultChan <- familyOutcome{family: family, err: err}
				return
			}
			defer sem.Release(1)

			result, err := s.fitFamily(ctx, req, reporter, family)
			resultChan <- familyOutcome{family: family, result: result, err: err}
		}(family)
	}
	wg.Wait()
	close(resultChan)

	outcomes := make(map[dist.Family]familyOutcome, len(families))
	for outcome := range resultChan {
		outcomes[outcome.family] = outcome
	}
	return outcomes
}

// fitFamily produces the estimate table for one family. The family's seed is
// derived from the run seed and the family name alone, so results do not
// depend on scheduling or on which other families were requested.
func (s *AnalysisService) fitFamily(ctx context.Context, req AnalysisRequest, reporter *report.Reporter, family dist.Family) (results.FitResult, error) {
	method, err := resolveMethod(req.Method, family)
	if err != nil {
		return results.FitResult{}, err
	}

	seed, err := s.rngPort.StreamSeed(ctx, "fit/"+family.String(), req.Config.Seed)
	if err != nil {
		return results.FitResult{}, fmt.Errorf("failed to derive %s seed stream: %w", family, err)
	}

	if method == results.MethodMCMC {
		cfg := mcmc.DefaultConfig()
		cfg.Iterations = req.Config.MCMCIterations
		cfg.BurnInFrac = req.Config.MCMCBurnInFraction
		chain, err := mcmc.NewSampler(s.engine, cfg).Sample(ctx, req.Cohort, seed)
		if err != nil {
			return results.FitResult{}, err
		}
		return reporter.FromChain(chain, req.Cohort), nil
	}

	fit, err := s.estimator.Fit(family, req.Cohort, seed)
	if err != nil {
		return results.FitResult{}, err
	}

	engine := bootstrap.NewEngine(s.estimator, bootstrap.Config{
		Replicates:     req.Config.Replicates,
		Workers:        req.Config.Workers,
		MaxFailureFrac: req.Config.MaxFailureFrac,
	})
	sample, err := engine.Run(ctx, family, req.Cohort, seed)
	if err != nil {
		return results.FitResult{}, err
	}
	return reporter.FromBootstrap(fit, sample, req.Cohort), nil
}

// persist stores a synchronously completed run with its estimate rows and
// full report.
func (s *AnalysisService) persist(ctx context.Context, fitReport *results.FitReport) error {
	runID := fitReport.Manifest.RunID
	run := &results.Run{Manifest: fitReport.Manifest, Status: results.StatusComplete, UpdatedAt: core.Now()}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if err := s.store.SaveEstimates(ctx, runID, ports.FlattenEstimates(runID, fitReport)); err != nil {
		return fmt.Errorf("failed to save estimates: %w", err)
	}
	if err := s.store.SaveReport(ctx, runID, fitReport); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// validateRequest checks the request and resolves the family list. Every
// family must be known, requested at most once, and compatible with the
// requested method.
func (s *AnalysisService) validateRequest(req AnalysisRequest) ([]dist.Family, error) {
	if req.Cohort == nil || req.Cohort.Size() == 0 {
		return nil, errors.InvalidInput("analysis requires a non-empty cohort")
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}

	families := req.Families
	if len(families) == 0 {
		families = dist.Families()
	}

	seen := make(map[dist.Family]bool, len(families))
	for _, family := range families {
		if _, err := dist.ParseFamily(family.String()); err != nil {
			return nil, errors.InvalidInput(err.Error())
		}
		if seen[family] {
			return nil, errors.InvalidInput(fmt.Sprintf("family %s requested twice", family))
		}
		seen[family] = true
		if _, err := resolveMethod(req.Method, family); err != nil {
			return nil, err
		}
	}
	return families, nil
}

// buildManifest assembles the manifest for a validated request, generating a
// run ID if none was provided
func (s *AnalysisService) buildManifest(req AnalysisRequest, families []dist.Family) results.RunManifest {
	runID := req.RunID
	if runID == "" {
		runID = core.RunID(core.NewID())
	}
	return results.NewRunManifest(
		runID,
		req.Cohort.Hash(),
		configFingerprint(req, families),
		req.Config.Seed,
		CodeVersion,
		req.Epoch,
	)
}

// configFingerprint hashes the settings that shape results. Worker count
// never changes results, so it stays out of the hash; the seed enters the
// manifest fingerprint separately.
func configFingerprint(req AnalysisRequest, families []dist.Family) core.ConfigHash {
	names := make([]string, len(families))
	for i, family := range families {
		names[i] = family.String()
	}
	sort.Strings(names)

	return core.ComputeConfigHash(map[string]interface{}{
		"families":         strings.Join(names, ","),
		"method":           string(req.Method),
		"replicates":       req.Config.Replicates,
		"max_failure_frac": req.Config.MaxFailureFrac,
		"quantiles":        req.Config.Quantiles,
		"mcmc_iterations":  req.Config.MCMCIterations,
		"mcmc_burnin":      req.Config.MCMCBurnInFraction,
		"epoch":            req.Epoch.String(),
	})
}

// resolveMethod picks the estimation method for one family. An empty request
// method selects automatically: sampling for the integer-shape erlang family,
// direct optimization for the rest. Explicit methods must be compatible.
func resolveMethod(requested results.Method, family dist.Family) (results.Method, error) {
	switch requested {
	case "":
		if family == dist.Erlang {
			return results.MethodMCMC, nil
		}
		return results.MethodOptim, nil
	case results.MethodOptim:
		if family == dist.Erlang {
			return "", errors.InvalidInput("erlang has no direct optimization; use mcmc")
		}
		return results.MethodOptim, nil
	case results.MethodMCMC:
		if family != dist.Erlang {
			return "", errors.InvalidInput(fmt.Sprintf("mcmc supports erlang only, not %s", family))
		}
		return results.MethodMCMC, nil
	}
	return "", errors.InvalidInput(fmt.Sprintf("unknown method %q", requested))
}
