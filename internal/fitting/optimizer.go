package fitting

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/internal"
	"incuba/internal/errors"
	"incuba/internal/likelihood"
)

const (
	maxIterations   = 2000
	convergeAbs     = 1e-10
	convergeWindow  = 100
	restartAttempts = 5
	restartSD       = 0.35 // perturbation sd in transformed coordinates
)

// Fit is the point-estimation outcome for one family on one cohort
type Fit struct {
	Dist   dist.Distribution
	LogLik float64
}

// Estimator maximizes the coarse-data likelihood over a family's
// two-parameter space with Nelder-Mead on transformed coordinates:
// (meanlog, log sdlog) for the log-normal family, (log shape, log scale)
// for gamma and Weibull.
type Estimator struct {
	engine *likelihood.Engine
	logger *internal.Logger
}

// NewEstimator creates a point estimator over the given likelihood engine
func NewEstimator(engine *likelihood.Engine) *Estimator {
	return &Estimator{
		engine: engine,
		logger: internal.NewDefaultLogger(),
	}
}

// Fit returns the maximum-likelihood fit of family to cohort. The seed
// drives the deterministic restart perturbations: a fixed (cohort, family,
// seed) triple always returns the identical fit. Erlang is not supported
// here; its integer shape goes through the MCMC estimator.
func (est *Estimator) Fit(family dist.Family, cohort *cases.Cohort, seed int64) (Fit, error) {
	switch family {
	case dist.LogNormal, dist.Gamma, dist.Weibull:
	default:
		return Fit{}, errors.InvalidInput("direct optimization supports log-normal, gamma and weibull only")
	}

	objective := func(x []float64) float64 {
		ll := est.engine.CohortLogLik(untransform(family, x), cohort)
		if math.IsNaN(ll) {
			return math.Inf(1)
		}
		return -ll
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   convergeAbs,
			Iterations: convergeWindow,
		},
	}

	start := transform(StartingPoint(family, cohort))
	rng := rand.New(rand.NewSource(seed))

	var lastErr error
	for attempt := 0; attempt <= restartAttempts; attempt++ {
		x0 := start
		if attempt > 0 {
			x0 = []float64{
				start[0] + rng.NormFloat64()*restartSD,
				start[1] + rng.NormFloat64()*restartSD,
			}
			est.logger.Debug("[Estimator] %s attempt %d restarting from (%.4f, %.4f)",
				family, attempt, x0[0], x0[1])
		}

		result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
		if err != nil {
			lastErr = err
			continue
		}
		if result.Status == optimize.IterationLimit {
			lastErr = errors.New(errors.CodeOptimizationFailure, "iteration budget exceeded")
			continue
		}
		if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
			lastErr = errors.New(errors.CodeOptimizationFailure, "no finite-likelihood parameters found")
			continue
		}

		fitted := untransform(family, result.X)
		if err := fitted.Validate(); err != nil {
			lastErr = err
			continue
		}
		return Fit{Dist: fitted, LogLik: -result.F}, nil
	}

	return Fit{}, errors.OptimizationFailure(family.String(), cohort.Size(), lastErr)
}

// transform maps parameters into unconstrained optimizer coordinates
func transform(d dist.Distribution) []float64 {
	if d.Family == dist.LogNormal {
		return []float64{d.P1, math.Log(d.P2)}
	}
	return []float64{math.Log(d.P1), math.Log(d.P2)}
}

// untransform maps optimizer coordinates back to the parameter domain
func untransform(family dist.Family, x []float64) dist.Distribution {
	if family == dist.LogNormal {
		return dist.Distribution{Family: family, P1: x[0], P2: math.Exp(x[1])}
	}
	return dist.Distribution{Family: family, P1: math.Exp(x[0]), P2: math.Exp(x[1])}
}
