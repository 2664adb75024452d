package mcmc

import (
	"context"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"

	"incuba/domain/cases"
	"incuba/domain/dist"
	"incuba/internal"
	"incuba/internal/errors"
	"incuba/internal/fitting"
	"incuba/internal/likelihood"
)

// Shape bounds for the Erlang family. The integer shape makes the
// likelihood surface discontinuous for a continuous optimizer, which is why
// this family is fit by sampling instead.
const (
	MinShape = 1
	MaxShape = 30
)

// Config holds sampler settings
type Config struct {
	Iterations int     // total chain length including burn-in
	BurnInFrac float64 // leading fraction of the chain to discard
	ScaleMax   float64 // upper bound of the flat scale prior
	StepSD     float64 // sd of the Gaussian random walk on scale
}

// DefaultConfig returns the standard sampler settings
func DefaultConfig() Config {
	return Config{
		Iterations: 20000,
		BurnInFrac: 0.2,
		ScaleMax:   50,
		StepSD:     0.25,
	}
}

// Draw is one state of the chain
type Draw struct {
	Shape  int     `json:"shape"`
	Scale  float64 `json:"scale"`
	LogLik float64 `json:"log_lik"`
}

// Chain is the raw Metropolis chain. The full draw sequence is exposed so
// callers can run their own convergence diagnostics; no automatic
// non-convergence detection is attempted.
type Chain struct {
	Draws  []Draw `json:"draws"`
	BurnIn int    `json:"burn_in"`
}

// Retained returns the post-burn-in draws
func (c *Chain) Retained() []Draw {
	return c.Draws[c.BurnIn:]
}

// PosteriorMedian returns the posterior median state. The median shape is
// rounded back to the integer grid and clamped to the prior bounds.
func (c *Chain) PosteriorMedian() (int, float64) {
	retained := c.Retained()
	shapes := make([]float64, len(retained))
	scales := make([]float64, len(retained))
	for i, d := range retained {
		shapes[i] = float64(d.Shape)
		scales[i] = d.Scale
	}

	medShape, _ := stats.Median(shapes)
	medScale, _ := stats.Median(scales)

	shape := int(math.Round(medShape))
	if shape < MinShape {
		shape = MinShape
	}
	if shape > MaxShape {
		shape = MaxShape
	}
	return shape, medScale
}

// Sampler fits the Erlang family by Metropolis sampling over
// (shape, scale) with a flat prior inside the bounds
type Sampler struct {
	engine *likelihood.Engine
	cfg    Config
	logger *internal.Logger
}

// NewSampler creates a sampler over the given likelihood engine
func NewSampler(engine *likelihood.Engine, cfg Config) *Sampler {
	return &Sampler{
		engine: engine,
		cfg:    cfg,
		logger: internal.NewDefaultLogger(),
	}
}

// Sample runs the chain. Each iteration proposes a ±1 move on shape and
// then a Gaussian random-walk move on scale, accepting each through the
// Metropolis ratio; out-of-bound proposals are rejected outright.
// Cancellation is honored between iterations.
func (s *Sampler) Sample(ctx context.Context, cohort *cases.Cohort, seed int64) (*Chain, error) {
	if s.cfg.Iterations < 1 {
		return nil, errors.MCMCFailure("iteration count must be positive", nil)
	}
	burnIn := int(float64(s.cfg.Iterations) * s.cfg.BurnInFrac)
	if burnIn >= s.cfg.Iterations {
		return nil, errors.MCMCFailure("burn-in leaves no retained draws", nil)
	}

	rng := rand.New(rand.NewSource(seed))

	shape, scale, ll, err := s.startingState(cohort)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("[MCMC] starting at shape=%d scale=%.4f loglik=%.4f", shape, scale, ll)

	draws := make([]Draw, 0, s.cfg.Iterations)
	for i := 0; i < s.cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Shape move.
		propShape := shape + 1
		if rng.Float64() < 0.5 {
			propShape = shape - 1
		}
		if propShape >= MinShape && propShape <= MaxShape {
			pll := s.logLik(propShape, scale, cohort)
			if accept(rng, pll-ll) {
				shape, ll = propShape, pll
			}
		}

		// Scale move.
		propScale := scale + rng.NormFloat64()*s.cfg.StepSD
		if propScale > 0 && propScale <= s.cfg.ScaleMax {
			pll := s.logLik(shape, propScale, cohort)
			if accept(rng, pll-ll) {
				scale, ll = propScale, pll
			}
		}

		draws = append(draws, Draw{Shape: shape, Scale: scale, LogLik: ll})
	}

	return &Chain{Draws: draws, BurnIn: burnIn}, nil
}

// startingState seeds the chain from moment matching, falling back to a
// grid scan when the seed state has zero likelihood.
func (s *Sampler) startingState(cohort *cases.Cohort) (int, float64, float64, error) {
	start := fitting.StartingPoint(dist.Erlang, cohort)
	shape := int(start.P1)
	if shape > MaxShape {
		shape = MaxShape
	}
	scale := math.Min(start.P2, s.cfg.ScaleMax)

	if ll := s.logLik(shape, scale, cohort); !math.IsInf(ll, -1) {
		return shape, scale, ll, nil
	}

	for _, sc := range []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32} {
		if sc > s.cfg.ScaleMax {
			break
		}
		for k := MinShape; k <= MaxShape; k++ {
			if ll := s.logLik(k, sc, cohort); !math.IsInf(ll, -1) {
				return k, sc, ll, nil
			}
		}
	}
	return 0, 0, 0, errors.MCMCFailure("no feasible starting state found", nil)
}

func (s *Sampler) logLik(shape int, scale float64, cohort *cases.Cohort) float64 {
	d := dist.Distribution{Family: dist.Erlang, P1: float64(shape), P2: scale}
	return s.engine.CohortLogLik(d, cohort)
}

// accept applies the Metropolis ratio on log-likelihoods. The flat prior
// cancels, so only the likelihood difference matters.
func accept(rng *rand.Rand, deltaLL float64) bool {
	if deltaLL >= 0 {
		return true
	}
	return math.Log(rng.Float64()) < deltaLL
}
