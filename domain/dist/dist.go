package dist

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"

	"incuba/domain/core"
)

// Distribution is a closed four-family parametric distribution over positive
// incubation delays. P1 and P2 hold meanlog and sdlog for the log-normal
// family and shape and scale for gamma, Weibull and Erlang.
type Distribution struct {
	Family Family  `json:"family"`
	P1     float64 `json:"p1"`
	P2     float64 `json:"p2"`
}

// New creates a validated distribution
func New(family Family, p1, p2 float64) (Distribution, error) {
	d := Distribution{Family: family, P1: p1, P2: p2}
	if err := d.Validate(); err != nil {
		return Distribution{}, err
	}
	return d, nil
}

// Validate checks parameter domains per family
func (d Distribution) Validate() error {
	if math.IsNaN(d.P1) || math.IsInf(d.P1, 0) || math.IsNaN(d.P2) || math.IsInf(d.P2, 0) {
		return fmt.Errorf("%s: non-finite parameters (%g, %g)", d.Family, d.P1, d.P2)
	}
	switch d.Family {
	case LogNormal:
		if d.P2 <= 0 {
			return fmt.Errorf("log-normal sdlog must be positive, got %g", d.P2)
		}
	case Gamma, Weibull:
		if d.P1 <= 0 || d.P2 <= 0 {
			return fmt.Errorf("%s shape and scale must be positive, got (%g, %g)", d.Family, d.P1, d.P2)
		}
	case Erlang:
		if d.P1 < 1 || d.P1 != math.Trunc(d.P1) {
			return fmt.Errorf("erlang shape must be a positive integer, got %g", d.P1)
		}
		if d.P2 <= 0 {
			return fmt.Errorf("erlang scale must be positive, got %g", d.P2)
		}
	default:
		return fmt.Errorf("%w: %q", core.ErrUnknownFamily, string(d.Family))
	}
	return nil
}

// ParamNames returns the user-facing parameter names in P1, P2 order
func (d Distribution) ParamNames() [2]string {
	return d.Family.ParamNames()
}

// continuous is the slice of the gonum distuv surface the engine consumes.
type continuous interface {
	LogProb(float64) float64
	CDF(float64) float64
	Quantile(float64) float64
	Mean() float64
}

func (d Distribution) dist() continuous {
	switch d.Family {
	case LogNormal:
		return distuv.LogNormal{Mu: d.P1, Sigma: d.P2}
	case Gamma, Erlang:
		return distuv.Gamma{Alpha: d.P1, Beta: 1 / d.P2}
	case Weibull:
		return distuv.Weibull{K: d.P1, Lambda: d.P2}
	default:
		panic(fmt.Sprintf("unknown distribution family %q", d.Family))
	}
}

// LogProb returns the log-density at t. Points outside the positive support
// give -Inf.
func (d Distribution) LogProb(t float64) float64 {
	if t <= 0 {
		return math.Inf(-1)
	}
	return d.dist().LogProb(t)
}

// CDF returns P(T <= t)
func (d Distribution) CDF(t float64) float64 {
	if t <= 0 {
		return 0
	}
	return d.dist().CDF(t)
}

// Quantile returns the inverse CDF at probability p in (0, 1)
func (d Distribution) Quantile(p float64) float64 {
	return d.dist().Quantile(p)
}

// Mean returns the distribution mean in days
func (d Distribution) Mean() float64 {
	return d.dist().Mean()
}

// IntCDF returns the integrated CDF G(u) = ∫₀ᵘ F(t) dt. G is convex and
// nondecreasing, so second differences of G are never negative; the doubly
// censored likelihood contribution is such a second difference.
func (d Distribution) IntCDF(u float64) float64 {
	if u <= 0 {
		return 0
	}
	return u*d.CDF(u) - d.partialMean(u)
}

// partialMean returns M(u) = ∫₀ᵘ t f(t) dt in closed form per family.
func (d Distribution) partialMean(u float64) float64 {
	switch d.Family {
	case LogNormal:
		mu, sigma := d.P1, d.P2
		phi := distuv.UnitNormal.CDF((math.Log(u)-mu)/sigma - sigma)
		if phi == 0 {
			return 0
		}
		return math.Exp(mu+sigma*sigma/2) * phi
	case Gamma, Erlang:
		shape, scale := d.P1, d.P2
		return shape * scale * mathext.GammaIncReg(shape+1, u/scale)
	case Weibull:
		k, lambda := d.P1, d.P2
		x := math.Pow(u/lambda, k)
		if math.IsInf(x, 1) {
			return lambda * math.Gamma(1+1/k)
		}
		return lambda * math.Gamma(1+1/k) * mathext.GammaIncReg(1+1/k, x)
	default:
		panic(fmt.Sprintf("unknown distribution family %q", d.Family))
	}
}
