package fitting

import (
	"math"

	"incuba/domain/cases"
	"incuba/domain/dist"
)

// Fallback moments when a cohort has fewer than two positive window-midpoint
// delays or zero spread: a 5-day mean with a 2.5-day standard deviation.
const (
	fallbackMean = 5.0
	fallbackSD   = 2.5
)

// StartingPoint derives initial parameters by moment matching on the
// positive window-midpoint delays (mean m, standard deviation s):
//
//	log-normal: sdlog² = ln(1 + s²/m²), meanlog = ln m − sdlog²/2
//	gamma:      shape = (m/s)², scale = s²/m
//	Weibull:    shape = (s/m)^(−1.086), scale = m / Γ(1 + 1/shape)
//	Erlang:     shape = round((m/s)²) clamped to ≥ 1, scale = m/shape
//
// Small samples are sensitive to the seeding rule, so it is fixed here and
// exercised directly by tests.
func StartingPoint(family dist.Family, cohort *cases.Cohort) dist.Distribution {
	m, s, ok := cohort.MidpointMoments()
	if !ok {
		m, s = fallbackMean, fallbackSD
	}

	switch family {
	case dist.LogNormal:
		sigma2 := math.Log(1 + (s*s)/(m*m))
		return dist.Distribution{
			Family: family,
			P1:     math.Log(m) - sigma2/2,
			P2:     math.Sqrt(sigma2),
		}
	case dist.Gamma:
		return dist.Distribution{
			Family: family,
			P1:     (m / s) * (m / s),
			P2:     s * s / m,
		}
	case dist.Weibull:
		k := math.Pow(s/m, -1.086)
		return dist.Distribution{
			Family: family,
			P1:     k,
			P2:     m / math.Gamma(1+1/k),
		}
	default: // Erlang
		shape := math.Max(1, math.Round((m/s)*(m/s)))
		return dist.Distribution{
			Family: dist.Erlang,
			P1:     shape,
			P2:     m / shape,
		}
	}
}
