package pricing

import (
	"fmt"
	"math"
)

// bump is the perturbation applied to spot, volatility and rate by the
// finite-difference engine.
const bump = 0.01

// roundoffULPs is the cancellation error, in units of the largest price
// involved, that a price difference is allowed before it counts as signal.
const roundoffULPs = 64

// PriceFunc is any scalar pricer over Params.
type PriceFunc func(Params) (float64, error)

// FiniteDifferenceGreeks estimates Delta, Gamma, Vega, Theta and Rho of
// price around p:
//   - Delta, Vega, Rho: central differences with step bump
//   - Gamma: central second difference over spot ± 2*bump
//   - Theta: one-sided difference (price(T-thetaStep) - price(T)) / thetaStep
//
// thetaStep must lie in (0, TimeToExpiry]; lattice callers pass T/steps.
// Every perturbed evaluation runs on its own copy of p. At expiry every Greek
// is zero.
//
// Differences within rounding error of zero are reported as zero, and a
// Delta within rounding error of ±1 is reported as ±1. Estimates outside the
// rounding band are returned as computed.
func FiniteDifferenceGreeks(price PriceFunc, p Params, thetaStep float64) (Greeks, error) {
	if err := p.Validate(); err != nil {
		return Greeks{}, err
	}
	if p.expired() {
		return Greeks{}, nil
	}
	base, err := price(p)
	if err != nil {
		return Greeks{}, err
	}
	return finiteDifference(price, p, base, thetaStep, roundoffULPs)
}

// finiteDifference does the work of FiniteDifferenceGreeks given the already
// computed unperturbed price. ulps sets the rounding band; pricers that sum
// many terms need a wider one.
func finiteDifference(price PriceFunc, p Params, base, thetaStep float64, ulps int) (Greeks, error) {
	if !(thetaStep > 0 && thetaStep <= p.TimeToExpiry) {
		return Greeks{}, fmt.Errorf("%w: theta step %g outside (0, %g]",
			ErrInvalidParameter, thetaStep, p.TimeToExpiry)
	}

	var (
		g    Greeks
		errs error
	)
	eval := func(greek string, q Params) float64 {
		if errs != nil {
			return 0
		}
		v, err := price(q)
		if err != nil {
			errs = fmt.Errorf("%s: %w", greek, err)
		}
		return v
	}

	up := eval("delta", p.withSpot(p.Spot+bump))
	down := eval("delta", p.withSpot(p.Spot-bump))
	// The perturbed spots themselves round at the scale of Spot.
	spotTol := roundoff(ulps, up, down, p.Spot)
	g.Delta = snapTo(snapTo(up-down, spotTol, 0)/(2*bump), spotTol/(2*bump), 1, -1)

	up2 := eval("gamma", p.withSpot(p.Spot+2*bump))
	down2 := eval("gamma", p.withSpot(p.Spot-2*bump))
	g.Gamma = snapTo(up2-2*base+down2, roundoff(ulps, up2, 2*base, down2, p.Spot), 0) / (4 * bump * bump)

	volUp := eval("vega", p.withVolatility(p.Volatility+bump))
	volDown := eval("vega", p.withVolatility(p.Volatility-bump))
	g.Vega = snapTo(volUp-volDown, roundoff(ulps, volUp, volDown), 0) / (2 * bump)

	// T - thetaStep may land exactly on expiry (steps == 1), where the
	// boundary rule returns intrinsic value.
	earlier := eval("theta", p.withTime(p.TimeToExpiry-thetaStep))
	g.Theta = (earlier - base) / thetaStep

	rateUp := eval("rho", p.withRate(p.RiskFreeRate+bump))
	rateDown := eval("rho", p.withRate(p.RiskFreeRate-bump))
	g.Rho = snapTo(rateUp-rateDown, roundoff(ulps, rateUp, rateDown), 0) / (2 * bump)

	if errs != nil {
		return Greeks{}, errs
	}
	return g, nil
}

// roundoff is ulps units of rounding at the magnitude of the largest of xs.
func roundoff(ulps int, xs ...float64) float64 {
	var m float64
	for _, x := range xs {
		m = math.Max(m, math.Abs(x))
	}
	return float64(ulps) * 0x1p-52 * m
}

// snapTo returns the first target within tol of v, or v itself.
func snapTo(v, tol float64, targets ...float64) float64 {
	for _, t := range targets {
		if math.Abs(v-t) <= tol {
			return t
		}
	}
	return v
}
