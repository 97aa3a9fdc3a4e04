package pricing

import (
	"fmt"
	"math"
)

// DefaultSteps is the lattice depth used when a request does not set one.
const DefaultSteps = 100

// LatticePrice values a European option on a recombining Cox-Ross-Rubinstein
// binomial tree with the given number of time steps.
//
// Parameters:
//   - p: option parameters
//   - steps: number of time partitions, >= 1
//
// Returns:
//
//	The root value of the tree. At expiry the intrinsic value is returned
//	without building a tree. If the risk-neutral up-probability falls outside
//	(0, 1) the error wraps ErrDegenerateLattice; the probability is never
//	clamped.
//
// Only the European payoff at maturity is discounted backward; there is no
// early-exercise comparison at interior nodes.
func LatticePrice(p Params, steps int) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if steps < 1 {
		return 0, fmt.Errorf("%w: steps must be >= 1, got %d", ErrInvalidParameter, steps)
	}
	if p.expired() {
		return Payoff(p.Kind, p.Spot, p.Strike), nil
	}

	dt := p.TimeToExpiry / float64(steps)
	lnU := p.Volatility * math.Sqrt(dt)
	u := math.Exp(lnU)
	d := 1 / u
	q := (math.Exp(p.RiskFreeRate*dt) - d) / (u - d)
	if !(q > 0 && q < 1) {
		return 0, fmt.Errorf("%w: q=%g (rate=%g vol=%g dt=%g)",
			ErrDegenerateLattice, q, p.RiskFreeRate, p.Volatility, dt)
	}

	// Leaf i sits at spot * u^(steps-i) * d^i = spot * exp(lnU*(steps-2i)).
	// Working in log space keeps each node a single rounding away from exact.
	values := make([]float64, steps+1)
	for i := 0; i <= steps; i++ {
		leaf := p.Spot * math.Exp(lnU*float64(steps-2*i))
		values[i] = Payoff(p.Kind, leaf, p.Strike)
	}

	// One discount factor for every level.
	disc := math.Exp(-p.RiskFreeRate * dt)
	pu := disc * q
	pd := disc * (1 - q)
	for level := steps - 1; level >= 0; level-- {
		for i := 0; i <= level; i++ {
			values[i] = pu*values[i] + pd*values[i+1]
		}
	}

	return values[0], nil
}

// Lattice values a European option on a binomial tree and estimates its
// Greeks by finite differences of the tree price. Theta is measured over one
// lattice step.
func Lattice(p Params, steps int) (Result, error) {
	price, err := LatticePrice(p, steps)
	if err != nil {
		return Result{}, err
	}
	if p.expired() {
		return intrinsicResult(p), nil
	}

	pricer := func(q Params) (float64, error) {
		return LatticePrice(q, steps)
	}
	// Backward induction accumulates rounding over every level.
	ulps := max(roundoffULPs, 4*(steps+1))
	greeks, err := finiteDifference(pricer, p, price, p.TimeToExpiry/float64(steps), ulps)
	if err != nil {
		return Result{}, err
	}
	return Result{Price: price, Greeks: greeks}, nil
}
