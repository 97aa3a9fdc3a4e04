// Package pricing values European call and put options.
//
// Two independent models are provided:
//   - BlackScholes: closed-form price and Greeks in one pass
//   - Lattice: Cox-Ross-Rubinstein binomial tree, Greeks by finite differences
//
// Every valuation is a pure function of its Params. Nothing is cached and no
// state is shared between calls, so valuations may run on any number of
// goroutines without synchronization.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidOptionKind is returned for an option tag other than call/put.
	ErrInvalidOptionKind = errors.New("invalid option kind")

	// ErrInvalidParameter is returned when Params violate their invariants.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDegenerateLattice is returned when the risk-neutral probability of
	// the binomial tree falls outside (0, 1).
	ErrDegenerateLattice = errors.New("degenerate lattice regime")

	// ErrInvalidModel is returned for an unknown model tag.
	ErrInvalidModel = errors.New("invalid model")
)

// OptionKind is the option variant.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

// ParseKind maps a tag such as "call" or " PUT " to an OptionKind.
func ParseKind(s string) (OptionKind, error) {
	switch OptionKind(strings.ToLower(strings.TrimSpace(s))) {
	case Call:
		return Call, nil
	case Put:
		return Put, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOptionKind, s)
}

// Params is the immutable input of a single valuation.
type Params struct {
	Spot         float64    // current underlying price, > 0
	Strike       float64    // > 0
	TimeToExpiry float64    // years, >= 0; 0 means at/after expiry
	RiskFreeRate float64    // continuously compounded annual rate
	Volatility   float64    // annualized, > 0 whenever TimeToExpiry > 0
	Kind         OptionKind // Call or Put
}

// Validate checks the Params invariants.
func (p Params) Validate() error {
	switch p.Kind {
	case Call, Put:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOptionKind, string(p.Kind))
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"spot", p.Spot},
		{"strike", p.Strike},
		{"time_to_expiry", p.TimeToExpiry},
		{"risk_free_rate", p.RiskFreeRate},
		{"volatility", p.Volatility},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParameter, f.name)
		}
	}

	if p.Spot <= 0 {
		return fmt.Errorf("%w: spot must be > 0, got %g", ErrInvalidParameter, p.Spot)
	}
	if p.Strike <= 0 {
		return fmt.Errorf("%w: strike must be > 0, got %g", ErrInvalidParameter, p.Strike)
	}
	if p.TimeToExpiry < 0 {
		return fmt.Errorf("%w: time_to_expiry must be >= 0, got %g", ErrInvalidParameter, p.TimeToExpiry)
	}
	if p.TimeToExpiry > 0 && p.Volatility <= 0 {
		return fmt.Errorf("%w: volatility must be > 0 before expiry, got %g", ErrInvalidParameter, p.Volatility)
	}
	return nil
}

// expired reports whether the boundary rule applies.
func (p Params) expired() bool {
	return p.TimeToExpiry <= 0
}

// The with* helpers return perturbed copies; the receiver is never modified.

func (p Params) withSpot(v float64) Params {
	p.Spot = v
	return p
}

func (p Params) withVolatility(v float64) Params {
	p.Volatility = v
	return p
}

func (p Params) withRate(v float64) Params {
	p.RiskFreeRate = v
	return p
}

func (p Params) withTime(v float64) Params {
	p.TimeToExpiry = v
	return p
}
