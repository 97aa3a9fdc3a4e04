package pricing

import (
	"fmt"
	"strings"
)

// Model selects the valuation method.
type Model string

const (
	ModelBlackScholes Model = "black_scholes"
	ModelBinomial     Model = "binomial"
)

// ParseModel maps a model tag (or one of its aliases) to a Model. An empty
// tag selects Black-Scholes.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "black_scholes", "blackscholes", "analytic", "bs":
		return ModelBlackScholes, nil
	case "binomial", "lattice", "crr":
		return ModelBinomial, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidModel, s)
}

// Request is the single request shape accepted by the pricing core.
type Request struct {
	Spot         float64 `json:"spot"`
	Strike       float64 `json:"strike"`
	TimeToExpiry float64 `json:"time_to_expiry"`
	RiskFreeRate float64 `json:"risk_free_rate"`
	Volatility   float64 `json:"volatility"`
	OptionKind   string  `json:"option_kind"`
	Model        string  `json:"model,omitempty"`
	Steps        int     `json:"steps,omitempty"` // lattice only; 0 means DefaultSteps
}

// Value dispatches a request to the chosen model. Tags are resolved before
// any price is computed, so an unknown option kind or model never produces
// a number.
func Value(req Request) (Result, error) {
	kind, err := ParseKind(req.OptionKind)
	if err != nil {
		return Result{}, err
	}
	model, err := ParseModel(req.Model)
	if err != nil {
		return Result{}, err
	}

	p := Params{
		Spot:         req.Spot,
		Strike:       req.Strike,
		TimeToExpiry: req.TimeToExpiry,
		RiskFreeRate: req.RiskFreeRate,
		Volatility:   req.Volatility,
		Kind:         kind,
	}

	steps := req.Steps
	if steps == 0 {
		steps = DefaultSteps
	}
	return Evaluate(model, p, steps)
}

// Evaluate values p with model. steps is used by the binomial model only.
func Evaluate(model Model, p Params, steps int) (Result, error) {
	switch model {
	case ModelBlackScholes:
		return BlackScholes(p)
	case ModelBinomial:
		return Lattice(p, steps)
	}
	return Result{}, fmt.Errorf("%w: %q", ErrInvalidModel, string(model))
}
