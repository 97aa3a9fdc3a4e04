package pricing

import "math"

// Payoff returns the intrinsic value of an option of the given kind when the
// underlying trades at price.
func Payoff(kind OptionKind, price, strike float64) float64 {
	if kind == Put {
		return math.Max(strike-price, 0)
	}
	return math.Max(price-strike, 0)
}

// Greeks holds the five sensitivities of an option price.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// Result is the response shape of every valuation.
type Result struct {
	Price float64 `json:"price"`
	Greeks
}

// intrinsicResult is the at-expiry convention shared by both models: the
// price is the payoff at spot and every Greek is zero.
func intrinsicResult(p Params) Result {
	return Result{Price: Payoff(p.Kind, p.Spot, p.Strike)}
}
