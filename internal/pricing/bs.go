package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholes values a European option with the closed-form Black-Scholes
// model, returning the price and all five Greeks from their analytic
// formulas.
//
// Parameters:
//   - p: validated option parameters (Spot, Strike, TimeToExpiry,
//     RiskFreeRate, Volatility, Kind)
//
// Returns:
//
//	The price and Greeks. If TimeToExpiry is zero the price is the intrinsic
//	value and every Greek is zero. Invalid parameters return an error
//	wrapping ErrInvalidParameter or ErrInvalidOptionKind.
//
// Theta is the derivative with respect to calendar time (per year), so it is
// negative for a typical long option.
func BlackScholes(p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if p.expired() {
		return intrinsicResult(p), nil
	}

	S, K, T, r, sigma := p.Spot, p.Strike, p.TimeToExpiry, p.RiskFreeRate, p.Volatility

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discK := K * math.Exp(-r*T)
	pdf := normPDF(d1)

	res := Result{
		Greeks: Greeks{
			Gamma: pdf / (S * sigma * sqrtT),
			Vega:  S * pdf * sqrtT,
		},
	}
	decay := -(S * pdf * sigma) / (2 * sqrtT)

	switch p.Kind {
	case Call:
		res.Price = S*normCDF(d1) - discK*normCDF(d2)
		res.Delta = normCDF(d1)
		res.Theta = decay - r*discK*normCDF(d2)
		res.Rho = discK * T * normCDF(d2)
	case Put:
		res.Price = discK*normCDF(-d2) - S*normCDF(-d1)
		res.Delta = normCDF(d1) - 1
		res.Theta = decay + r*discK*normCDF(-d2)
		res.Rho = -discK * T * normCDF(-d2)
	}
	return res, nil
}

// BlackScholesPrice returns only the Black-Scholes price. It satisfies
// PriceFunc, which lets the closed form serve as a reference pricer for the
// finite-difference engine.
func BlackScholesPrice(p Params) (float64, error) {
	res, err := BlackScholes(p)
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// normCDF is the standard normal cumulative distribution.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
