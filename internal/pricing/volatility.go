package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// fallbackVolatility is returned when there is too little history.
const fallbackVolatility = 0.30

// tradingDays annualizes daily volatility.
const tradingDays = 252.0

// AnnualizedVolatility estimates annual volatility from daily closes as the
// sample standard deviation of log returns times sqrt(252). With fewer than
// two returns (three usable closes) it returns 0.30. Non-positive closes are
// skipped.
func AnnualizedVolatility(closes []float64) float64 {
	rets := make([]float64, 0, len(closes))
	prev := 0.0
	for _, c := range closes {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		if prev > 0 {
			rets = append(rets, math.Log(c/prev))
		}
		prev = c
	}
	if len(rets) < 2 {
		return fallbackVolatility
	}
	return stat.StdDev(rets, nil) * math.Sqrt(tradingDays)
}
