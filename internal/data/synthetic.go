package data

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-pricer/internal/pricing"
)

const (
	synthExpiries   = 6    // monthly expiries generated ahead of now
	synthStrikes    = 10   // strikes either side of the at-the-money strike
	synthRate       = 0.05 // rate used to mark synthetic quotes
	synthSmileCurve = 0.8  // vol added per unit of squared log-moneyness
)

// synthDataProvider implements Data Provider generating synthetic data.
// Output is a pure function of the seed, the underlying and the clock, so
// repeated calls agree with each other.
type synthDataProvider struct {
	seed      int64
	now       func() time.Time
	secondary Provider
}

func NewSyntheticProvider(seed int64) *synthDataProvider {
	return &synthDataProvider{seed: seed, now: time.Now}
}

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

func (synthDataProv *synthDataProvider) rng(underlying string, salt int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(underlying)))
	return rand.New(rand.NewSource(synthDataProv.seed ^ int64(h.Sum64()) ^ salt))
}

// params returns the spot and at-the-money volatility of underlying.
func (synthDataProv *synthDataProvider) params(underlying string) (spot, vol float64) {
	r := synthDataProv.rng(underlying, 0)
	spot = math.Round((20+r.Float64()*480)*100) / 100
	vol = 0.15 + r.Float64()*0.25
	return spot, vol
}

func (synthDataProv *synthDataProvider) GetSpot(underlying string) (float64, error) {
	spot, _ := synthDataProv.params(underlying)
	return spot, nil
}

// GetExpiries returns the third Friday of each of the next months.
func (synthDataProv *synthDataProvider) GetExpiries(underlying string) ([]time.Time, error) {
	now := synthDataProv.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]time.Time, 0, synthExpiries)
	for m := 0; len(out) < synthExpiries; m++ {
		exp := thirdFriday(today.Year(), today.Month()+time.Month(m))
		if exp.Before(today) {
			continue
		}
		out = append(out, exp)
	}
	return out, nil
}

// GetChain marks calls and puts around spot with Black-Scholes prices under a
// volatility smile.
func (synthDataProv *synthDataProvider) GetChain(underlying string, expiry time.Time) ([]Quote, error) {
	spot, atmVol := synthDataProv.params(underlying)
	interval := strikeInterval(spot)
	atm := math.Round(spot/interval) * interval

	now := synthDataProv.now().UTC()
	t := math.Max(0, math.Floor(expiry.Sub(now).Hours()/24)/365)
	r := synthDataProv.rng(underlying, expiry.Unix())
	lastTrade := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var quotes []Quote
	for i := -synthStrikes; i <= synthStrikes; i++ {
		k := atm + float64(i)*interval
		if k <= 0 {
			continue
		}
		m := math.Log(k / spot)
		vol := atmVol + synthSmileCurve*m*m

		for _, kind := range []pricing.OptionKind{pricing.Call, pricing.Put} {
			price, err := pricing.BlackScholesPrice(pricing.Params{
				Spot:         spot,
				Strike:       k,
				TimeToExpiry: t,
				RiskFreeRate: synthRate,
				Volatility:   vol,
				Kind:         kind,
			})
			if err != nil {
				return nil, err
			}
			spread := math.Max(0.01, price*0.02)
			change := r.NormFloat64() * 0.05 * price
			strike := decimal.NewFromFloat(k).Round(2)

			quotes = append(quotes, Quote{
				Symbol:            OptionSymbolFromParts(underlying, expiry, kind, strike),
				Underlying:        strings.ToUpper(underlying),
				Expiry:            expiry,
				Kind:              kind,
				Strike:            strike,
				LastPrice:         round2(price),
				Bid:               round2(math.Max(0, price-spread/2)),
				Ask:               round2(price + spread/2),
				Change:            round2(change),
				PercentChange:     round2(100 * change / math.Max(price, 0.01)),
				Volume:            int64(r.Intn(5000)),
				OpenInterest:      int64(r.Intn(20000)),
				ImpliedVolatility: vol,
				LastTradeDate:     lastTrade,
			})
		}
	}
	return quotes, nil
}

// GetBars walks a geometric random path that ends at the current spot.
func (synthDataProv *synthDataProvider) GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	spot, vol := synthDataProv.params(underlying)
	r := synthDataProv.rng(underlying, fromDate.Unix()^toDate.Unix())
	daily := vol / math.Sqrt(252)

	var out []Bar
	price := spot
	for cur := toDate; !cur.Before(fromDate); cur = cur.AddDate(0, 0, -1) {
		if cur.Weekday() == time.Saturday || cur.Weekday() == time.Sunday {
			continue
		}
		closePx := price
		openPx := closePx * math.Exp(-r.NormFloat64()*daily)
		high := math.Max(openPx, closePx) * (1 + math.Abs(r.NormFloat64())*daily/4)
		low := math.Min(openPx, closePx) * (1 - math.Abs(r.NormFloat64())*daily/4)
		out = append(out, Bar{Date: cur, Open: openPx, High: high, Low: low, Close: closePx, Vol: float64(1000 + r.Intn(5000))})
		price = openPx
	}

	// generated newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func thirdFriday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14)
}

func strikeInterval(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 100:
		return 1
	case spot < 250:
		return 2.5
	default:
		return 5
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
