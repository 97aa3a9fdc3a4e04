// Package data supplies market data to the chain pricer: underlying spot
// prices, listed expiries, option quotes and daily bars.
package data

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-pricer/internal/pricing"
)

const dateLayout = "2006-01-02"

// Provider supplies market data
type Provider interface {
	Secondary() Provider
	GetSpot(underlying string) (float64, error)
	GetExpiries(underlying string) ([]time.Time, error)
	GetChain(underlying string, expiry time.Time) ([]Quote, error)
	GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error)
}

// Bar simplified OHLC
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64
}

// Quote is one listed option contract with its latest market data.
type Quote struct {
	Symbol            string             `json:"contract_symbol"`
	Underlying        string             `json:"underlying"`
	Expiry            time.Time          `json:"expiry"`
	Kind              pricing.OptionKind `json:"kind"`
	Strike            decimal.Decimal    `json:"strike"`
	LastPrice         float64            `json:"last_price"`
	Bid               float64            `json:"bid"`
	Ask               float64            `json:"ask"`
	Change            float64            `json:"change"`
	PercentChange     float64            `json:"percent_change"`
	Volume            int64              `json:"volume"`
	OpenInterest      int64              `json:"open_interest"`
	ImpliedVolatility float64            `json:"implied_volatility"`
	LastTradeDate     time.Time          `json:"last_trade_date"`
}

// Options selects and configures a provider.
type Options struct {
	Provider string // synthetic | local | massive
	Dir      string
	APIKey   string
	BaseURL  string
	Seed     int64
}

// NewProvider builds the provider named by opts.Provider. secondary may be
// nil.
func NewProvider(opts Options, secondary Provider) (Provider, error) {
	switch strings.ToLower(opts.Provider) {
	case "synthetic":
		p := NewSyntheticProvider(opts.Seed)
		p.secondary = secondary
		return p, nil
	case "local":
		if opts.Dir == "" {
			return nil, fmt.Errorf("local provider requires a directory")
		}
		return NewLocalCSVProvider(opts.Dir, secondary), nil
	case "massive":
		p := NewMassiveDataProvider(opts.APIKey)
		if opts.BaseURL != "" {
			p.BaseURL = strings.TrimRight(opts.BaseURL, "/")
		}
		p.secondary = secondary
		return p, nil
	}
	return nil, fmt.Errorf("unknown data provider %q", opts.Provider)
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// OptionSymbolFromParts formats an OCC-style contract symbol:
// O:<root><YYMMDD><C|P><strike*1000 padded to 8 digits>.
func OptionSymbolFromParts(underlying string, expiryDate time.Time, kind pricing.OptionKind, strike decimal.Decimal) string {
	expDt := expiryDate.UTC().Format("060102")
	optType := "C"
	if kind == pricing.Put {
		optType = "P"
	}
	strikeInt := strike.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, optType, strikeInt)
}

// sortedUnique returns the distinct calendar dates of ts in ascending order.
func sortedUnique(ts []time.Time) []time.Time {
	seen := make(map[string]time.Time, len(ts))
	for _, t := range ts {
		seen[t.Format(dateLayout)] = t
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sameDate(a, b time.Time) bool {
	return a.Format(dateLayout) == b.Format(dateLayout)
}
