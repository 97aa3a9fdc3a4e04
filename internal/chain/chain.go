// Package chain values the listed contracts of an underlying, one expiry at a
// time or across every listed expiry.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/option-pricer/internal/data"
	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/pricing"
)

// ErrProvider marks failures of the market-data provider.
var ErrProvider = errors.New("chain: market data unavailable")

// historyWindow is how far back bars are read for historical volatility.
const historyWindow = 365 * 24 * time.Hour

// Pricer assembles and values option chains.
type Pricer struct {
	Provider     data.Provider
	RiskFreeRate float64
	Model        pricing.Model
	Steps        int // binomial only; 0 means pricing.DefaultSteps
	Workers      int // 0 means GOMAXPROCS
	Now          func() time.Time
}

// Row is one valued contract.
type Row struct {
	Quote        data.Quote     `json:"quote"`
	TimeToExpiry float64        `json:"time_to_expiry"`
	Volatility   float64        `json:"volatility"`
	Result       pricing.Result `json:"result"`
}

// Table is a valued chain, calls and puts sorted by strike.
type Table struct {
	Underlying string        `json:"underlying"`
	Spot       float64       `json:"spot"`
	Expiry     time.Time     `json:"expiry"`
	Model      pricing.Model `json:"model"`
	Calls      []Row         `json:"calls"`
	Puts       []Row         `json:"puts"`
	Skipped    int           `json:"skipped"`
}

func (p *Pricer) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Expiries lists the expiries of underlying.
func (p *Pricer) Expiries(underlying string) ([]time.Time, error) {
	expiries, err := p.Provider.GetExpiries(underlying)
	if err != nil {
		return nil, fmt.Errorf("%w: expiries %s: %w", ErrProvider, underlying, err)
	}
	return expiries, nil
}

// ChainSet is the valued chain of every listed expiry of one underlying.
type ChainSet struct {
	Underlying string   `json:"underlying"`
	Spot       float64  `json:"spot"`
	Tables     []*Table `json:"tables"`
	Failed     []string `json:"failed,omitempty"` // expiries that could not be valued
}

// session carries the per-underlying inputs shared by every expiry.
type session struct {
	underlying string
	today      time.Time
	spot       float64
	histVol    float64 // < 0 until first needed
}

func (p *Pricer) open(underlying string) (*session, error) {
	underlying = strings.ToUpper(strings.TrimSpace(underlying))
	if underlying == "" {
		return nil, fmt.Errorf("%w: empty underlying", pricing.ErrInvalidParameter)
	}
	return &session{underlying: underlying, today: truncateDay(p.now()), histVol: -1}, nil
}

func (p *Pricer) loadSpot(s *session) error {
	spot, err := p.Provider.GetSpot(s.underlying)
	if err != nil {
		return fmt.Errorf("%w: spot %s: %w", ErrProvider, s.underlying, err)
	}
	s.spot = spot
	return nil
}

// Price values the chain of underlying at expiry. A zero expiry selects the
// nearest listed expiry that has not passed.
//
// Each contract is valued independently: contracts that fail to value are
// logged and counted in Table.Skipped.
func (p *Pricer) Price(ctx context.Context, underlying string, expiry time.Time) (*Table, error) {
	s, err := p.open(underlying)
	if err != nil {
		return nil, err
	}
	if expiry.IsZero() {
		next, err := p.nearestExpiry(s.underlying, s.today)
		if err != nil {
			return nil, err
		}
		expiry = next
	}
	if err := p.loadSpot(s); err != nil {
		return nil, err
	}
	return p.priceExpiry(ctx, s, expiry)
}

// PriceAll values the chain of underlying at every listed expiry. An expiry
// whose chain cannot be fetched or valued is logged, recorded in
// ChainSet.Failed and skipped. It is an error only when the expiries or the
// spot are unavailable, or when no expiry could be valued.
func (p *Pricer) PriceAll(ctx context.Context, underlying string) (*ChainSet, error) {
	s, err := p.open(underlying)
	if err != nil {
		return nil, err
	}
	expiries, err := p.Expiries(s.underlying)
	if err != nil {
		return nil, err
	}
	if len(expiries) == 0 {
		return nil, fmt.Errorf("%w: no expiries listed for %s", ErrProvider, s.underlying)
	}
	if err := p.loadSpot(s); err != nil {
		return nil, err
	}

	set := &ChainSet{Underlying: s.underlying, Spot: s.spot}
	for _, expiry := range expiries {
		table, err := p.priceExpiry(ctx, s, expiry)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			logger.Errorf("skipping %s expiry %s: %v", s.underlying, expiry.Format("2006-01-02"), err)
			set.Failed = append(set.Failed, expiry.Format("2006-01-02"))
			continue
		}
		set.Tables = append(set.Tables, table)
	}
	if len(set.Tables) == 0 {
		return nil, fmt.Errorf("%w: no expiry of %s could be valued", ErrProvider, s.underlying)
	}
	logger.Infof("%s: valued %d expiries, %d failed", s.underlying, len(set.Tables), len(set.Failed))
	return set, nil
}

func (p *Pricer) priceExpiry(ctx context.Context, s *session, expiry time.Time) (*Table, error) {
	underlying := s.underlying
	quotes, err := p.Provider.GetChain(underlying, expiry)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %s %s: %w", ErrProvider, underlying, expiry.Format("2006-01-02"), err)
	}
	logger.Infof("pricing %d contracts for %s expiring %s", len(quotes), underlying, expiry.Format("2006-01-02"))

	model := p.Model
	if model == "" {
		model = pricing.ModelBlackScholes
	}
	t := yearFraction(s.today, expiry)

	vols := make([]float64, len(quotes))
	reqs := make([]pricing.Request, len(quotes))
	for i, q := range quotes {
		vols[i] = q.ImpliedVolatility
		if vols[i] <= 0 || math.IsNaN(vols[i]) {
			if s.histVol < 0 {
				s.histVol = p.historicalVolatility(underlying, s.today)
			}
			vols[i] = s.histVol
		}
		reqs[i] = pricing.Request{
			Spot:         s.spot,
			Strike:       q.Strike.InexactFloat64(),
			TimeToExpiry: t,
			RiskFreeRate: p.RiskFreeRate,
			Volatility:   vols[i],
			OptionKind:   string(q.Kind),
			Model:        string(model),
			Steps:        p.Steps,
		}
	}

	outcomes := pricing.ValueBatch(ctx, reqs, p.Workers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := &Table{Underlying: underlying, Spot: s.spot, Expiry: expiry, Model: model}
	for i, o := range outcomes {
		if o.Err != nil {
			logger.Errorf("skipping %s: %v", quotes[i].Symbol, o.Err)
			table.Skipped++
			continue
		}
		row := Row{Quote: quotes[i], TimeToExpiry: t, Volatility: vols[i], Result: o.Result}
		if quotes[i].Kind == pricing.Put {
			table.Puts = append(table.Puts, row)
		} else {
			table.Calls = append(table.Calls, row)
		}
	}
	sortByStrike(table.Calls)
	sortByStrike(table.Puts)

	logger.Debugf("%s %s: %d calls, %d puts, %d skipped", underlying, expiry.Format("2006-01-02"), len(table.Calls), len(table.Puts), table.Skipped)
	return table, nil
}

func (p *Pricer) nearestExpiry(underlying string, today time.Time) (time.Time, error) {
	expiries, err := p.Expiries(underlying)
	if err != nil {
		return time.Time{}, err
	}
	for _, e := range expiries {
		if !truncateDay(e).Before(today) {
			return e, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: no upcoming expiry for %s", ErrProvider, underlying)
}

// historicalVolatility falls back to the default volatility when bars are
// unavailable.
func (p *Pricer) historicalVolatility(underlying string, today time.Time) float64 {
	bars, err := p.Provider.GetBars(underlying, today.Add(-historyWindow), today)
	if err != nil {
		logger.Warnf("no bars for %s, using default volatility: %v", underlying, err)
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	vol := pricing.AnnualizedVolatility(closes)
	logger.Debugf("%s historical volatility %.4f from %d bars", underlying, vol, len(bars))
	return vol
}

// yearFraction is whole calendar days from today to expiry over 365,
// floored at zero.
func yearFraction(today, expiry time.Time) float64 {
	days := math.Round(truncateDay(expiry).Sub(today).Hours() / 24)
	if days <= 0 {
		return 0
	}
	return days / 365
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sortByStrike(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Quote.Strike.LessThan(rows[j].Quote.Strike)
	})
}
