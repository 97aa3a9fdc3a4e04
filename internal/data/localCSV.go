package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/pricing"
)

// localCSVProvider implements Provider from CSV files in one directory:
//
//	spot.csv              underlying,price
//	<UNDERLYING>_chain.csv header row, columns matched by name
//	<UNDERLYING>_bars.csv  date,open,high,low,close,volume
//
// A missing file falls through to the secondary provider when one is set.
type localCSVProvider struct {
	dir       string
	secondary Provider
}

// NewLocalCSVProvider convenience constructor.
func NewLocalCSVProvider(dir string, secondary Provider) *localCSVProvider {
	return &localCSVProvider{dir: dir, secondary: secondary}
}

func (localCSVProv *localCSVProvider) Secondary() Provider {
	return localCSVProv.secondary
}

func (localCSVProv *localCSVProvider) GetSpot(underlying string) (float64, error) {
	records, err := localCSVProv.readAll("spot.csv")
	if errors.Is(err, os.ErrNotExist) && localCSVProv.secondary != nil {
		return localCSVProv.secondary.GetSpot(underlying)
	}
	if err != nil {
		return 0, err
	}

	for _, row := range records {
		if len(row) < 2 || !strings.EqualFold(strings.TrimSpace(row[0]), underlying) {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return 0, fmt.Errorf("spot.csv: bad price for %s: %w", underlying, err)
		}
		return price, nil
	}

	if localCSVProv.secondary != nil {
		return localCSVProv.secondary.GetSpot(underlying)
	}
	return 0, fmt.Errorf("spot.csv: no price for %s", underlying)
}

func (localCSVProv *localCSVProvider) GetExpiries(underlying string) ([]time.Time, error) {
	quotes, err := localCSVProv.loadChain(underlying)
	if errors.Is(err, os.ErrNotExist) && localCSVProv.secondary != nil {
		return localCSVProv.secondary.GetExpiries(underlying)
	}
	if err != nil {
		return nil, err
	}

	expiries := make([]time.Time, 0, len(quotes))
	for _, q := range quotes {
		expiries = append(expiries, q.Expiry)
	}
	return sortedUnique(expiries), nil
}

func (localCSVProv *localCSVProvider) GetChain(underlying string, expiry time.Time) ([]Quote, error) {
	quotes, err := localCSVProv.loadChain(underlying)
	if errors.Is(err, os.ErrNotExist) && localCSVProv.secondary != nil {
		return localCSVProv.secondary.GetChain(underlying, expiry)
	}
	if err != nil {
		return nil, err
	}

	out := quotes[:0]
	for _, q := range quotes {
		if sameDate(q.Expiry, expiry) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (localCSVProv *localCSVProvider) GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	records, err := localCSVProv.readAll(strings.ToUpper(underlying) + "_bars.csv")
	if errors.Is(err, os.ErrNotExist) && localCSVProv.secondary != nil {
		return localCSVProv.secondary.GetBars(underlying, fromDate, toDate)
	}
	if err != nil {
		return nil, err
	}

	var out []Bar
	for i, row := range records {
		if len(row) < 6 {
			continue
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			if i > 0 {
				logger.Warnf("bars %s: skipping row %d: %v", underlying, i+1, err)
			}
			continue // header, or malformed
		}
		if date.Before(fromDate) || date.After(toDate) {
			continue
		}

		vals := make([]float64, 5)
		ok := true
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64); err != nil {
				logger.Warnf("bars %s: skipping row %d: %v", underlying, i+1, err)
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		out = append(out, Bar{Date: date, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Vol: vals[4]})
	}
	return out, nil
}

// loadChain parses <UNDERLYING>_chain.csv. Rows without a usable expiry,
// kind or strike are skipped with a warning.
func (localCSVProv *localCSVProvider) loadChain(underlying string) ([]Quote, error) {
	name := strings.ToUpper(underlying) + "_chain.csv"
	records, err := localCSVProv.readAll(name)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", name)
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"expiry", "kind", "strike"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", name, required)
		}
	}

	field := func(row []string, col string) string {
		if i, ok := cols[col]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	num := func(row []string, col string) float64 {
		v, _ := strconv.ParseFloat(field(row, col), 64)
		return v
	}
	count := func(row []string, col string) int64 {
		v, _ := strconv.ParseInt(field(row, col), 10, 64)
		return v
	}

	quotes := make([]Quote, 0, len(records)-1)
	for i, row := range records[1:] {
		expiry, err := time.Parse(dateLayout, field(row, "expiry"))
		if err != nil {
			logger.Warnf("%s: skipping row %d: bad expiry: %v", name, i+2, err)
			continue
		}
		kind, err := pricing.ParseKind(field(row, "kind"))
		if err != nil {
			logger.Warnf("%s: skipping row %d: %v", name, i+2, err)
			continue
		}
		strike, err := decimal.NewFromString(field(row, "strike"))
		if err != nil {
			logger.Warnf("%s: skipping row %d: bad strike: %v", name, i+2, err)
			continue
		}

		q := Quote{
			Symbol:            field(row, "contract_symbol"),
			Underlying:        strings.ToUpper(underlying),
			Expiry:            expiry,
			Kind:              kind,
			Strike:            strike,
			LastPrice:         num(row, "last_price"),
			Bid:               num(row, "bid"),
			Ask:               num(row, "ask"),
			Change:            num(row, "change"),
			PercentChange:     num(row, "percent_change"),
			Volume:            count(row, "volume"),
			OpenInterest:      count(row, "open_interest"),
			ImpliedVolatility: num(row, "implied_volatility"),
		}
		if q.Symbol == "" {
			q.Symbol = OptionSymbolFromParts(underlying, expiry, kind, strike)
		}
		if s := field(row, "last_trade_date"); s != "" {
			if t, err := time.Parse(dateLayout, s); err == nil {
				q.LastTradeDate = t
			}
		}
		quotes = append(quotes, q)
	}

	logger.Debugf("%s: loaded %d quotes", name, len(quotes))
	return quotes, nil
}

func (localCSVProv *localCSVProvider) readAll(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(localCSVProv.dir, name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		records = append(records, row)
	}
	return records, nil
}
