// Package report writes valued option chains to disk.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-pricer/internal/chain"
)

var csvHeaders = []string{
	"contract_symbol", "strike", "last_price", "bid", "ask", "volume", "open_interest",
	"implied_volatility", "time_to_expiry", "model_price", "delta", "gamma", "vega", "theta", "rho",
}

func baseName(table *chain.Table) string {
	return fmt.Sprintf("%s_%s", table.Underlying, table.Expiry.Format("2006-01-02"))
}

// WriteJSON writes table to <outdir>/<UNDERLYING>_<expiry>.json and returns
// the path.
func WriteJSON(table *chain.Table, outdir string) (string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(outdir, baseName(table)+".json")
	return path, os.WriteFile(path, b, 0644)
}

// WriteCSV writes one file for calls and one for puts and returns their
// paths.
func WriteCSV(table *chain.Table, outdir string) ([]string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return nil, err
	}
	sides := []struct {
		suffix string
		rows   []chain.Row
	}{{"calls", table.Calls}, {"puts", table.Puts}}

	var paths []string
	for _, side := range sides {
		path := filepath.Join(outdir, baseName(table)+"_"+side.suffix+".csv")
		if err := writeRows(path, side.rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeRows(path string, rows []chain.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeaders); err != nil {
		return err
	}
	for _, r := range rows {
		q := r.Quote
		row := []string{
			q.Symbol,
			q.Strike.String(),
			fixed(q.LastPrice, 2),
			fixed(q.Bid, 2),
			fixed(q.Ask, 2),
			fmt.Sprintf("%d", q.Volume),
			fmt.Sprintf("%d", q.OpenInterest),
			fixed(r.Volatility, 4),
			fixed(r.TimeToExpiry, 6),
			fixed(r.Result.Price, 4),
			fixed(r.Result.Delta, 4),
			fixed(r.Result.Gamma, 4),
			fixed(r.Result.Vega, 4),
			fixed(r.Result.Theta, 4),
			fixed(r.Result.Rho, 4),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// fixed rounds v half away from zero to places decimals.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
