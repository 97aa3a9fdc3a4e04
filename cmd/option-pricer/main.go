package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/contactkeval/option-pricer/internal/chain"
	"github.com/contactkeval/option-pricer/internal/config"
	"github.com/contactkeval/option-pricer/internal/data"
	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/report"
	"github.com/contactkeval/option-pricer/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("option-pricer: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("option-pricer", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to YAML config")
	rest := fs.Bool("rest", false, "run as REST server")
	addr := fs.String("addr", "", "REST server listen address (overrides config)")
	symbol := fs.String("chain", "", "price the option chain of this underlying")
	expiryFlag := fs.String("expiry", "", "chain expiry YYYY-MM-DD or all (default: nearest)")

	spot := fs.Float64("spot", 0, "spot price of the underlying")
	strike := fs.Float64("strike", 0, "strike price")
	maturity := fs.Float64("t", 0, "time to expiry in years")
	rate := fs.Float64("rate", 0, "risk-free rate (default: config)")
	vol := fs.Float64("vol", 0, "volatility")
	kind := fs.String("kind", "call", "option kind: call or put")
	model := fs.String("model", "", "black_scholes or binomial (default: config)")
	steps := fs.Int("steps", 0, "binomial steps (default: config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := logger.Configure(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}); err != nil {
		return err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["rate"] {
		*rate = cfg.Pricing.RiskFreeRate
	}
	if *model == "" {
		*model = cfg.Pricing.Model
	}
	if *steps == 0 {
		*steps = cfg.Pricing.Steps
	}

	// single valuation needs no market data
	if !*rest && *symbol == "" {
		res, err := pricing.Value(pricing.Request{
			Spot:         *spot,
			Strike:       *strike,
			TimeToExpiry: *maturity,
			RiskFreeRate: *rate,
			Volatility:   *vol,
			OptionKind:   *kind,
			Model:        *model,
			Steps:        *steps,
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	pricer, err := newPricer(cfg, *model, *steps, *rate)
	if err != nil {
		return err
	}

	if *rest {
		listen := cfg.Server.Addr
		if *addr != "" {
			listen = *addr
		}
		return serve(ctx, listen, server.New(pricer, cfg.Pricing.Workers).Router())
	}

	start := time.Now()
	var tables []*chain.Table
	if strings.EqualFold(*expiryFlag, "all") {
		set, err := pricer.PriceAll(ctx, *symbol)
		if err != nil {
			return err
		}
		tables = set.Tables
	} else {
		var expiry time.Time
		if *expiryFlag != "" {
			if expiry, err = time.Parse("2006-01-02", *expiryFlag); err != nil {
				return fmt.Errorf("invalid -expiry: %w", err)
			}
		}
		table, err := pricer.Price(ctx, *symbol, expiry)
		if err != nil {
			return err
		}
		tables = []*chain.Table{table}
	}

	for _, table := range tables {
		jsonPath, err := report.WriteJSON(table, cfg.Report.Dir)
		if err != nil {
			return err
		}
		csvPaths, err := report.WriteCSV(table, cfg.Report.Dir)
		if err != nil {
			return err
		}
		logger.Infof("%s %s: priced %d calls and %d puts (%d skipped)", table.Underlying,
			table.Expiry.Format("2006-01-02"), len(table.Calls), len(table.Puts), table.Skipped)
		fmt.Fprintln(stdout, jsonPath)
		for _, p := range csvPaths {
			fmt.Fprintln(stdout, p)
		}
	}
	logger.Infof("priced %d expiries in %v", len(tables), time.Since(start))
	return nil
}

func newPricer(cfg *config.Config, modelTag string, steps int, rate float64) (*chain.Pricer, error) {
	model, err := pricing.ParseModel(modelTag)
	if err != nil {
		return nil, err
	}

	var secondary data.Provider
	if cfg.Data.Fallback != "" {
		if secondary, err = data.NewProvider(providerOptions(cfg, cfg.Data.Fallback), nil); err != nil {
			return nil, err
		}
	}
	prov, err := data.NewProvider(providerOptions(cfg, cfg.Data.Provider), secondary)
	if err != nil {
		return nil, err
	}
	logger.Infof("%s provider enabled", cfg.Data.Provider)

	return &chain.Pricer{
		Provider:     prov,
		RiskFreeRate: rate,
		Model:        model,
		Steps:        steps,
		Workers:      cfg.Pricing.Workers,
	}, nil
}

func providerOptions(cfg *config.Config, name string) data.Options {
	return data.Options{
		Provider: name,
		Dir:      cfg.Data.Dir,
		APIKey:   cfg.Data.APIKey,
		BaseURL:  cfg.Data.BaseURL,
		Seed:     cfg.Data.Seed,
	}
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("starting REST server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Infof("shutting down REST server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
