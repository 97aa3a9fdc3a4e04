// This file contains a Massive-backed Provider implementation that retrieves
// spot prices, expiries, option chain snapshots and daily bars via the
// Massive (Polygon-compatible) HTTP APIs.
//
// Design notes:
//   - Uses raw HTTP calls instead of the official Massive SDK
//   - Supports pagination, rate-limiting retries, and fallback providers
//   - Logging is verbose at Debug/Trace levels for diagnostics

package data

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/pricing"
)

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	// APIKey used for authenticating requests with Massive.
	APIKey string

	// Client is the HTTP client used to make API requests.
	Client *http.Client

	// BaseURL is the root endpoint for Massive APIs
	// (e.g., https://api.massive.com).
	BaseURL string

	// secondary is an optional fallback provider.
	secondary Provider

	now   func() time.Time
	sleep func(time.Duration)
}

// massiveContract represents a single option contract
// returned by Massive's contracts reference endpoint.
type massiveContract struct {
	ContractType     string          `json:"contract_type"`
	ExerciseStyle    string          `json:"exercise_style"`
	ExpiryDate       string          `json:"expiration_date"`
	StrikePrice      decimal.Decimal `json:"strike_price"`
	Ticker           string          `json:"ticker"`
	UnderlyingTicker string          `json:"underlying_ticker"`
}

// massiveContractsResp models the paginated response
// returned by Massive's option contracts API.
type massiveContractsResp struct {
	Results   []massiveContract `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

// massiveSnapshot is one contract in an option chain snapshot.
type massiveSnapshot struct {
	Day struct {
		Change        float64 `json:"change"`
		ChangePercent float64 `json:"change_percent"`
		Close         float64 `json:"close"`
		Volume        float64 `json:"volume"`
		LastUpdated   int64   `json:"last_updated"` // epoch nanos
	} `json:"day"`
	Details           massiveContract `json:"details"`
	ImpliedVolatility float64         `json:"implied_volatility"`
	LastQuote         struct {
		Ask float64 `json:"ask"`
		Bid float64 `json:"bid"`
	} `json:"last_quote"`
	LastTrade struct {
		Price        float64 `json:"price"`
		SIPTimestamp int64   `json:"sip_timestamp"` // epoch nanos
	} `json:"last_trade"`
	OpenInterest    float64 `json:"open_interest"`
	UnderlyingAsset struct {
		Price  float64 `json:"price"`
		Ticker string  `json:"ticker"`
	} `json:"underlying_asset"`
}

type massiveSnapshotResp struct {
	Results []massiveSnapshot `json:"results"`
	Status  string            `json:"status"`
	NextURL string            `json:"next_url"`
}

// massiveAgg is one aggregate bar.
type massiveAgg struct {
	Open      float64 `json:"o"`
	Close     float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	VWAP      float64 `json:"vw"` // volume-weighted average price
	Volume    float64 `json:"v"`  // trading volume of the symbol in the given time period
	Trades    int64   `json:"n"`  // number of transactions in the aggregate window
	Timestamp int64   `json:"t"`  // epoch millis
}

type massiveAggsResp struct {
	Ticker  string       `json:"ticker"`
	Results []massiveAgg `json:"results"`
	Status  string       `json:"status"`
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// It initializes an HTTP client with sensible defaults for:
//   - timeouts
//   - connection pooling
//   - HTTP/2 support
//   - gzip decompression
func NewMassiveDataProvider(apiKey string) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	return &massiveDataProvider{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				DisableCompression:    false, // must be false to enable gzip auto-decompression
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL: "https://api.massive.com",
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetSpot returns the previous session's close for underlying.
func (massiveDataProv *massiveDataProvider) GetSpot(underlying string) (float64, error) {
	reqURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?adjusted=true",
		massiveDataProv.BaseURL, url.PathEscape(strings.ToUpper(underlying)))

	var body massiveAggsResp
	if err := massiveDataProv.getJSON(reqURL, &body); err != nil {
		return 0, fmt.Errorf("massive spot %s: %w", underlying, err)
	}
	if len(body.Results) == 0 {
		if massiveDataProv.secondary != nil {
			logger.Tracef("no previous close for %s, delegating to secondary provider", underlying)
			return massiveDataProv.secondary.GetSpot(underlying)
		}
		return 0, fmt.Errorf("massive spot %s: no results", underlying)
	}

	logger.Tracef("spot %s=%.4f", underlying, body.Results[0].Close)
	return body.Results[0].Close, nil
}

// GetExpiries lists the distinct expiration dates of unexpired contracts on
// underlying, following next_url pagination.
func (massiveDataProv *massiveDataProvider) GetExpiries(underlying string) ([]time.Time, error) {
	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/reference/options/contracts")
	if err != nil {
		return nil, err
	}
	query := u.Query()
	query.Set("underlying_ticker", strings.ToUpper(underlying))
	query.Set("expiration_date.gte", massiveDataProv.now().UTC().Format(dateLayout))
	query.Set("limit", "1000")
	u.RawQuery = query.Encode()

	var expiries []time.Time
	for reqURL := u.String(); reqURL != ""; {
		var page massiveContractsResp
		if err := massiveDataProv.getJSON(reqURL, &page); err != nil {
			return nil, fmt.Errorf("massive contracts %s: %w", underlying, err)
		}

		logger.Tracef("received %d contracts", len(page.Results))
		for _, c := range page.Results {
			t, err := time.Parse(dateLayout, c.ExpiryDate)
			if err != nil {
				continue // skip malformed expiry dates
			}
			expiries = append(expiries, t)
		}
		reqURL = page.NextURL
	}

	if len(expiries) == 0 && massiveDataProv.secondary != nil {
		logger.Tracef("no contracts for %s, delegating to secondary provider", underlying)
		return massiveDataProv.secondary.GetExpiries(underlying)
	}

	out := sortedUnique(expiries)
	logger.Infof("resolved %d unique expiries for %s", len(out), underlying)
	return out, nil
}

// GetChain returns the snapshot of every contract on underlying expiring on
// expiry.
func (massiveDataProv *massiveDataProvider) GetChain(underlying string, expiry time.Time) ([]Quote, error) {
	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/snapshot/options/" + url.PathEscape(strings.ToUpper(underlying)))
	if err != nil {
		return nil, err
	}
	query := u.Query()
	query.Set("expiration_date", expiry.Format(dateLayout))
	query.Set("limit", "250")
	u.RawQuery = query.Encode()

	var quotes []Quote
	for reqURL := u.String(); reqURL != ""; {
		var page massiveSnapshotResp
		if err := massiveDataProv.getJSON(reqURL, &page); err != nil {
			return nil, fmt.Errorf("massive chain %s: %w", underlying, err)
		}

		for _, s := range page.Results {
			q, err := s.quote(underlying)
			if err != nil {
				logger.Warnf("skipping snapshot %s: %v", s.Details.Ticker, err)
				continue
			}
			quotes = append(quotes, q)
		}
		reqURL = page.NextURL
	}

	if len(quotes) == 0 && massiveDataProv.secondary != nil {
		logger.Tracef("empty snapshot for %s %s, delegating to secondary provider", underlying, expiry.Format(dateLayout))
		return massiveDataProv.secondary.GetChain(underlying, expiry)
	}

	logger.Debugf("chain %s %s: %d quotes", underlying, expiry.Format(dateLayout), len(quotes))
	return quotes, nil
}

func (s massiveSnapshot) quote(underlying string) (Quote, error) {
	expiry, err := time.Parse(dateLayout, s.Details.ExpiryDate)
	if err != nil {
		return Quote{}, fmt.Errorf("bad expiry %q", s.Details.ExpiryDate)
	}
	kind, err := pricing.ParseKind(s.Details.ContractType)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Symbol:            s.Details.Ticker,
		Underlying:        strings.ToUpper(underlying),
		Expiry:            expiry,
		Kind:              kind,
		Strike:            s.Details.StrikePrice,
		LastPrice:         s.LastTrade.Price,
		Bid:               s.LastQuote.Bid,
		Ask:               s.LastQuote.Ask,
		Change:            s.Day.Change,
		PercentChange:     s.Day.ChangePercent,
		Volume:            int64(s.Day.Volume),
		OpenInterest:      int64(s.OpenInterest),
		ImpliedVolatility: s.ImpliedVolatility,
	}
	if q.LastPrice == 0 {
		q.LastPrice = s.Day.Close
	}
	if q.Symbol == "" {
		q.Symbol = OptionSymbolFromParts(underlying, expiry, kind, q.Strike)
	}
	if s.LastTrade.SIPTimestamp > 0 {
		q.LastTradeDate = time.Unix(0, s.LastTrade.SIPTimestamp).UTC()
	}
	return q, nil
}

// GetBars retrieves daily OHLCV bars for the given symbol and date range.
func (massiveDataProv *massiveDataProvider) GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	maxLimit := 50000

	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		underlying,
		fromDate.Format(dateLayout),
		toDate.Format(dateLayout),
	)

	reqURL := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=%d",
		massiveDataProv.BaseURL,
		url.PathEscape(strings.ToUpper(underlying)),
		fromDate.Format(dateLayout),
		toDate.Format(dateLayout),
		maxLimit,
	)

	var body massiveAggsResp
	if err := massiveDataProv.getJSON(reqURL, &body); err != nil {
		logger.Errorf("bars request failed: %v", err)
		return nil, fmt.Errorf("massive daily bars %s: %w", underlying, err)
	}

	logger.Tracef("bars received: %d records", len(body.Results))
	if len(body.Results) == 0 && massiveDataProv.secondary != nil {
		logger.Tracef("no bars for %s, delegating to secondary provider", underlying)
		return massiveDataProv.secondary.GetBars(underlying, fromDate, toDate)
	}

	out := make([]Bar, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, Bar{
			Date:  time.UnixMilli(r.Timestamp).UTC(),
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Vol:   r.Volume,
		})
	}
	return out, nil
}

// getJSON issues an authenticated GET and decodes a 200 response into out.
func (massiveDataProv *massiveDataProvider) getJSON(reqURL string, out any) error {
	logger.Debugf("massive request URL: %s", reqURL)

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+massiveDataProv.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "massive-client/1.0")

	resp, err := massiveDataProv.processGetRequest(req)
	if err != nil {
		if resp != nil {
			var dbg struct {
				Message string `json:"message"`
			}
			b, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			_ = json.Unmarshal(b, &dbg)
			logger.Errorf("massive API error status=%d message=%s", resp.StatusCode, dbg.Message)
			return fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message)
		}
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// processGetRequest executes an HTTP GET request with rate-limit handling.
//
// Behavior:
//   - Retries indefinitely on HTTP 429
//   - Sleeps until the next minute boundary
//   - Returns immediately on success (<400)
//   - Returns the response and an error for other status codes
func (massiveDataProv *massiveDataProvider) processGetRequest(
	req *http.Request,
) (*http.Response, error) {

	for {
		resp, err := massiveDataProv.Client.Do(req)
		if err != nil {
			return nil, err
		}

		// Success
		if resp.StatusCode < 400 {
			return resp, nil
		}

		// Handle per-minute rate limit (commonly 429)
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()

			// Sleep until the next minute boundary
			now := massiveDataProv.now()
			sleepDuration := now.Truncate(time.Minute).Add(time.Minute).Sub(now)

			logger.Infof("rate limit hit, sleeping for %s", sleepDuration)
			massiveDataProv.sleep(sleepDuration)
			continue
		}

		return resp, fmt.Errorf(
			"unexpected status code: %d",
			resp.StatusCode,
		)
	}
}
