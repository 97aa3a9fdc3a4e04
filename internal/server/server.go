// Package server exposes the pricing core and chain pricer over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/contactkeval/option-pricer/internal/chain"
	"github.com/contactkeval/option-pricer/internal/logger"
	"github.com/contactkeval/option-pricer/internal/pricing"
)

const (
	// maxBatch caps the number of requests accepted by one batch call.
	maxBatch = 10000
	// defaultMaxBody caps a request body before it is decoded.
	defaultMaxBody = 4 << 20
)

var errBodyTooLarge = errors.New("request body too large")

// Server holds the HTTP handlers.
type Server struct {
	pricer  *chain.Pricer
	workers int
	maxBody int64
}

// New returns a Server valuing chains with pricer and batches on workers
// goroutines (0 means GOMAXPROCS).
func New(pricer *chain.Pricer, workers int) *Server {
	return &Server{pricer: pricer, workers: workers, maxBody: defaultMaxBody}
}

// Router returns the routes:
//
//	POST /v1/price
//	POST /v1/price/batch
//	GET  /v1/chain/{underlying}?expiry=YYYY-MM-DD|all
//	GET  /v1/expiries/{underlying}
//	GET  /health
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/v1/price", s.handlePrice).Methods("POST")
	r.HandleFunc("/v1/price/batch", s.handleBatch).Methods("POST")
	r.HandleFunc("/v1/chain/{underlying}", s.handleChain).Methods("GET")
	r.HandleFunc("/v1/expiries/{underlying}", s.handleExpiries).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	return r
}

// batchItem is one element of a batch response.
type batchItem struct {
	Result *pricing.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := pricing.Value(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []pricing.Request
	if err := s.decode(w, r, &reqs); err != nil {
		writeError(w, err)
		return
	}
	if len(reqs) > maxBatch {
		writeError(w, fmt.Errorf("%w: batch of %d exceeds %d requests", pricing.ErrInvalidParameter, len(reqs), maxBatch))
		return
	}

	outcomes := pricing.ValueBatch(r.Context(), reqs, s.workers)
	items := make([]batchItem, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			items[i].Error = o.Err.Error()
			continue
		}
		res := o.Result
		items[i].Result = &res
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	underlying := mux.Vars(r)["underlying"]

	var expiry time.Time
	v := r.URL.Query().Get("expiry")
	if strings.EqualFold(v, "all") {
		set, err := s.pricer.PriceAll(r.Context(), underlying)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, set)
		return
	}
	if v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, fmt.Errorf("%w: expiry %q: want YYYY-MM-DD", pricing.ErrInvalidParameter, v))
			return
		}
		expiry = t
	}

	table, err := s.pricer.Price(r.Context(), underlying, expiry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleExpiries(w http.ResponseWriter, r *http.Request) {
	underlying := strings.ToUpper(mux.Vars(r)["underlying"])

	expiries, err := s.pricer.Expiries(underlying)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]string, len(expiries))
	for i, e := range expiries {
		out[i] = e.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, map[string]any{"underlying": underlying, "expiries": out})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: request body: %v", pricing.ErrInvalidParameter, err)
	}
	return nil
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidOptionKind),
		errors.Is(err, pricing.ErrInvalidParameter),
		errors.Is(err, pricing.ErrInvalidModel),
		errors.Is(err, pricing.ErrDegenerateLattice):
		return http.StatusBadRequest
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, chain.ErrProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("request failed: %v", err)
	} else {
		logger.Debugf("rejected request: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("encoding response: %v", err)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s in %v", r.Method, r.URL.Path, time.Since(start))
	})
}
