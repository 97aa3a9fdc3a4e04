package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/contactkeval/option-pricer/internal/testutil"
)

func referenceRequest(kind, model string) Request {
	return Request{
		Spot:         100,
		Strike:       100,
		TimeToExpiry: 1,
		RiskFreeRate: 0.05,
		Volatility:   0.2,
		OptionKind:   kind,
		Model:        model,
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]OptionKind{"call": Call, "CALL": Call, " put ": Put, "Put": Put}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "invalid", "c", "straddle"} {
		if _, err := ParseKind(in); !errors.Is(err, ErrInvalidOptionKind) {
			t.Fatalf("ParseKind(%q): expected ErrInvalidOptionKind, got %v", in, err)
		}
	}
}

func TestParseModel(t *testing.T) {
	cases := map[string]Model{
		"":              ModelBlackScholes,
		"black_scholes": ModelBlackScholes,
		"BS":            ModelBlackScholes,
		"analytic":      ModelBlackScholes,
		"binomial":      ModelBinomial,
		"lattice":       ModelBinomial,
		"CRR":           ModelBinomial,
	}
	for in, want := range cases {
		got, err := ParseModel(in)
		if err != nil || got != want {
			t.Fatalf("ParseModel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseModel("monte_carlo"); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestValue_InvalidKind(t *testing.T) {
	for _, model := range []string{"black_scholes", "binomial"} {
		res, err := Value(referenceRequest("invalid", model))
		if !errors.Is(err, ErrInvalidOptionKind) {
			t.Fatalf("%s: expected ErrInvalidOptionKind, got %v", model, err)
		}
		if res != (Result{}) {
			t.Fatalf("%s: expected no price, got %+v", model, res)
		}
	}
}

func TestValue_DispatchesToModel(t *testing.T) {
	bs, err := Value(referenceRequest("call", "black_scholes"))
	if err != nil {
		t.Fatalf("bs err: %v", err)
	}
	want, _ := BlackScholes(referenceParams(Call))
	if bs != want {
		t.Fatalf("black_scholes dispatch: got %+v want %+v", bs, want)
	}

	req := referenceRequest("put", "binomial")
	req.Steps = 64
	tree, err := Value(req)
	if err != nil {
		t.Fatalf("binomial err: %v", err)
	}
	wantTree, _ := Lattice(referenceParams(Put), 64)
	if tree != wantTree {
		t.Fatalf("binomial dispatch: got %+v want %+v", tree, wantTree)
	}
}

func TestValue_DefaultSteps(t *testing.T) {
	got, err := Value(referenceRequest("call", "binomial"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := Lattice(referenceParams(Call), DefaultSteps)
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestValue_NegativeSteps(t *testing.T) {
	req := referenceRequest("call", "binomial")
	req.Steps = -1
	if _, err := Value(req); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestValue_ExpiryScenario(t *testing.T) {
	for _, model := range []string{"black_scholes", "binomial"} {
		req := referenceRequest("call", model)
		req.TimeToExpiry = 0
		res, err := Value(req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", model, err)
		}
		if res != (Result{}) {
			t.Fatalf("%s: expected zero price and greeks, got %+v", model, res)
		}
	}
}

func TestValue_InvalidModel(t *testing.T) {
	if _, err := Value(referenceRequest("call", "heston")); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
	if _, err := Evaluate(Model("heston"), referenceParams(Call), 10); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel from Evaluate, got %v", err)
	}
}

func TestValueBatch_IndependentOutcomes(t *testing.T) {
	bad := referenceRequest("call", "")
	bad.Spot = -1

	reqs := []Request{
		referenceRequest("call", ""),
		referenceRequest("invalid", ""),
		bad,
		referenceRequest("put", "binomial"),
	}
	out := ValueBatch(context.Background(), reqs, 2)

	if len(out) != len(reqs) {
		t.Fatalf("expected %d outcomes, got %d", len(reqs), len(out))
	}
	if out[0].Err != nil {
		t.Fatalf("outcome 0: %v", out[0].Err)
	}
	testutil.InDelta(t, "outcome 0 price", out[0].Result.Price, 10.450583572185565, 1e-9)
	if !errors.Is(out[1].Err, ErrInvalidOptionKind) {
		t.Fatalf("outcome 1: expected ErrInvalidOptionKind, got %v", out[1].Err)
	}
	if !errors.Is(out[2].Err, ErrInvalidParameter) {
		t.Fatalf("outcome 2: expected ErrInvalidParameter, got %v", out[2].Err)
	}
	if out[3].Err != nil || out[3].Result.Price <= 0 {
		t.Fatalf("outcome 3: got %+v", out[3])
	}
}

func TestValueBatch_MatchesSequential(t *testing.T) {
	var reqs []Request
	for _, strike := range []float64{80, 90, 100, 110, 120} {
		for _, kind := range []string{"call", "put"} {
			r := referenceRequest(kind, "binomial")
			r.Strike = strike
			r.Steps = 50
			reqs = append(reqs, r)
		}
	}

	out := ValueBatch(context.Background(), reqs, 0)
	for i, r := range reqs {
		want, err := Value(r)
		if err != nil || out[i].Err != nil {
			t.Fatalf("request %d: %v / %v", i, err, out[i].Err)
		}
		if out[i].Result != want {
			t.Fatalf("request %d: parallel %+v != sequential %+v", i, out[i].Result, want)
		}
	}
}

func TestValueBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := ValueBatch(ctx, []Request{referenceRequest("call", ""), referenceRequest("put", "")}, 1)
	for i, o := range out {
		if !errors.Is(o.Err, context.Canceled) {
			t.Fatalf("outcome %d: expected context.Canceled, got %v", i, o.Err)
		}
	}
}
