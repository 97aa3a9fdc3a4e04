package pricing

import (
	"errors"
	"testing"

	"github.com/contactkeval/option-pricer/internal/testutil"
)

func TestFiniteDifferenceGreeks_MatchClosedForm(t *testing.T) {
	for _, kind := range []OptionKind{Call, Put} {
		p := referenceParams(kind)

		fd, err := FiniteDifferenceGreeks(BlackScholesPrice, p, 0.001)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", kind, err)
		}
		closed, _ := BlackScholes(p)

		testutil.InDelta(t, "delta", fd.Delta, closed.Delta, 1e-6)
		testutil.InDelta(t, "gamma", fd.Gamma, closed.Gamma, 1e-6)
		testutil.InDelta(t, "vega", fd.Vega, closed.Vega, 1e-2)
		testutil.InDelta(t, "theta", fd.Theta, closed.Theta, 1e-2)
		testutil.InDelta(t, "rho", fd.Rho, closed.Rho, 1e-2)
	}
}

func TestFiniteDifferenceGreeks_PerturbsOneFieldPerCall(t *testing.T) {
	base := referenceParams(Call)
	var seen []Params
	recorder := func(q Params) (float64, error) {
		seen = append(seen, q)
		return BlackScholesPrice(q)
	}

	if _, err := FiniteDifferenceGreeks(recorder, base, 0.01); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// base + 2 delta + 2 gamma + 2 vega + 1 theta + 2 rho
	if len(seen) != 10 {
		t.Fatalf("expected 10 pricer calls, got %d", len(seen))
	}
	if seen[0] != base {
		t.Fatalf("first call should price the unperturbed params, got %+v", seen[0])
	}
	for i, q := range seen[1:] {
		changed := 0
		if q.Spot != base.Spot {
			changed++
		}
		if q.Volatility != base.Volatility {
			changed++
		}
		if q.RiskFreeRate != base.RiskFreeRate {
			changed++
		}
		if q.TimeToExpiry != base.TimeToExpiry {
			changed++
		}
		if q.Strike != base.Strike || q.Kind != base.Kind {
			t.Fatalf("call %d changed strike or kind: %+v", i+1, q)
		}
		if changed != 1 {
			t.Fatalf("call %d perturbed %d fields: %+v", i+1, changed, q)
		}
	}
	if base != referenceParams(Call) {
		t.Fatalf("base params were modified: %+v", base)
	}
}

func TestFiniteDifferenceGreeks_AtExpiryIsZero(t *testing.T) {
	p := referenceParams(Put).withTime(0)
	calls := 0
	g, err := FiniteDifferenceGreeks(func(q Params) (float64, error) {
		calls++
		return 0, nil
	}, p, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g != (Greeks{}) || calls != 0 {
		t.Fatalf("expected zero greeks without pricing, got %+v after %d calls", g, calls)
	}
}

func TestFiniteDifferenceGreeks_InvalidThetaStep(t *testing.T) {
	p := referenceParams(Call)
	for _, step := range []float64{0, -0.1, 1.5} {
		if _, err := FiniteDifferenceGreeks(BlackScholesPrice, p, step); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("step=%v: expected ErrInvalidParameter, got %v", step, err)
		}
	}
}

func TestFiniteDifferenceGreeks_PricerErrorSurfaces(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := FiniteDifferenceGreeks(func(q Params) (float64, error) {
		calls++
		if calls == 3 {
			return 0, boom
		}
		return 1, nil
	}, referenceParams(Call), 0.01)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped pricer error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected pricing to stop after the failure, got %d calls", calls)
	}
}

func TestFiniteDifferenceGreeks_RoundingNoiseIsZero(t *testing.T) {
	// A forward-like price is linear in spot with no volatility or rate
	// dependence, so every difference beyond Delta is pure rounding.
	linear := func(q Params) (float64, error) {
		return q.Strike - q.Spot, nil
	}
	p := Params{Spot: 80.3, Strike: 100, TimeToExpiry: 1, RiskFreeRate: 0.05, Volatility: 0.2, Kind: Put}

	g, err := FiniteDifferenceGreeks(linear, p, 0.25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Delta != -1 || g.Gamma != 0 || g.Vega != 0 || g.Rho != 0 || g.Theta != 0 {
		t.Fatalf("expected exact linear greeks, got %+v", g)
	}
}
