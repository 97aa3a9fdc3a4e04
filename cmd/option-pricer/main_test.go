package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contactkeval/option-pricer/internal/pricing"
	"github.com/contactkeval/option-pricer/internal/testutil"
)

func TestRun_SingleValuation(t *testing.T) {
	var out bytes.Buffer
	args := []string{
		"-config", filepath.Join(t.TempDir(), "none.yaml"),
		"-spot", "100", "-strike", "100", "-t", "1", "-rate", "0.05", "-vol", "0.2", "-kind", "put",
	}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res pricing.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	testutil.InDelta(t, "put", res.Price, 5.573526022256971, 1e-12)
}

func TestRun_RateDefaultsToConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := testutil.WriteFile(t, dir, "config.yaml", "pricing:\n  risk_free_rate: 0\n")

	var out bytes.Buffer
	args := []string{"-config", cfg, "-spot", "100", "-strike", "100", "-t", "1", "-vol", "0.2", "-kind", "call"}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res pricing.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	// zero rate at the money: K·(N(0.1) - N(-0.1))
	testutil.InDelta(t, "price", res.Price, 7.965567455405804, 1e-9)
}

func TestRun_InvalidKind(t *testing.T) {
	args := []string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "-spot", "100", "-strike", "100", "-t", "1", "-vol", "0.2", "-kind", "swap"}
	err := run(context.Background(), args, &bytes.Buffer{})
	if !errors.Is(err, pricing.ErrInvalidOptionKind) {
		t.Fatalf("expected ErrInvalidOptionKind, got %v", err)
	}
}

func TestRun_ChainWritesReports(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	cfg := testutil.WriteFile(t, dir, "config.yaml", "data:\n  provider: synthetic\n  seed: 11\nreport:\n  dir: "+out+"\n")

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"-config", cfg, "-chain", "SPY", "-model", "binomial", "-steps", "50"}, &stdout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paths := strings.Fields(stdout.String())
	if len(paths) != 3 {
		t.Fatalf("expected 3 report paths, got %v", paths)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("report %s not written: %v", p, err)
		}
	}
}

func TestRun_ChainAllExpiries(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	cfg := testutil.WriteFile(t, dir, "config.yaml", "data:\n  provider: synthetic\n  seed: 11\nreport:\n  dir: "+out+"\n")

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"-config", cfg, "-chain", "SPY", "-expiry", "all"}, &stdout); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	paths := strings.Fields(stdout.String())
	if len(paths) < 6 || len(paths)%3 != 0 {
		t.Fatalf("expected three report paths per expiry, got %v", paths)
	}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("report %s written twice", p)
		}
		seen[p] = true
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("report %s not written: %v", p, err)
		}
	}
}
