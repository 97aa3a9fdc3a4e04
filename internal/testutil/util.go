// Package testutil holds small helpers shared by package tests.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// AlmostEqual reports whether a and b differ by at most tol.
func AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// InDelta fails the test if got is further than tol from want.
func InDelta(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || !AlmostEqual(got, want, tol) {
		t.Fatalf("%s: got=%v want=%v (tol %g)", name, got, want, tol)
	}
}

// InRange fails the test if got lies outside [lo, hi].
func InRange(t *testing.T, name string, got, lo, hi float64) {
	t.Helper()
	if math.IsNaN(got) || got < lo || got > hi {
		t.Fatalf("%s: got=%v, want within [%v, %v]", name, got, lo, hi)
	}
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(b)
}
