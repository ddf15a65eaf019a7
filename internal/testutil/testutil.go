// Package testutil provides shared test helpers used across the adhesion
// pipeline's test suites: float comparisons with an explicit tolerance and
// thin error-presence assertions.
//
// This package centralises common test helpers to reduce duplication
// across test files.
package testutil

import (
	"math"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertFloatClose fails the test if got and want differ by more than tol.
// NaN is treated as close only to NaN, matching the pipeline's convention
// that NaN marks "not computed" rather than "computed as not-a-number".
func AssertFloatClose(t *testing.T, got, want, tol float64, msgAndArgs ...any) {
	t.Helper()
	if math.IsNaN(want) {
		if !math.IsNaN(got) {
			t.Fatalf("got %v, want NaN %v", got, msgAndArgs)
		}
		return
	}
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Fatalf("got %v, want %v ± %v %v", got, want, tol, msgAndArgs)
	}
}

// AssertFloatWithinFraction fails the test unless got is within the given
// fraction (e.g. 0.05 for 5%) of want.
func AssertFloatWithinFraction(t *testing.T, got, want, fraction float64, msgAndArgs ...any) {
	t.Helper()
	tol := math.Abs(want) * fraction
	AssertFloatClose(t, got, want, tol, msgAndArgs...)
}
