package testutil

import (
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t when got and want differ in length or
// when any sample differs by more than eps.
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length: got %d, want %d", len(got), len(want))
	}

	if d, i := MaxAbsDiff(got, want); d > eps {
		t.Fatalf("sample %d: got %v, want %v (|diff| %g > %g)", i, got[i], want[i], d, eps)
	}
}

// MaxAbsDiff returns the largest absolute sample difference over the common
// prefix of a and b, and its index (-1 when the prefix is empty).
func MaxAbsDiff(a, b []float64) (float64, int) {
	n := min(len(a), len(b))
	worst, at := 0.0, -1

	for i := 0; i < n; i++ {
		if d := math.Abs(a[i] - b[i]); d > worst || at < 0 {
			worst, at = d, i
		}
	}

	return worst, at
}

// CentsOff returns the interval from want to got in cents. Non-positive
// inputs yield NaN.
func CentsOff(got, want float64) float64 {
	if got <= 0 || want <= 0 {
		return math.NaN()
	}

	return 1200 * math.Log2(got/want)
}

// RequireCentsNear fails t when got is further than tol cents from want.
func RequireCentsNear(t testing.TB, got, want, tol float64) {
	t.Helper()

	c := CentsOff(got, want)
	if math.IsNaN(c) || math.Abs(c) > tol {
		t.Fatalf("frequency %v Hz is %.4f cents from %v Hz (tolerance %v)", got, c, want, tol)
	}
}
