package core

import "math"

const defaultEpsilon = 1e-12

// CentsPerOctave is the number of cents in one octave.
const CentsPerOctave = 1200.0

// Clamp limits value to the inclusive range [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}

	return math.Min(math.Max(value, lo), hi)
}

// NearlyEqual reports whether a and b are equal within eps, either absolutely
// or relative to the larger magnitude.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))

	return largest > 0 && diff/largest <= eps
}

// DBToLinear converts dB to a linear amplitude factor (20*log10 convention).
// The gain setting uses this convention.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// DBPowerToLinear converts dB to a linear power ratio (10*log10 convention).
// Noise threshold and peak rejection settings use this convention.
func DBPowerToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}

// LinearPowerToDB converts a power ratio to dB.
// Returns -Inf for zero and NaN for negative values.
func LinearPowerToDB(power float64) float64 {
	switch {
	case power < 0:
		return math.NaN()
	case power == 0:
		return math.Inf(-1)
	}

	return 10 * math.Log10(power)
}

// AmplitudeToDB converts a linear amplitude to dB.
// Returns -Inf for zero; the sign of amplitude is ignored.
func AmplitudeToDB(amplitude float64) float64 {
	a := math.Abs(amplitude)
	if a == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(a)
}

// Cents returns the signed interval from ref to f in cents.
// Positive values mean f is above ref. Returns NaN unless both are > 0.
func Cents(f, ref float64) float64 {
	if !(f > 0) || !(ref > 0) {
		return math.NaN()
	}

	return CentsPerOctave * math.Log2(f/ref)
}

// ShiftCents returns the frequency that lies cents above ref.
func ShiftCents(ref, cents float64) float64 {
	return ref * math.Exp2(cents/CentsPerOctave)
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
