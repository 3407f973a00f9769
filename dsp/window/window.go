package window

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"
)

// Type identifies a window function.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeBlackmanHarris4Term
	TypeFlatTop
	TypeKaiser
)

var names = map[Type]string{
	TypeRectangular:         "rectangular",
	TypeHann:                "hann",
	TypeHamming:             "hamming",
	TypeBlackman:            "blackman",
	TypeBlackmanHarris4Term: "blackman-harris",
	TypeFlatTop:             "flat-top",
	TypeKaiser:              "kaiser",
}

var (
	hannCoeffs            = []float64{0.5, -0.5}
	hammingCoeffs         = []float64{0.54, -0.46}
	blackmanCoeffs        = []float64{0.42, -0.5, 0.08}
	blackmanHarris4Coeffs = []float64{0.35875, -0.48829, 0.14128, -0.01168}
	flatTopCoeffs         = []float64{0.21557895, -0.41663158, 0.277263158, -0.083578947, 0.006947368}
)

// Option configures window generation.
type Option func(*config)

type config struct {
	alpha    float64
	periodic bool
}

func defaultConfig() config {
	return config{alpha: 1}
}

// withBeta sets the Kaiser shape parameter; Kaiser is the public entry.
func withBeta(v float64) Option {
	return func(c *config) {
		if v >= 0 {
			c.alpha = v
		}
	}
}

// WithPeriodic configures periodic form (FFT framing) instead of symmetric form.
func WithPeriodic() Option {
	return func(c *config) {
		c.periodic = true
	}
}

// ParseType resolves a window name as used in configuration files.
// Matching is case-insensitive; "" selects Hann.
func ParseType(name string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return TypeHann, nil
	}

	for t, n := range names {
		if t != TypeKaiser && n == key {
			return t, nil
		}
	}

	switch key {
	case "rect", "none":
		return TypeRectangular, nil
	case "hanning":
		return TypeHann, nil
	case "flattop":
		return TypeFlatTop, nil
	case "blackmanharris", "bh4":
		return TypeBlackmanHarris4Term, nil
	}

	return TypeHann, fmt.Errorf("%w: %q", errUnknownType, name)
}

// String returns the configuration name of t.
func (t Type) String() string {
	if n, ok := names[t]; ok {
		return n
	}

	return fmt.Sprintf("window(%d)", int(t))
}

// Names lists the selectable window names.
func Names() []string {
	return []string{"rectangular", "hann", "hamming", "blackman", "blackman-harris", "flat-top"}
}

// Generate returns window coefficients of the given length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	out := make([]float64, length)
	for i := range out {
		x := samplePosition(i, length, cfg.periodic)
		out[i] = evalWindow(t, x, cfg)
	}

	return out
}

// Kaiser returns Kaiser window coefficients.
func Kaiser(size int, beta float64, opts ...Option) ([]float64, error) {
	if size <= 0 || beta < 0 {
		return nil, validateKaiser(size, beta)
	}

	return Generate(TypeKaiser, size, append(opts, withBeta(beta))...), nil
}

// CoherentGain returns sum(w)/N, the DC amplitude response of coeffs.
func CoherentGain(coeffs []float64) (float64, error) {
	if len(coeffs) == 0 {
		return 0, errEmptyCoeffs
	}

	return vecmath.Sum(coeffs) / float64(len(coeffs)), nil
}

// ApplyCoefficientsInPlace multiplies samples with coefficients in place.
func ApplyCoefficientsInPlace(samples, coeffs []float64) error {
	if len(samples) != len(coeffs) {
		return errMismatchedLength
	}

	vecmath.MulBlockInPlace(samples, coeffs)

	return nil
}

func evalWindow(t Type, x float64, cfg config) float64 {
	x = math.Min(math.Max(x, 0), 1)

	switch t {
	case TypeRectangular:
		return 1
	case TypeHann:
		return cosineFromCoeffs(x, hannCoeffs)
	case TypeHamming:
		return cosineFromCoeffs(x, hammingCoeffs)
	case TypeBlackman:
		return cosineFromCoeffs(x, blackmanCoeffs)
	case TypeBlackmanHarris4Term:
		return cosineFromCoeffs(x, blackmanHarris4Coeffs)
	case TypeFlatTop:
		return cosineFromCoeffs(x, flatTopCoeffs)
	case TypeKaiser:
		return kaiserAt(x, cfg.alpha)
	default:
		return 1
	}
}

func cosineFromCoeffs(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}

	return sum
}

func samplePosition(n, size int, periodic bool) float64 {
	if size <= 1 {
		return 0
	}

	den := float64(size - 1)
	if periodic {
		den = float64(size)
	}

	return float64(n) / den
}

func kaiserAt(x, beta float64) float64 {
	if beta <= 0 {
		return 1
	}

	r := 2*x - 1
	term := math.Sqrt(math.Max(0, 1-r*r))

	return BesselI0(beta*term) / BesselI0(beta)
}

// BesselI0 returns a polynomial approximation of the modified Bessel
// function of the first kind, order zero.
func BesselI0(x float64) float64 {
	ax := math.Abs(x)
	if ax < 3.75 {
		y := x / 3.75
		y *= y

		return 1.0 + y*(3.5156229+y*(3.0899424+y*(1.2067492+y*(0.2659732+y*(0.0360768+y*0.0045813)))))
	}

	y := 3.75 / ax

	return (math.Exp(ax) / math.Sqrt(ax)) *
		(0.39894228 + y*(0.01328592+y*(0.00225319+y*(-0.00157565+y*(0.00916281+y*(-0.02057706+y*(0.02635537+y*(-0.01647633+y*0.00392377))))))))
}
