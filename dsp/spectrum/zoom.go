package spectrum

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
)

// newtonTolerance stops the Newton polish once a step moves the estimate
// by less than this many Hz.
const newtonTolerance = 1e-6

// ErrInvalidRefiner indicates unusable refiner parameters.
var ErrInvalidRefiner = errors.New("spectrum: invalid refiner parameters")

// Refinement is the outcome of refining one coarse peak.
type Refinement struct {
	// Frequency is the refined estimate in Hz.
	Frequency float64
	// Power is |X(f)|^2 of the analysed block at Frequency.
	Power float64
	// SpanLow and SpanHigh bound the final search span in Hz.
	SpanLow, SpanHigh float64
	// NewtonSteps counts accepted Newton iterations.
	NewtonSteps int
}

// Refiner improves a coarse peak frequency by successive zoom DFT passes.
//
// Pass 1 evaluates size equally spaced frequencies across two coarse bins
// centred on the coarse peak. Every later pass spans two grid steps of the
// previous pass around its best point, so the span shrinks by (size-1)/2
// per pass. Each pass refines its best grid point by parabolic
// interpolation, clamped inside the span. A Newton iteration on the DTFT
// power then polishes the estimate without leaving the final span.
type Refiner struct {
	sampleRate float64
	passes     int
	size       int
	maxNewton  int

	g      *Goertzel
	grid   []float64
	powers []float64
}

// NewRefiner creates a refiner. size is the number of DFT points per pass
// (>= 3), passes may be 0 to skip zooming, maxNewton may be 0 to skip the
// Newton polish.
func NewRefiner(sampleRate float64, passes, size, maxNewton int) (*Refiner, error) {
	if !(sampleRate > 0) || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, sampleRate)
	}

	if passes < 0 || size < 3 || maxNewton < 0 {
		return nil, fmt.Errorf("%w: passes=%d size=%d newton=%d", ErrInvalidRefiner, passes, size, maxNewton)
	}

	g, err := NewGoertzel(0, sampleRate)
	if err != nil {
		return nil, err
	}

	return &Refiner{
		sampleRate: sampleRate,
		passes:     passes,
		size:       size,
		maxNewton:  maxNewton,
		g:          g,
		grid:       make([]float64, size),
		powers:     make([]float64, size),
	}, nil
}

// Refine searches block (already windowed) for the power maximum near
// coarse, where binWidth is the coarse spectrum resolution in Hz.
func (r *Refiner) Refine(block []float64, coarse, binWidth float64) (Refinement, error) {
	if len(block) == 0 {
		return Refinement{}, fmt.Errorf("%w: empty block", ErrInvalidRefiner)
	}

	if !(binWidth > 0) || !core.IsFinite(coarse) {
		return Refinement{}, fmt.Errorf("%w: coarse=%v binWidth=%v", ErrInvalidRefiner, coarse, binWidth)
	}

	nyquist := r.sampleRate / 2
	center := core.Clamp(coarse, 0, nyquist)
	half := binWidth
	lo, hi := r.span(center, half)

	for range r.passes {
		lo, hi = r.span(center, half)
		step := (hi - lo) / float64(r.size-1)

		if step <= 0 {
			break
		}

		for j := range r.grid {
			r.grid[j] = math.Min(lo+float64(j)*step, nyquist)
		}

		if err := r.g.PowersAt(r.powers, block, r.grid); err != nil {
			return Refinement{}, err
		}

		best := argmax(r.powers)
		offset := 0.0

		if best > 0 && best < r.size-1 {
			offset = parabolicOffset(r.powers[best-1], r.powers[best], r.powers[best+1])
		}

		center = core.Clamp(r.grid[best]+offset*step, lo, hi)
		half = step
	}

	out := Refinement{Frequency: center, SpanLow: lo, SpanHigh: hi}
	out.Frequency, out.NewtonSteps = r.newton(block, center, lo, hi)
	out.Power = dtftPower(block, out.Frequency, r.sampleRate)

	return out, nil
}

func (r *Refiner) span(center, half float64) (float64, float64) {
	return math.Max(center-half, 0), math.Min(center+half, r.sampleRate/2)
}

// newton maximizes P(f) = |X(f)|^2 with Newton steps on P'(f), each
// clamped to [lo, hi].
func (r *Refiner) newton(block []float64, f, lo, hi float64) (float64, int) {
	toHz := r.sampleRate / (2 * math.Pi)
	steps := 0

	for range r.maxNewton {
		d1, d2 := dtftPowerDerivatives(block, f/toHz)
		if !(d2 < 0) {
			break
		}

		next := core.Clamp(f-toHz*d1/d2, lo, hi)
		moved := math.Abs(next - f)
		f = next
		steps++

		if moved < newtonTolerance {
			break
		}
	}

	return f, steps
}

// dtftPowerDerivatives returns dP/dw and d2P/dw2 of P(w) = |X(w)|^2 at w
// in radians per sample. Sample indices are centred on the block midpoint,
// which leaves P unchanged and keeps the sums well conditioned.
func dtftPowerDerivatives(x []float64, w float64) (d1, d2 float64) {
	c := 0.5 * float64(len(x)-1)

	var x0, x1, x2 complex128

	for n, v := range x {
		m := float64(n) - c
		s, co := math.Sincos(w * m)
		e := complex(v*co, -v*s)
		x0 += e
		x1 += complex(0, -m) * e
		x2 += complex(-m*m, 0) * e
	}

	re := func(a, b complex128) float64 {
		return real(a)*real(b) + imag(a)*imag(b)
	}

	d1 = 2 * re(x1, x0)
	d2 = 2 * (re(x1, x1) + re(x2, x0))

	return d1, d2
}

func dtftPower(x []float64, freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate

	var sr, si float64

	for n, v := range x {
		s, c := math.Sincos(w * float64(n))
		sr += v * c
		si -= v * s
	}

	return sr*sr + si*si
}

// parabolicOffset returns the vertex offset in [-0.5, 0.5] of the parabola
// through (-1, l), (0, c), (1, r).
func parabolicOffset(l, c, r float64) float64 {
	den := l - 2*c + r
	if !(den < 0) {
		return 0
	}

	return core.Clamp(0.5*(l-r)/den, -0.5, 0.5)
}

func argmax(x []float64) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}

	return best
}
