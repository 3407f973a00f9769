package spectrum

import (
	"errors"
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/cwbudde/algo-tuner/dsp/window"
)

var (
	// ErrInvalidSize indicates a transform size that is not a power of two >= 4.
	ErrInvalidSize = errors.New("spectrum: fft size must be a power of two >= 4")
	// ErrInvalidRate indicates a non-positive sample rate.
	ErrInvalidRate = errors.New("spectrum: sample rate must be > 0")
	// ErrBlockLength is returned when the input block does not match the
	// estimator size.
	ErrBlockLength = errors.New("spectrum: block length does not match fft size")
)

// Estimator computes a coarse, windowed power spectrum of a fixed-size block.
//
// Output bin k covers k*BinWidth() Hz for k in [0, size/2). Powers are
// scaled so that a full-scale sine centred on a bin reads about 0.25 times
// the linear gain squared, independent of window and size.
type Estimator struct {
	size       int
	sampleRate float64
	win        window.Type
	gain       float64

	plan   *algofft.Plan[complex128]
	coeffs []float64
	in     []complex128
	out    []complex128
}

// NewEstimator creates an estimator for blocks of size samples at sampleRate.
// gain is a linear amplitude factor folded into the window.
func NewEstimator(size int, sampleRate float64, win window.Type, gain float64) (*Estimator, error) {
	if size < 4 || !core.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	if !(sampleRate > 0) || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, sampleRate)
	}

	if !(gain > 0) || !core.IsFinite(gain) {
		return nil, fmt.Errorf("spectrum: gain must be > 0: %v", gain)
	}

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan: %w", err)
	}

	coeffs := window.Generate(win, size, window.WithPeriodic())

	cg, err := window.CoherentGain(coeffs)
	if err != nil || cg == 0 {
		return nil, fmt.Errorf("spectrum: window %v has no coherent gain", win)
	}

	// A bin-centred sine of amplitude A reads A²/4 whatever the window.
	floats.Scale(gain/(cg*float64(size)), coeffs)

	return &Estimator{
		size:       size,
		sampleRate: sampleRate,
		win:        win,
		gain:       gain,
		plan:       plan,
		coeffs:     coeffs,
		in:         make([]complex128, size),
		out:        make([]complex128, size),
	}, nil
}

// Size returns the transform size.
func (e *Estimator) Size() int { return e.size }

// Bins returns the number of output bins (size/2).
func (e *Estimator) Bins() int { return e.size / 2 }

// BinWidth returns the frequency resolution in Hz.
func (e *Estimator) BinWidth() float64 { return e.sampleRate / float64(e.size) }

// SampleRate returns the sample rate the estimator was built for.
func (e *Estimator) SampleRate() float64 { return e.sampleRate }

// Window returns the analysis window type.
func (e *Estimator) Window() window.Type { return e.win }

// Estimate computes the power spectrum of block into dst and returns it.
// dst is grown when shorter than Bins().
func (e *Estimator) Estimate(dst, block []float64) ([]float64, error) {
	if len(block) != e.size {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBlockLength, len(block), e.size)
	}

	for i, x := range block {
		e.in[i] = complex(x*e.coeffs[i], 0)
	}

	if err := e.plan.Forward(e.out, e.in); err != nil {
		return nil, fmt.Errorf("spectrum: fft: %w", err)
	}

	dst = core.EnsureLen(dst, e.Bins())
	PowerInto(dst, e.out[:e.Bins()])

	return dst, nil
}
