package spectrum

import (
	"fmt"
	"math"
)

// Goertzel evaluates a single DTFT term of a sample block.
//
// The analyzer is stateful: Power reports |X(f)|^2 over all samples
// processed since the last Reset. The frequency need not fall on an FFT
// bin, which is what the zoom refiner relies on.
type Goertzel struct {
	frequency  float64
	sampleRate float64
	coeff      float64
	s0, s1     float64
}

// NewGoertzel creates a new Goertzel analyzer for the target frequency.
//
// frequency must be between 0 and sampleRate/2.
func NewGoertzel(frequency, sampleRate float64) (*Goertzel, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("goertzel: sample rate must be > 0: %v", sampleRate)
	}

	g := &Goertzel{sampleRate: sampleRate}
	if err := g.SetFrequency(frequency); err != nil {
		return nil, err
	}

	return g, nil
}

// Reset clears the internal state.
func (g *Goertzel) Reset() {
	g.s0 = 0
	g.s1 = 0
}

// ProcessBlock updates the internal state with a block of samples.
func (g *Goertzel) ProcessBlock(input []float64) {
	s0, s1 := g.s0, g.s1

	coeff := g.coeff
	for _, x := range input {
		s0, s1 = x+coeff*s0-s1, s0
	}

	g.s0, g.s1 = s0, s1
}

// Power returns |X(f)|^2 for the processed samples.
func (g *Goertzel) Power() float64 {
	return g.s0*g.s0 + g.s1*g.s1 - g.coeff*g.s0*g.s1
}

// SetFrequency updates the target frequency. State is kept; call Reset
// before reusing the analyzer on a new block.
func (g *Goertzel) SetFrequency(frequency float64) error {
	if frequency < 0 || frequency > g.sampleRate/2 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return fmt.Errorf("goertzel: frequency must be between 0 and sampleRate/2: %v", frequency)
	}

	g.frequency = frequency
	g.coeff = 2 * math.Cos(2*math.Pi*frequency/g.sampleRate)

	return nil
}

// Frequency returns the current target frequency.
func (g *Goertzel) Frequency() float64 { return g.frequency }

// PowersAt evaluates |X(f)|^2 of block at each frequency in freqs and writes
// the results into dst, which must be at least len(freqs) long.
func (g *Goertzel) PowersAt(dst []float64, block, freqs []float64) error {
	if len(dst) < len(freqs) {
		return fmt.Errorf("goertzel: dst too short: %d < %d", len(dst), len(freqs))
	}

	for i, f := range freqs {
		if err := g.SetFrequency(f); err != nil {
			return err
		}

		g.Reset()
		g.ProcessBlock(block)
		dst[i] = g.Power()
	}

	return nil
}
