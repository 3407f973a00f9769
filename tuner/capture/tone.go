package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidTone indicates unusable tone parameters.
var ErrInvalidTone = errors.New("capture: invalid tone parameters")

// ToneSource synthesizes an endless sine, optionally with white noise. It
// stands in for a capture device in demos and tests.
type ToneSource struct {
	cfg        sourceConfig
	sampleRate float64
	amplitude  float64
	step       float64
	phase      float64
	rng        *rand.Rand
	frame      []float64
	pace       *pacer
}

// NewTone creates a tone source of freq Hz at sampleRate.
func NewTone(freq, sampleRate, amplitude float64, opts ...Option) (*ToneSource, error) {
	if !(sampleRate > 0) || !(freq >= 0) || freq >= sampleRate/2 {
		return nil, fmt.Errorf("%w: freq=%v rate=%v", ErrInvalidTone, freq, sampleRate)
	}

	cfg := applyOptions(opts)

	s := &ToneSource{
		cfg:        cfg,
		sampleRate: sampleRate,
		amplitude:  amplitude,
		step:       2 * math.Pi * freq / sampleRate,
		rng:        rand.New(rand.NewSource(cfg.noiseSeed)),
		frame:      make([]float64, cfg.frameSize),
	}

	if cfg.realtime {
		s.pace = newPacer(cfg.frameSize, sampleRate)
	}

	return s, nil
}

// SampleRate returns the synthesis rate in Hz.
func (s *ToneSource) SampleRate() float64 { return s.sampleRate }

// SetFrequency changes the pitch without a phase discontinuity.
func (s *ToneSource) SetFrequency(freq float64) {
	s.step = 2 * math.Pi * freq / s.sampleRate
}

// ReadFrame returns the next frame. The returned slice is reused by the
// following call.
func (s *ToneSource) ReadFrame(ctx context.Context) ([]float64, error) {
	if s.pace != nil {
		if err := s.pace.wait(ctx); err != nil {
			return nil, err
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range s.frame {
		v := s.amplitude * math.Sin(s.phase)
		if s.cfg.noiseAmp > 0 {
			v += (s.rng.Float64()*2 - 1) * s.cfg.noiseAmp
		}

		s.frame[i] = v

		s.phase += s.step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}

	return s.frame, nil
}
