// Package config holds the tuner configuration snapshot, its derived
// parameters and the corrective normalization applied before use.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/cwbudde/algo-tuner/dsp/pitch"
	"github.com/cwbudde/algo-tuner/dsp/window"
)

// Upper bounds applied by Normalize. They keep every allocation and timer
// period derived from a configuration finite.
const (
	maxFFTSize        = 1 << 16
	maxBufferSize     = 1 << 21
	maxSampleRate     = 768000
	maxOversampling   = 64
	maxTemporalWindow = 10.0
	maxRate           = 1000.0
	maxDFTNumber      = 16
	maxDFTSize        = 1024
	maxNRIter         = 100
	maxLevelDB        = 200.0
	maxGainDB         = 120.0
	maxRootError      = 1200.0
)

// Config is an immutable-per-cycle snapshot of the user-editable settings.
// Levels are in dB, rates in Hz, windows in seconds.
type Config struct {
	SampleRate            float64 `json:"sample_rate"`
	Oversampling          int     `json:"oversampling"`
	RootFrequencyError    float64 `json:"root_frequency_error"`
	MinFrequency          float64 `json:"min_frequency"`
	FFTSize               int     `json:"fft_size"`
	TemporalWindow        float64 `json:"temporal_window"`
	NoiseThreshold        float64 `json:"noise_threshold"`
	CalculationRate       float64 `json:"calculation_rate"`
	VisualizationRate     float64 `json:"visualization_rate"`
	PeakNumber            int     `json:"peak_number"`
	PeakHalfWidth         int     `json:"peak_half_width"`
	PeakRejectionRelation float64 `json:"peak_rejection_relation"`
	DFTNumber             int     `json:"dft_number"`
	DFTSize               int     `json:"dft_size"`
	Gain                  float64 `json:"gain"`
	MaxNRIter             int     `json:"max_nr_iter"`
	Window                string  `json:"window"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		SampleRate:            44100,
		Oversampling:          5,
		RootFrequencyError:    0,
		MinFrequency:          15,
		FFTSize:               512,
		TemporalWindow:        0.32,
		NoiseThreshold:        20,
		CalculationRate:       20,
		VisualizationRate:     30,
		PeakNumber:            3,
		PeakHalfWidth:         1,
		PeakRejectionRelation: 20,
		DFTNumber:             2,
		DFTSize:               15,
		Gain:                  0,
		MaxNRIter:             10,
		Window:                "hann",
	}
}

// Derived holds parameters computed from a Config.
type Derived struct {
	// RootFrequency is the A4 reference in Hz.
	RootFrequency float64
	// EffectiveRate is the sample rate after decimation.
	EffectiveRate float64
	// TemporalBufferSize is the accumulator capacity in decimated samples.
	TemporalBufferSize int
	// BinWidth is the coarse spectrum resolution in Hz.
	BinWidth float64

	NoiseThresholdLinear float64
	PeakRejectionLinear  float64
	GainLinear           float64

	CalculationPeriod   time.Duration
	VisualizationPeriod time.Duration

	WindowType window.Type
}

// Derive computes the derived parameters. c should be normalized.
func (c Config) Derive() Derived {
	eff := c.SampleRate / float64(max(c.Oversampling, 1))
	win, _ := window.ParseType(c.Window)

	return Derived{
		RootFrequency:        pitch.RootFrequency(c.RootFrequencyError),
		EffectiveRate:        eff,
		TemporalBufferSize:   bufferSize(c.TemporalWindow, c.SampleRate, c.Oversampling),
		BinWidth:             eff / float64(max(c.FFTSize, 1)),
		NoiseThresholdLinear: core.DBPowerToLinear(c.NoiseThreshold),
		PeakRejectionLinear:  core.DBPowerToLinear(c.PeakRejectionRelation),
		GainLinear:           core.DBToLinear(c.Gain),
		CalculationPeriod:    period(c.CalculationRate),
		VisualizationPeriod:  period(c.VisualizationRate),
		WindowType:           win,
	}
}

func bufferSize(win, rate float64, oversampling int) int {
	n := math.Ceil(win * rate / float64(max(oversampling, 1)))
	if !(n < math.MaxInt32) {
		return math.MaxInt32
	}

	return int(n)
}

func period(rate float64) time.Duration {
	if !(rate > 0) {
		return 0
	}

	return time.Duration(float64(time.Second) / rate)
}

// Correction records one value changed by Normalize.
type Correction struct {
	Key     string
	From    string
	To      string
	Message string
}

func (c Correction) String() string {
	return fmt.Sprintf("%s: %s -> %s (%s)", c.Key, c.From, c.To, c.Message)
}

// Normalize returns a usable copy of c together with every correction it
// applied. It never fails: out-of-range values fall back to a safe value or
// are clamped to their maximum, and the temporal window is enlarged or
// shortened so the buffer holds between one FFT block and maxBufferSize
// samples.
func (c Config) Normalize() (Config, []Correction) {
	def := Default()

	var out []Correction

	fixFloat := func(key string, v *float64, ok bool, to float64, msg string) {
		if ok {
			return
		}

		out = append(out, Correction{Key: key, From: fmtFloat(*v), To: fmtFloat(to), Message: msg})
		*v = to
	}

	fixInt := func(key string, v *int, ok bool, to int, msg string) {
		if ok {
			return
		}

		out = append(out, Correction{Key: key, From: fmt.Sprint(*v), To: fmt.Sprint(to), Message: msg})
		*v = to
	}

	between := func(v, lo, hi float64) bool { return v >= lo && v <= hi }

	fixFloat(KeySampleRate, &c.SampleRate, c.SampleRate > 0 && core.IsFinite(c.SampleRate), def.SampleRate, "sample rate must be positive")
	fixFloat(KeySampleRate, &c.SampleRate, c.SampleRate <= maxSampleRate, maxSampleRate, "sample rate too high")
	fixInt(KeyOversampling, &c.Oversampling, c.Oversampling >= 1, 1, "oversampling must be >= 1")
	fixInt(KeyOversampling, &c.Oversampling, c.Oversampling <= maxOversampling, maxOversampling, "oversampling too large")
	fixFloat(KeyRootFrequencyError, &c.RootFrequencyError, between(c.RootFrequencyError, -maxRootError, maxRootError), 0, "root error must be within one octave")
	fixFloat(KeyMinFrequency, &c.MinFrequency, c.MinFrequency >= 0 && core.IsFinite(c.MinFrequency), 0, "minimum frequency must be >= 0")

	switch {
	case c.FFTSize < 4:
		fixInt(KeyFFTSize, &c.FFTSize, false, 4, "fft size must be >= 4")
	case c.FFTSize > maxFFTSize:
		fixInt(KeyFFTSize, &c.FFTSize, false, maxFFTSize, "fft size too large")
	case !core.IsPowerOfTwo(c.FFTSize):
		fixInt(KeyFFTSize, &c.FFTSize, false, core.NextPowerOfTwo(c.FFTSize), "fft size must be a power of two")
	}

	bins := c.FFTSize / 2

	fixFloat(KeyTemporalWindow, &c.TemporalWindow, c.TemporalWindow > 0 && core.IsFinite(c.TemporalWindow), def.TemporalWindow, "temporal window must be positive")
	fixFloat(KeyTemporalWindow, &c.TemporalWindow,
		c.TemporalWindow <= maxTemporalWindow || bufferSize(maxTemporalWindow, c.SampleRate, c.Oversampling) < c.FFTSize,
		maxTemporalWindow, "temporal window too long")
	fixFloat(KeyNoiseThreshold, &c.NoiseThreshold, between(c.NoiseThreshold, -maxLevelDB, maxLevelDB), def.NoiseThreshold, "noise threshold out of range")
	fixFloat(KeyCalculationRate, &c.CalculationRate, c.CalculationRate > 0 && core.IsFinite(c.CalculationRate), def.CalculationRate, "calculation rate must be positive")
	fixFloat(KeyCalculationRate, &c.CalculationRate, c.CalculationRate <= maxRate, maxRate, "calculation rate too high")
	fixFloat(KeyVisualizationRate, &c.VisualizationRate, c.VisualizationRate > 0 && core.IsFinite(c.VisualizationRate), def.VisualizationRate, "visualization rate must be positive")
	fixFloat(KeyVisualizationRate, &c.VisualizationRate, c.VisualizationRate <= maxRate, maxRate, "visualization rate too high")
	fixInt(KeyPeakNumber, &c.PeakNumber, c.PeakNumber >= 1, 1, "peak number must be >= 1")
	fixInt(KeyPeakNumber, &c.PeakNumber, c.PeakNumber <= bins, bins, "peak number exceeds the bin count")
	fixInt(KeyPeakHalfWidth, &c.PeakHalfWidth, c.PeakHalfWidth >= 1, 1, "peak half width must be >= 1")
	fixInt(KeyPeakHalfWidth, &c.PeakHalfWidth, c.PeakHalfWidth < bins, bins-1, "peak half width must be below half the fft size")
	fixFloat(KeyPeakRejectionRelation, &c.PeakRejectionRelation, between(c.PeakRejectionRelation, -maxLevelDB, maxLevelDB), def.PeakRejectionRelation, "rejection relation out of range")
	fixInt(KeyDFTNumber, &c.DFTNumber, c.DFTNumber >= 0, 0, "dft number must be >= 0")
	fixInt(KeyDFTNumber, &c.DFTNumber, c.DFTNumber <= maxDFTNumber, maxDFTNumber, "dft number too large")
	fixInt(KeyDFTSize, &c.DFTSize, c.DFTSize >= 3, 3, "dft size must be >= 3")
	fixInt(KeyDFTSize, &c.DFTSize, c.DFTSize <= maxDFTSize, maxDFTSize, "dft size too large")
	fixFloat(KeyGain, &c.Gain, core.IsFinite(c.Gain), 0, "gain must be finite")
	fixFloat(KeyGain, &c.Gain, between(c.Gain, -maxGainDB, maxGainDB), core.Clamp(c.Gain, -maxGainDB, maxGainDB), "gain out of range")
	fixInt(KeyMaxNRIter, &c.MaxNRIter, c.MaxNRIter >= 0, 0, "newton iterations must be >= 0")
	fixInt(KeyMaxNRIter, &c.MaxNRIter, c.MaxNRIter <= maxNRIter, maxNRIter, "too many newton iterations")

	t, err := window.ParseType(c.Window)
	if err != nil {
		out = append(out, Correction{Key: KeyWindow, From: c.Window, To: t.String(), Message: "unknown window"})
	}

	c.Window = t.String()

	n := bufferSize(c.TemporalWindow, c.SampleRate, c.Oversampling)

	switch {
	case n < c.FFTSize:
		enlarged := float64(c.FFTSize) * float64(c.Oversampling) / c.SampleRate
		fixFloat(KeyTemporalWindow, &c.TemporalWindow, false, enlarged, "temporal buffer shorter than fft size, window enlarged")
	case n > maxBufferSize:
		shrunk := float64(maxBufferSize-1) * float64(c.Oversampling) / c.SampleRate
		fixFloat(KeyTemporalWindow, &c.TemporalWindow, false, shrunk, "temporal buffer too large, window shortened")
	}

	return c, out
}

func fmtFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
