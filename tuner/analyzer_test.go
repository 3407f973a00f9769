package tuner

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tuner/dsp/buffer"
	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/cwbudde/algo-tuner/internal/testutil"
	"github.com/cwbudde/algo-tuner/tuner/config"
)

// directConfig analyses at 4410 Hz without decimation; the temporal buffer
// holds 1412 samples.
func directConfig() config.Config {
	cfg := config.Default()
	cfg.SampleRate = 4410
	cfg.Oversampling = 1

	return cfg
}

func newTestAnalyzer(t *testing.T, cfg config.Config) *Analyzer {
	t.Helper()

	a, err := NewAnalyzer(cfg, nil)
	require.NoError(t, err)

	return a
}

func TestAnalyzerSine(t *testing.T) {
	a := newTestAnalyzer(t, directConfig())

	res, spec, err := a.Analyze(testutil.DeterministicSine(440, 4410, 0.5, 1412))
	require.NoError(t, err)

	require.True(t, res.SignalPresent)
	assert.InDelta(t, 440, res.Frequency, 0.01)
	assert.Equal(t, "A", res.Note)
	assert.Equal(t, 9, res.NoteIndex)
	assert.Equal(t, 4, res.Octave)
	assert.InDelta(t, 440, res.ReferenceFrequency, 1e-9)
	assert.InDelta(t, 0, res.DeviationCents, 0.05)
	assert.InDelta(t, core.AmplitudeToDB(0.5/math.Sqrt2), res.LevelDB, 0.1)
	assert.Equal(t, "A4", res.Label())

	assert.Len(t, spec.PowerDB, 256)
	assert.InDelta(t, 4410.0/512, spec.BinWidth, 1e-12)
	require.NotEmpty(t, spec.Peaks)
	assert.InDelta(t, 440, spec.Peaks[0].Refined, 0.01)
	assert.InDelta(t, 440, spec.Peaks[0].Frequency, spec.BinWidth)
}

func TestAnalyzerCentSweepIsMonotonic(t *testing.T) {
	a := newTestAnalyzer(t, directConfig())

	prev := math.Inf(-1)

	for _, cents := range []float64{-40, -25, -10, -1, 0, 1, 10, 25, 40} {
		f := core.ShiftCents(440, cents)

		res, _, err := a.Analyze(testutil.DeterministicSine(f, 4410, 0.5, 1412))
		require.NoError(t, err)
		require.True(t, res.SignalPresent, "cents=%v", cents)

		assert.Equal(t, "A", res.Note, "cents=%v", cents)
		assert.InDelta(t, cents, res.DeviationCents, 0.1, "cents=%v", cents)
		assert.Greater(t, res.DeviationCents, prev, "cents=%v", cents)

		prev = res.DeviationCents
	}
}

func TestAnalyzerHarmonicToneReportsFundamental(t *testing.T) {
	a := newTestAnalyzer(t, directConfig())

	x := testutil.Harmonic(110, 4410, []float64{0.5, 0.3, 0.2}, 1412)

	res, _, err := a.Analyze(x)
	require.NoError(t, err)
	require.True(t, res.SignalPresent)

	assert.InDelta(t, 110, res.Frequency, 0.05)
	assert.Equal(t, "A", res.Note)
	assert.Equal(t, 2, res.Octave)
}

func TestAnalyzerPeakRejection(t *testing.T) {
	a := newTestAnalyzer(t, directConfig())

	strong := testutil.DeterministicSine(440, 4410, 1, 1412)

	// 26 dB below the strong tone: beyond the 20 dB rejection relation.
	weak := testutil.Mix(testutil.DeterministicSine(600, 4410, 0.05, 1412), strong)

	_, spec, err := a.Analyze(weak)
	require.NoError(t, err)
	require.Len(t, spec.Peaks, 1)
	assert.InDelta(t, 440, spec.Peaks[0].Refined, 0.01)

	// 10 dB below survives.
	kept := testutil.Mix(testutil.DeterministicSine(600, 4410, 0.3, 1412), strong)

	_, spec, err = a.Analyze(kept)
	require.NoError(t, err)
	require.Len(t, spec.Peaks, 2)
	assert.InDelta(t, 440, spec.Peaks[0].Refined, 0.01)
	assert.InDelta(t, 600, spec.Peaks[1].Refined, 0.01)
}

func TestAnalyzerSilenceAndNoise(t *testing.T) {
	a := newTestAnalyzer(t, directConfig())

	res, spec, err := a.Analyze(make([]float64, 1412))
	require.NoError(t, err)
	assert.False(t, res.SignalPresent)
	assert.Zero(t, res.Frequency)
	assert.Equal(t, -300.0, res.LevelDB)
	assert.Empty(t, spec.Peaks)
	assert.Equal(t, "-", res.Label())

	for seed := int64(1); seed <= 5; seed++ {
		res, _, err := a.Analyze(testutil.DeterministicNoise(seed, 0.5, 1412))
		require.NoError(t, err)
		assert.False(t, res.SignalPresent, "seed=%d", seed)
	}
}

func TestAnalyzerOctaveConsistency(t *testing.T) {
	a := newTestAnalyzer(t, directConfig())

	for _, tc := range []struct {
		freq   float64
		octave int
	}{
		{freq: 55, octave: 1},
		{freq: 110, octave: 2},
		{freq: 220, octave: 3},
		{freq: 880, octave: 5},
		{freq: 1760, octave: 6},
	} {
		res, _, err := a.Analyze(testutil.DeterministicSine(tc.freq, 4410, 0.5, 1412))
		require.NoError(t, err)
		require.True(t, res.SignalPresent, "f=%v", tc.freq)

		assert.Equal(t, "A", res.Note, "f=%v", tc.freq)
		assert.Equal(t, tc.octave, res.Octave, "f=%v", tc.freq)
		assert.InDelta(t, 0, res.DeviationCents, 0.1, "f=%v", tc.freq)
	}
}

func TestAnalyzerShortBlock(t *testing.T) {
	a := newTestAnalyzer(t, directConfig())

	_, _, err := a.Analyze(make([]float64, 100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, buffer.ErrInsufficientData))

	// Exactly one FFT block is enough.
	res, _, err := a.Analyze(testutil.DeterministicSine(440, 4410, 0.5, 512))
	require.NoError(t, err)
	require.True(t, res.SignalPresent)
	assert.InDelta(t, 440, res.Frequency, 0.05)
}

func TestAnalyzerNormalizesConfig(t *testing.T) {
	cfg := directConfig()
	cfg.FFTSize = 500
	cfg.Window = "bogus"

	a := newTestAnalyzer(t, cfg)
	assert.Equal(t, 512, a.Config().FFTSize)
	assert.Equal(t, "hann", a.Config().Window)
	assert.Equal(t, 512, a.MinBlock())
	assert.Equal(t, "12-TET", a.Scale().Name())
}
