package tuner

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tuner/dsp/buffer"
	"github.com/cwbudde/algo-tuner/dsp/pitch"
	signals "github.com/cwbudde/algo-tuner/internal/testutil"
	"github.com/cwbudde/algo-tuner/tuner/config"
)

const testRate = 22050.0

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SampleRate = testRate

	return cfg
}

func newTestEngine(t *testing.T, cfg config.Config, opts ...Option) *Engine {
	t.Helper()

	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)

	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Stop)

	return e
}

func pushFrames(e *Engine, x []float64) {
	for _, f := range signals.Frames(x, 441) {
		e.Push(f)
	}
}

func TestEngineSine440(t *testing.T) {
	e := newTestEngine(t, testConfig())

	pushFrames(e, signals.DeterministicSine(440, testRate, 0.5, int(testRate)))

	res, err := e.RunCycle()
	require.NoError(t, err)
	require.True(t, res.SignalPresent)

	signals.RequireCentsNear(t, res.Frequency, 440, 3)
	assert.InDelta(t, 0, res.DeviationCents, 5)
	assert.Equal(t, "A4", res.Label())

	latest, ok := e.Latest()
	require.True(t, ok)
	assert.Equal(t, res, latest)
}

func TestEnginePushPCM16(t *testing.T) {
	e := newTestEngine(t, testConfig())

	x := signals.DeterministicSine(261.63, testRate, 0.4, int(testRate))
	pcm := make([]int16, len(x))

	for i, v := range x {
		pcm[i] = int16(math.Round(v * 32767))
	}

	for i := 0; i < len(pcm); i += 512 {
		e.PushPCM16(pcm[i:min(i+512, len(pcm))])
	}

	res, err := e.RunCycle()
	require.NoError(t, err)
	require.True(t, res.SignalPresent)
	assert.Equal(t, "C4", res.Label())
	assert.InDelta(t, 0, res.DeviationCents, 5)
}

func TestEngineNoSignal(t *testing.T) {
	e := newTestEngine(t, testConfig())

	pushFrames(e, make([]float64, int(testRate)))

	res, err := e.RunCycle()
	require.NoError(t, err)
	assert.False(t, res.SignalPresent)

	for seed := int64(1); seed <= 4; seed++ {
		pushFrames(e, signals.DeterministicNoise(seed, 0.3, 8820))

		res, err := e.RunCycle()
		require.NoError(t, err)
		assert.False(t, res.SignalPresent, "seed=%d", seed)
	}
}

func TestEngineInsufficientData(t *testing.T) {
	e := newTestEngine(t, testConfig())

	// 1000 input samples decimate to 200, fewer than the 512-point FFT.
	pushFrames(e, signals.DeterministicSine(440, testRate, 0.5, 1000))

	_, err := e.RunCycle()
	require.Error(t, err)
	assert.True(t, errors.Is(err, buffer.ErrInsufficientData))

	_, ok := e.Latest()
	assert.False(t, ok)

	_, ok = e.LatestSpectrum()
	assert.False(t, ok)
}

func TestEngineSequenceAndClock(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(t, testConfig(), WithClock(func() time.Time { return stamp }))

	pushFrames(e, signals.DeterministicSine(330, testRate, 0.5, int(testRate)))

	first, err := e.RunCycle()
	require.NoError(t, err)

	second, err := e.RunCycle()
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, stamp, second.Timestamp)

	spec, ok := e.LatestSpectrum()
	require.True(t, ok)
	assert.Equal(t, uint64(2), spec.Sequence)
	assert.Len(t, spec.PowerDB, 256)
	assert.Equal(t, stamp, spec.Timestamp)
}

func TestEngineWithScale(t *testing.T) {
	s, err := pitch.NewScale("fifths", 440*math.Exp2(-0.75), 4, []pitch.Note{
		{Name: "C", Cents: 0},
		{Name: "G", Cents: 702},
	})
	require.NoError(t, err)

	e := newTestEngine(t, testConfig(), WithScale(s))

	cfg := testConfig()
	cfg.RootFrequencyError = 30
	require.NoError(t, e.Reconfigure(cfg))

	pushFrames(e, signals.DeterministicSine(440, testRate, 0.5, int(testRate)))

	res, err := e.RunCycle()
	require.NoError(t, err)
	require.True(t, res.SignalPresent)
	assert.Equal(t, "G", res.Note)
	assert.InDelta(t, 198, res.DeviationCents, 5)
}

func TestEngineReconfigure(t *testing.T) {
	e := newTestEngine(t, testConfig())
	sine := signals.DeterministicSine(440, testRate, 0.5, int(testRate))

	pushFrames(e, sine)

	// A new FFT size with the same buffer keeps the history.
	cfg := testConfig()
	cfg.FFTSize = 1024
	require.NoError(t, e.Reconfigure(cfg))
	assert.Equal(t, 1024, e.Config().FFTSize)

	res, err := e.RunCycle()
	require.NoError(t, err)
	require.True(t, res.SignalPresent)
	assert.InDelta(t, 440, res.Frequency, 1)

	spec, ok := e.LatestSpectrum()
	require.True(t, ok)
	assert.Len(t, spec.PowerDB, 512)

	// A new sample rate discards it.
	cfg.SampleRate = 44100
	require.NoError(t, e.Reconfigure(cfg))
	assert.Equal(t, int(math.Ceil(0.32*44100/5)), e.Derived().TemporalBufferSize)

	_, err = e.RunCycle()
	assert.True(t, errors.Is(err, buffer.ErrInsufficientData))

	pushFrames(e, signals.DeterministicSine(440, 44100, 0.5, 44100))

	res, err = e.RunCycle()
	require.NoError(t, err)
	require.True(t, res.SignalPresent)
	assert.InDelta(t, 440, res.Frequency, 1)
}

func TestEngineReconfigureCorrects(t *testing.T) {
	cfg := testConfig()
	cfg.FFTSize = 4096
	cfg.TemporalWindow = 0.05

	e := newTestEngine(t, cfg)

	got := e.Config()
	assert.Equal(t, 4096, got.FFTSize)
	assert.GreaterOrEqual(t, e.Derived().TemporalBufferSize, got.FFTSize)
}

func TestEngineReconfigureClampsOversizedValues(t *testing.T) {
	e := newTestEngine(t, testConfig())

	cfg := testConfig()
	cfg.TemporalWindow = 1e13
	cfg.Oversampling = 1 << 30
	cfg.DFTSize = 1 << 40
	cfg.DFTNumber = 1 << 20
	cfg.PeakHalfWidth = 1 << 30
	cfg.CalculationRate = 1e12
	require.NoError(t, e.Reconfigure(cfg))

	got := e.Config()
	assert.Equal(t, 64, got.Oversampling)
	assert.Equal(t, 1024, got.DFTSize)
	assert.Equal(t, 16, got.DFTNumber)
	assert.Less(t, got.PeakHalfWidth, got.FFTSize/2)
	assert.LessOrEqual(t, got.TemporalWindow, 10.0)
	assert.Positive(t, e.Derived().CalculationPeriod)

	done := make(chan error, 1)

	go func() {
		pushFrames(e, signals.DeterministicSine(100, testRate, 0.5, 2*int(testRate)))
		_, err := e.RunCycle()
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine blocked after reconfiguration")
	}

	// The engine keeps working with sane settings afterwards.
	require.NoError(t, e.Reconfigure(testConfig()))
	pushFrames(e, signals.DeterministicSine(440, testRate, 0.5, int(testRate)))

	res, err := e.RunCycle()
	require.NoError(t, err)
	require.True(t, res.SignalPresent)
	signals.RequireCentsNear(t, res.Frequency, 440, 3)
}

func TestEngineConcurrentReconfigure(t *testing.T) {
	e := newTestEngine(t, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		sine := signals.DeterministicSine(440, testRate, 0.5, 4410)
		for ctx.Err() == nil {
			pushFrames(e, sine)
		}
	}()

	wg.Add(1)

	go func() {
		defer wg.Done()

		sizes := []int{256, 1024, 512, 2048}
		rates := []float64{22050, 44100, 48000}

		for i := 0; ctx.Err() == nil; i++ {
			cfg := testConfig()
			cfg.FFTSize = sizes[i%len(sizes)]
			cfg.SampleRate = rates[i%len(rates)]
			assert.NoError(t, e.Reconfigure(cfg))
			time.Sleep(time.Millisecond)
		}
	}()

	for ctx.Err() == nil {
		res, err := e.RunCycle()
		if err != nil {
			require.True(t, errors.Is(err, buffer.ErrInsufficientData), "unexpected error: %v", err)
			continue
		}

		spec, ok := e.LatestSpectrum()
		require.True(t, ok)
		assert.GreaterOrEqual(t, res.Sequence, uint64(1))
		assert.NotEmpty(t, spec.PowerDB)
	}

	wg.Wait()
}

func TestEngineLifecycle(t *testing.T) {
	e := newTestEngine(t, testConfig())
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, "idle", e.State().String())

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, StateRunning, e.State())
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyRunning)

	e.Stop()
	assert.Equal(t, StateStopped, e.State())
	assert.ErrorIs(t, e.Start(context.Background()), ErrStopped)

	e.Stop()
	assert.Equal(t, StateStopped, e.State())
}

func TestEngineStopsWithContext(t *testing.T) {
	e := newTestEngine(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))

	cancel()

	require.Eventually(t, func() bool {
		return e.State() == StateStopped
	}, time.Second, 5*time.Millisecond)
}

type recorder struct {
	mu      sync.Mutex
	results []Result
	spectra []Spectrum
}

func (r *recorder) Publish(res Result, spec Spectrum) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, res)
	r.spectra = append(r.spectra, spec)
}

func (r *recorder) snapshot() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Result(nil), r.results...)
}

func TestEnginePublishesAtVisualizationRate(t *testing.T) {
	cfg := testConfig()
	cfg.CalculationRate = 200
	cfg.VisualizationRate = 100

	rec := &recorder{}
	e := newTestEngine(t, cfg, WithPublisher(rec))

	pushFrames(e, signals.DeterministicSine(440, testRate, 0.5, int(testRate)))
	require.NoError(t, e.Start(context.Background()))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	e.Stop()

	got := rec.snapshot()
	for i, res := range got {
		assert.True(t, res.SignalPresent)
		assert.InDelta(t, 440, res.Frequency, 1)

		if i > 0 {
			assert.Greater(t, res.Sequence, got[i-1].Sequence, "sequence must not repeat")
		}
	}

	rec.mu.Lock()
	assert.Equal(t, got[0].Sequence, rec.spectra[0].Sequence)
	rec.mu.Unlock()
}

func TestEngineRateChangeWhileRunning(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, testConfig(), WithPublisher(rec))

	pushFrames(e, signals.DeterministicSine(440, testRate, 0.5, int(testRate)))
	require.NoError(t, e.Start(context.Background()))

	cfg := testConfig()
	cfg.CalculationRate = 250
	cfg.VisualizationRate = 125
	require.NoError(t, e.Reconfigure(cfg))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

// scriptedSource replays frames and errors in order, then reports io.EOF.
type scriptedSource struct {
	steps []func() ([]float64, error)
}

func (s *scriptedSource) ReadFrame(context.Context) ([]float64, error) {
	if len(s.steps) == 0 {
		return nil, io.EOF
	}

	step := s.steps[0]
	s.steps = s.steps[1:]

	return step()
}

func (s *scriptedSource) frames(x []float64) *scriptedSource {
	for _, f := range signals.Frames(x, 441) {
		s.steps = append(s.steps, func() ([]float64, error) { return f, nil })
	}

	return s
}

func (s *scriptedSource) fail() *scriptedSource {
	s.steps = append(s.steps, func() ([]float64, error) {
		return nil, errors.New("device unplugged")
	})

	return s
}

func withFastRetry(t *testing.T) {
	t.Helper()

	prev := captureRetryDelay
	captureRetryDelay = time.Millisecond

	t.Cleanup(func() { captureRetryDelay = prev })
}

func TestPumpCaptureFailureDegradesToNoSignal(t *testing.T) {
	withFastRetry(t)

	e := newTestEngine(t, testConfig())
	sine := signals.DeterministicSine(440, testRate, 0.5, 2*int(testRate))

	before := testutil.ToFloat64(captureErrorsTotal)

	src := (&scriptedSource{}).frames(sine[:int(testRate)]).fail()
	require.NoError(t, e.Pump(context.Background(), src))

	assert.Equal(t, before+1, testutil.ToFloat64(captureErrorsTotal))

	res, err := e.RunCycle()
	require.NoError(t, err)
	assert.False(t, res.SignalPresent)

	// A good frame clears the fault.
	src = (&scriptedSource{}).fail().fail().frames(sine[int(testRate):])
	require.NoError(t, e.Pump(context.Background(), src))

	res, err = e.RunCycle()
	require.NoError(t, err)
	assert.True(t, res.SignalPresent)
	signals.RequireCentsNear(t, res.Frequency, 440, 3)
}

func TestPumpStopsOnContext(t *testing.T) {
	e := newTestEngine(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())

	src := SourceFunc(func(ctx context.Context) ([]float64, error) {
		cancel()
		return make([]float64, 441), nil
	})

	err := e.Pump(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}
