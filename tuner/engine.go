package tuner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cwbudde/algo-tuner/dsp/buffer"
	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/cwbudde/algo-tuner/dsp/decimate"
	"github.com/cwbudde/algo-tuner/dsp/pitch"
	"github.com/cwbudde/algo-tuner/internal/logging"
	"github.com/cwbudde/algo-tuner/tuner/config"
)

var (
	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("tuner: engine already running")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("tuner: engine stopped")
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Engine is the scheduler of the tuner pipeline.
//
// Push, PushPCM16, Reconfigure, Latest and LatestSpectrum are safe for
// concurrent use. stateMu guards the configuration snapshot together with
// the ring and decimator and is only held for copies and swaps. cycleMu
// serializes calculation cycles against reconfiguration, so a cycle always
// completes on the analyzer it started with.
type Engine struct {
	log       zerolog.Logger
	now       func() time.Time
	scale     *pitch.Scale
	publisher Publisher
	pool      *buffer.Pool

	state atomic.Int32

	stateMu sync.Mutex
	cfg     config.Config
	derived config.Derived
	ring    *buffer.Ring
	dec     *decimate.Decimator
	decBuf  []float64

	cycleMu  sync.Mutex
	analyzer *Analyzer
	snap     []float64

	seq            atomic.Uint64
	latest         atomic.Pointer[Result]
	latestSpectrum atomic.Pointer[Spectrum]
	captureFault   atomic.Bool

	rateChanged chan struct{}

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an idle engine for cfg. Invalid settings are corrected
// and logged as warnings.
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	ec := defaultEngineConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&ec)
		}
	}

	e := &Engine{
		now:         ec.now,
		scale:       ec.scale,
		publisher:   ec.publisher,
		pool:        buffer.NewPool(),
		rateChanged: make(chan struct{}, 1),
	}

	if ec.logger != nil {
		e.log = *ec.logger
	} else {
		e.log = logging.Component("engine")
	}

	if err := e.Reconfigure(cfg); err != nil {
		return nil, err
	}

	engineState.Set(float64(StateIdle))

	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	prev := State(e.state.Swap(int32(s)))
	if prev == s {
		return
	}

	engineState.Set(float64(s))
	e.log.Info().Stringer("from", prev).Stringer("to", s).Msg("engine state changed")
}

// Config returns the active normalized configuration.
func (e *Engine) Config() config.Config {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	return e.cfg
}

// Derived returns the parameters derived from the active configuration.
func (e *Engine) Derived() config.Derived {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	return e.derived
}

// Reconfigure normalizes cfg and swaps it in between calculation cycles.
//
// The sample history survives only when sample rate, oversampling and the
// temporal buffer size are unchanged; otherwise the ring is reallocated
// empty and the decimator restarts.
func (e *Engine) Reconfigure(cfg config.Config) error {
	norm, corrections := cfg.Normalize()
	for _, c := range corrections {
		e.log.Warn().
			Str("key", c.Key).
			Str("from", c.From).
			Str("to", c.To).
			Msg(c.Message)
	}

	a, err := NewAnalyzer(norm, e.scale)
	if err != nil {
		return err
	}

	d := a.derived

	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	// cycleMu excludes other reconfigurations, so cfg and derived cannot
	// change until the swap below.
	e.stateMu.Lock()
	prev, prevDerived, hasRing := e.cfg, e.derived, e.ring != nil
	e.stateMu.Unlock()

	keep := hasRing &&
		prev.SampleRate == norm.SampleRate &&
		prev.Oversampling == norm.Oversampling &&
		prevDerived.TemporalBufferSize == d.TemporalBufferSize

	var (
		ring *buffer.Ring
		dec  *decimate.Decimator
	)

	if !keep {
		dec, err = decimate.New(norm.Oversampling)
		if err != nil {
			return fmt.Errorf("tuner: decimator: %w", err)
		}

		ring = buffer.NewRing(d.TemporalBufferSize)
	}

	ratesChanged := prev.CalculationRate != norm.CalculationRate ||
		prev.VisualizationRate != norm.VisualizationRate

	e.stateMu.Lock()
	if !keep {
		e.ring = ring
		e.dec = dec
	}

	e.cfg = norm
	e.derived = d
	e.analyzer = a
	e.stateMu.Unlock()

	reconfigurationsTotal.Inc()

	if ratesChanged {
		select {
		case e.rateChanged <- struct{}{}:
		default:
		}
	}

	e.log.Info().
		Float64("sample_rate", norm.SampleRate).
		Int("oversampling", norm.Oversampling).
		Int("fft_size", norm.FFTSize).
		Int("buffer_size", d.TemporalBufferSize).
		Float64("bin_width", d.BinWidth).
		Bool("history_kept", keep).
		Msg("configuration applied")

	return nil
}

// Push decimates frame and appends it to the temporal buffer. It never
// waits on a calculation cycle.
func (e *Engine) Push(frame []float64) {
	if len(frame) == 0 {
		return
	}

	e.stateMu.Lock()
	e.decBuf = e.dec.AppendProcess(e.decBuf[:0], frame)
	e.ring.Push(e.decBuf)
	e.stateMu.Unlock()

	samplesPushedTotal.Add(float64(len(frame)))
}

// PushPCM16 converts signed 16-bit samples to [-1, 1) and pushes them.
func (e *Engine) PushPCM16(frame []int16) {
	if len(frame) == 0 {
		return
	}

	b := e.pool.Get(len(frame))
	defer e.pool.Put(b)

	s := b.Samples()
	for i, v := range frame {
		s[i] = float64(v) / 32768
	}

	e.Push(s)
}

// Latest returns the most recent result, if any cycle completed yet.
func (e *Engine) Latest() (Result, bool) {
	r := e.latest.Load()
	if r == nil {
		return Result{}, false
	}

	return *r, true
}

// LatestSpectrum returns the spectrum of the most recent cycle.
func (e *Engine) LatestSpectrum() (Spectrum, bool) {
	s := e.latestSpectrum.Load()
	if s == nil {
		return Spectrum{}, false
	}

	return *s, true
}

// RunCycle runs one calculation cycle synchronously and publishes its
// result. It returns an error wrapping buffer.ErrInsufficientData when the
// buffer holds fewer samples than the FFT size; nothing is published then.
func (e *Engine) RunCycle() (Result, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	a := e.analyzer

	e.stateMu.Lock()
	n := e.ring.Len()
	if n < a.MinBlock() {
		n = a.MinBlock()
	}

	e.snap = core.EnsureLen(e.snap, n)
	err := e.ring.Snapshot(e.snap)
	e.stateMu.Unlock()

	if err != nil {
		cycleSkipsTotal.Inc()
		e.log.Debug().Err(err).Msg("cycle skipped")

		return Result{}, fmt.Errorf("tuner: %w", err)
	}

	start := time.Now()

	res, spec, err := a.Analyze(e.snap)
	if err != nil {
		cycleSkipsTotal.Inc()
		return Result{}, err
	}

	cycleDuration.Observe(time.Since(start).Seconds())

	if e.captureFault.Load() {
		res = Result{LevelDB: res.LevelDB}
	}

	res.Sequence = e.seq.Add(1)
	res.Timestamp = e.now()
	spec.Sequence = res.Sequence
	spec.Timestamp = res.Timestamp

	cyclesTotal.Inc()

	if res.SignalPresent {
		lastFrequency.Set(res.Frequency)
		lastDeviation.Set(res.DeviationCents)
	} else {
		noSignalTotal.Inc()
	}

	e.latest.Store(&res)
	e.latestSpectrum.Store(&spec)

	return res, nil
}

// Start launches the scheduler goroutine. It stops when ctx is done or
// Stop is called. A stopped engine cannot be restarted.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	switch e.State() {
	case StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	e.setState(StateRunning)

	go e.loop(ctx, done)

	return nil
}

// Stop halts the scheduler and waits for it to exit. The last result stays
// readable. Stop is idempotent.
func (e *Engine) Stop() {
	e.runMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	e.setState(StateStopped)
}

func (e *Engine) periods() (calc, vis time.Duration) {
	d := e.Derived()
	return d.CalculationPeriod, d.VisualizationPeriod
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	calcPeriod, visPeriod := e.periods()

	calc := time.NewTicker(calcPeriod)
	defer calc.Stop()

	vis := time.NewTicker(visPeriod)
	defer vis.Stop()

	var published uint64

	for {
		select {
		case <-ctx.Done():
			e.setState(StateStopped)
			return
		case <-e.rateChanged:
			calcPeriod, visPeriod = e.periods()
			calc.Reset(calcPeriod)
			vis.Reset(visPeriod)
			e.log.Debug().
				Dur("calculation", calcPeriod).
				Dur("visualization", visPeriod).
				Msg("rates changed")
		case <-calc.C:
			// Errors are counted and logged inside RunCycle.
			_, _ = e.RunCycle()
		case <-vis.C:
			published = e.publish(published)
		}
	}
}

// publish hands the latest result to the publisher unless it was already
// delivered, and returns the delivered sequence number.
func (e *Engine) publish(last uint64) uint64 {
	if e.publisher == nil {
		return last
	}

	res, ok := e.Latest()
	if !ok || res.Sequence == last {
		return last
	}

	spec, _ := e.LatestSpectrum()
	e.publisher.Publish(res, spec)

	return res.Sequence
}
