package tuner

import (
	"fmt"

	"github.com/cwbudde/algo-tuner/dsp/buffer"
	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/cwbudde/algo-tuner/dsp/pitch"
	"github.com/cwbudde/algo-tuner/dsp/spectrum"
	"github.com/cwbudde/algo-tuner/dsp/window"
	"github.com/cwbudde/algo-tuner/tuner/config"
)

// Analyzer performs one calculation cycle: coarse spectrum, peak picking,
// zoom refinement, fundamental selection and note mapping.
//
// An Analyzer is bound to one configuration snapshot and is not safe for
// concurrent use.
type Analyzer struct {
	cfg     config.Config
	derived config.Derived
	scale   *pitch.Scale

	est     *spectrum.Estimator
	ref     *spectrum.Refiner
	peakCfg spectrum.PeakConfig

	power  []float64
	refWin []float64
	work   []float64
	cands  []pitch.Candidate
}

// NewAnalyzer builds an analyzer for cfg, which is normalized first. When
// scale is nil the equal tempered scale at the configured root is used.
func NewAnalyzer(cfg config.Config, scale *pitch.Scale) (*Analyzer, error) {
	cfg, _ = cfg.Normalize()
	d := cfg.Derive()

	if scale == nil {
		s, err := pitch.EqualTempered(d.RootFrequency)
		if err != nil {
			return nil, fmt.Errorf("tuner: scale: %w", err)
		}

		scale = s
	}

	est, err := spectrum.NewEstimator(cfg.FFTSize, d.EffectiveRate, d.WindowType, d.GainLinear)
	if err != nil {
		return nil, fmt.Errorf("tuner: estimator: %w", err)
	}

	ref, err := spectrum.NewRefiner(d.EffectiveRate, cfg.DFTNumber, cfg.DFTSize, cfg.MaxNRIter)
	if err != nil {
		return nil, fmt.Errorf("tuner: refiner: %w", err)
	}

	return &Analyzer{
		cfg:     cfg,
		derived: d,
		scale:   scale,
		est:     est,
		ref:     ref,
		peakCfg: spectrum.PeakConfig{
			BinWidth:       est.BinWidth(),
			MinFrequency:   cfg.MinFrequency,
			HalfWidth:      cfg.PeakHalfWidth,
			NoiseRatio:     d.NoiseThresholdLinear,
			RejectionRatio: d.PeakRejectionLinear,
			MaxPeaks:       cfg.PeakNumber,
		},
	}, nil
}

// Config returns the normalized configuration the analyzer was built for.
func (a *Analyzer) Config() config.Config { return a.cfg }

// Scale returns the reference scale.
func (a *Analyzer) Scale() *pitch.Scale { return a.scale }

// MinBlock returns the shortest block Analyze accepts.
func (a *Analyzer) MinBlock() int { return a.est.Size() }

// Analyze evaluates block, the newest samples of the temporal buffer in
// chronological order at the decimated rate. The coarse spectrum uses the
// last FFT-size samples; refinement uses the whole block.
//
// A block shorter than the FFT size yields buffer.ErrInsufficientData.
// Sequence and Timestamp of the returned values are left for the caller.
func (a *Analyzer) Analyze(block []float64) (Result, Spectrum, error) {
	n := a.est.Size()
	if len(block) < n {
		return Result{}, Spectrum{}, fmt.Errorf("tuner: %w: have %d, want %d", buffer.ErrInsufficientData, len(block), n)
	}

	coarse := block[len(block)-n:]

	power, err := a.est.Estimate(a.power, coarse)
	if err != nil {
		return Result{}, Spectrum{}, err
	}

	a.power = power

	rms := core.RMS(coarse)
	res := Result{LevelDB: spectrum.PowerDB(rms * rms)}

	set := spectrum.PickPeaks(power, a.peakCfg)
	spec := Spectrum{
		BinWidth:     a.est.BinWidth(),
		PowerDB:      make([]float64, len(power)),
		NoiseFloorDB: spectrum.PowerDB(set.NoiseFloor),
		Peaks:        make([]SpectrumPeak, 0, len(set.Peaks)),
	}

	for i, p := range power {
		spec.PowerDB[i] = spectrum.PowerDB(p)
	}

	if len(set.Peaks) == 0 {
		return res, spec, nil
	}

	if err := a.prepareRefinement(block); err != nil {
		return Result{}, Spectrum{}, err
	}

	a.cands = a.cands[:0]

	for _, p := range set.Peaks {
		r, err := a.ref.Refine(a.work, p.Frequency, a.est.BinWidth())
		if err != nil {
			continue
		}

		a.cands = append(a.cands, pitch.Candidate{Frequency: r.Frequency, Power: r.Power})
		spec.Peaks = append(spec.Peaks, SpectrumPeak{
			Bin:       p.Bin,
			Frequency: p.Frequency,
			Refined:   r.Frequency,
			PowerDB:   spectrum.PowerDB(p.Power),
		})
	}

	sel, ok := pitch.SelectFundamental(a.cands, a.scale, a.cfg.MinFrequency, a.derived.EffectiveRate/2)
	if !ok {
		return res, spec, nil
	}

	res.SignalPresent = true
	res.Frequency = sel.Frequency
	res.Note = sel.Name
	res.NoteIndex = sel.NoteIndex
	res.Octave = sel.Octave
	res.ReferenceFrequency = sel.Reference
	res.DeviationCents = sel.DeviationCents

	return res, spec, nil
}

// prepareRefinement copies block into the work buffer and applies the
// analysis window across its full length.
func (a *Analyzer) prepareRefinement(block []float64) error {
	if len(a.refWin) != len(block) {
		a.refWin = window.Generate(a.derived.WindowType, len(block))
	}

	a.work = core.EnsureLen(a.work, len(block))
	copy(a.work, block)

	return window.ApplyCoefficientsInPlace(a.work, a.refWin)
}
