package decimate

import "errors"

// ErrInvalidFactor indicates a decimation factor below 1.
var ErrInvalidFactor = errors.New("decimate: factor must be >= 1")

type config struct {
	tapsPerFactor int
	cutoffScale   float64
	kaiserBeta    float64
}

// Option configures the anti-alias filter.
type Option func(*config)

// WithTapsPerFactor sets the filter length to n*factor+1 taps.
func WithTapsPerFactor(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.tapsPerFactor = n
		}
	}
}

// WithCutoffScale scales the cutoff relative to the output Nyquist
// frequency. Must be in (0, 1].
func WithCutoffScale(v float64) Option {
	return func(cfg *config) {
		if v > 0 && v <= 1 {
			cfg.cutoffScale = v
		}
	}
}

// WithKaiserBeta overrides the Kaiser window beta parameter.
func WithKaiserBeta(beta float64) Option {
	return func(cfg *config) {
		if beta >= 0 {
			cfg.kaiserBeta = beta
		}
	}
}

func defaultConfig() config {
	return config{
		tapsPerFactor: 16,
		cutoffScale:   0.9,
		kaiserBeta:    7.5,
	}
}

// Decimator is a streaming anti-aliased integer downsampler.
// It is not safe for concurrent use.
type Decimator struct {
	factor  int
	taps    []float64
	history []float64
	work    []float64
	// offset is the index within the next input block of the next
	// sample that produces an output.
	offset int
}

// New creates a decimator for the given integer factor.
func New(factor int, opts ...Option) (*Decimator, error) {
	if factor < 1 {
		return nil, ErrInvalidFactor
	}

	d := &Decimator{factor: factor}
	if factor == 1 {
		return d, nil
	}

	cfg := defaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	taps, err := designLowpass(factor, cfg)
	if err != nil {
		return nil, err
	}

	d.taps = taps
	d.history = make([]float64, len(taps)-1)

	return d, nil
}

// Factor returns the decimation factor.
func (d *Decimator) Factor() int {
	return d.factor
}

// Taps returns a copy of the anti-alias filter taps (nil for factor 1).
func (d *Decimator) Taps() []float64 {
	if d.taps == nil {
		return nil
	}

	return append([]float64(nil), d.taps...)
}

// Reset clears filter history and output phase.
func (d *Decimator) Reset() {
	clear(d.history)
	d.offset = 0
}

// OutputLen returns how many samples the next Process call produces for
// an input of n samples.
func (d *Decimator) OutputLen(n int) int {
	if n <= d.offset {
		return 0
	}

	return (n - d.offset + d.factor - 1) / d.factor
}

// Process filters and downsamples input, returning a new slice.
func (d *Decimator) Process(input []float64) []float64 {
	return d.AppendProcess(nil, input)
}

// AppendProcess appends the decimated output for input to dst and returns
// the extended slice.
func (d *Decimator) AppendProcess(dst, input []float64) []float64 {
	if len(input) == 0 {
		return dst
	}

	if d.factor == 1 {
		return append(dst, input...)
	}

	hist := len(d.history)
	d.work = append(append(d.work[:0], d.history...), input...)

	i := d.offset
	for ; i < len(input); i += d.factor {
		// Newest sample for this output is work[hist+i].
		base := hist + i

		var y float64
		for k, c := range d.taps {
			y += c * d.work[base-k]
		}

		dst = append(dst, y)
	}

	d.offset = i - len(input)
	copy(d.history, d.work[len(d.work)-hist:])

	return dst
}
