package capture

type sourceConfig struct {
	frameSize int
	realtime  bool
	noiseAmp  float64
	noiseSeed int64
	loop      bool
}

// Option configures a source.
type Option func(*sourceConfig)

const defaultFrameSize = 512

func defaultSourceConfig() sourceConfig {
	return sourceConfig{frameSize: defaultFrameSize, noiseSeed: 1}
}

func applyOptions(opts []Option) sourceConfig {
	cfg := defaultSourceConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// WithFrameSize sets the number of samples per frame (default 512).
func WithFrameSize(n int) Option {
	return func(cfg *sourceConfig) {
		if n > 0 {
			cfg.frameSize = n
		}
	}
}

// WithRealtime paces ReadFrame to the stream's sample rate instead of
// returning frames as fast as they are requested.
func WithRealtime() Option {
	return func(cfg *sourceConfig) {
		cfg.realtime = true
	}
}

// WithNoise adds deterministic white noise of the given peak amplitude to
// a synthetic tone.
func WithNoise(amplitude float64, seed int64) Option {
	return func(cfg *sourceConfig) {
		cfg.noiseAmp = amplitude
		cfg.noiseSeed = seed
	}
}

// WithLoop rewinds a file source at its end instead of reporting io.EOF.
func WithLoop() Option {
	return func(cfg *sourceConfig) {
		cfg.loop = true
	}
}
