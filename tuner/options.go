package tuner

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cwbudde/algo-tuner/dsp/pitch"
)

type engineConfig struct {
	logger    *zerolog.Logger
	now       func() time.Time
	scale     *pitch.Scale
	publisher Publisher
}

// Option configures an Engine.
type Option func(*engineConfig)

func defaultEngineConfig() engineConfig {
	return engineConfig{now: time.Now}
}

// WithLogger sets the engine logger. The default is the process logger
// tagged with component "engine".
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = &l
	}
}

// WithClock overrides the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithScale fixes the reference scale. Without it the 12-TET scale is
// rebuilt from the configured root frequency on every reconfiguration.
func WithScale(s *pitch.Scale) Option {
	return func(cfg *engineConfig) {
		cfg.scale = s
	}
}

// WithPublisher registers the presentation collaborator.
func WithPublisher(p Publisher) Option {
	return func(cfg *engineConfig) {
		cfg.publisher = p
	}
}
