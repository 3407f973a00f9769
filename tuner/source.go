package tuner

import (
	"context"
	"errors"
	"io"
	"time"
)

// captureRetryDelay is the pause after a failed capture read.
var captureRetryDelay = 50 * time.Millisecond

// Source delivers captured audio frames. ReadFrame blocks until a frame is
// available; io.EOF ends the stream and any other error is a capture
// failure that the engine survives.
type Source interface {
	ReadFrame(ctx context.Context) ([]float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]float64, error)

// ReadFrame calls f.
func (f SourceFunc) ReadFrame(ctx context.Context) ([]float64, error) {
	return f(ctx)
}

// Publisher receives the latest result and spectrum at the visualization
// rate. Publish runs on the scheduler goroutine and should return quickly.
type Publisher interface {
	Publish(Result, Spectrum)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Result, Spectrum)

// Publish calls f.
func (f PublisherFunc) Publish(r Result, s Spectrum) {
	f(r, s)
}

// Pump reads frames from src and pushes them into the engine until src
// reports io.EOF (returns nil) or ctx is done (returns ctx.Err()).
//
// Read failures are counted and absorbed: while reads fail, cycles report
// no signal. Only the first failure of a run is logged.
func (e *Engine) Pump(ctx context.Context, src Source) error {
	failing := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := src.ReadFrame(ctx)

		switch {
		case err == nil:
			if failing {
				e.log.Info().Msg("capture recovered")
			}

			failing = false
			e.captureFault.Store(false)
			e.Push(frame)
		case errors.Is(err, io.EOF):
			e.log.Debug().Msg("capture source exhausted")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			captureErrorsTotal.Inc()
			e.captureFault.Store(true)

			if !failing {
				e.log.Warn().Err(err).Msg("capture read failed")
			}

			failing = true

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(captureRetryDelay):
			}
		}
	}
}
