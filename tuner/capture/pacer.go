package capture

import (
	"context"
	"time"
)

// pacer spaces frames out to the wall-clock duration they represent.
type pacer struct {
	period time.Duration
	next   time.Time
}

func newPacer(frameSize int, sampleRate float64) *pacer {
	return &pacer{period: time.Duration(float64(frameSize) / sampleRate * float64(time.Second))}
}

// wait blocks until the next frame is due or ctx is done.
func (p *pacer) wait(ctx context.Context) error {
	now := time.Now()
	if p.next.IsZero() || now.Sub(p.next) > 10*p.period {
		// First frame, or the consumer fell far behind: resynchronize.
		p.next = now
	}

	d := p.next.Sub(now)
	p.next = p.next.Add(p.period)

	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
