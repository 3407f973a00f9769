package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned by Snapshot when fewer samples than
	// requested have been pushed since the ring was created or resized.
	ErrInsufficientData = errors.New("buffer: insufficient data")
	// ErrWindowTooLarge is returned by Snapshot when the requested window
	// exceeds the ring capacity.
	ErrWindowTooLarge = errors.New("buffer: window exceeds capacity")
)

// Ring is a fixed-capacity circular sample buffer.
//
// Push overwrites the oldest samples once the ring is full. The write
// position always points at the oldest sample (the next one to be
// overwritten).
type Ring struct {
	samples []float64
	pos     int
	filled  int
	written uint64
}

// NewRing returns an empty ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	return &Ring{samples: make([]float64, max(capacity, 0))}
}

// Push appends frame, discarding the oldest samples when capacity is
// exceeded. It never blocks and costs O(len(frame)).
func (r *Ring) Push(frame []float64) {
	n := len(r.samples)
	m := len(frame)
	if n == 0 || m == 0 {
		return
	}

	r.written += uint64(m)

	// Only the tail of an oversized frame can survive.
	if m >= n {
		copy(r.samples, frame[m-n:])
		r.pos = 0
		r.filled = n

		return
	}

	end := r.pos + m
	if end <= n {
		copy(r.samples[r.pos:end], frame)
	} else {
		split := n - r.pos
		copy(r.samples[r.pos:], frame[:split])
		copy(r.samples[:m-split], frame[split:])
	}

	r.pos = end % n
	r.filled = min(r.filled+m, n)
}

// Snapshot copies the most recent len(dst) samples into dst in
// chronological order (oldest first).
func (r *Ring) Snapshot(dst []float64) error {
	want := len(dst)
	n := len(r.samples)

	if want > n {
		return fmt.Errorf("%w: window %d, capacity %d", ErrWindowTooLarge, want, n)
	}

	if want > r.filled {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientData, r.filled, want)
	}

	if want == 0 {
		return nil
	}

	start := r.pos - want
	if start >= 0 {
		copy(dst, r.samples[start:r.pos])
		return nil
	}

	start += n
	head := n - start
	copy(dst[:head], r.samples[start:])
	copy(dst[head:], r.samples[:r.pos])

	return nil
}

// Len returns the number of valid samples currently held.
func (r *Ring) Len() int {
	return r.filled
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.samples)
}

// Written returns the total number of samples pushed since the last
// Reset or Resize.
func (r *Ring) Written() uint64 {
	return r.written
}

// Reset discards all buffered history while keeping the capacity.
func (r *Ring) Reset() {
	clear(r.samples)
	r.pos = 0
	r.filled = 0
	r.written = 0
}

// Resize reallocates the ring to a new capacity. All history is discarded.
func (r *Ring) Resize(capacity int) {
	capacity = max(capacity, 0)
	if capacity != len(r.samples) {
		r.samples = make([]float64, capacity)
	}

	r.Reset()
}
