package buffer

// Buffer wraps a float64 slice with reuse-friendly semantics.
type Buffer struct {
	samples []float64
}

// New returns a zero-filled Buffer of the given length.
func New(length int) *Buffer {
	return &Buffer{samples: make([]float64, max(length, 0))}
}

// Samples returns the underlying slice.
func (b *Buffer) Samples() []float64 {
	return b.samples
}

// Len returns the current number of samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Resize sets the length to n, reusing existing capacity when possible.
// Contents after Resize are unspecified; call Zero if needed.
func (b *Buffer) Resize(n int) {
	n = max(n, 0)
	if n <= cap(b.samples) {
		b.samples = b.samples[:n]
		return
	}

	b.samples = make([]float64, n)
}

// Zero sets all samples to 0.
func (b *Buffer) Zero() {
	clear(b.samples)
}
