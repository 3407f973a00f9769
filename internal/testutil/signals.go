package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Harmonic generates a tone with the given partial amplitudes:
// amps[k] is the amplitude of (k+1)*fundamentalHz.
func Harmonic(fundamentalHz, sampleRate float64, amps []float64, length int) []float64 {
	out := make([]float64, length)
	for k, a := range amps {
		if a == 0 {
			continue
		}
		Mix(out, DeterministicSine(fundamentalHz*float64(k+1), sampleRate, a, length))
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Mix adds src into dst element-wise over the shorter length and returns dst.
func Mix(dst, src []float64) []float64 {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] += src[i]
	}
	return dst
}

// Scale multiplies x in place by gain and returns it.
func Scale(x []float64, gain float64) []float64 {
	for i := range x {
		x[i] *= gain
	}
	return x
}

// Frames splits x into consecutive chunks of at most size samples.
func Frames(x []float64, size int) [][]float64 {
	if size <= 0 {
		return nil
	}
	out := make([][]float64, 0, (len(x)+size-1)/size)
	for len(x) > 0 {
		n := min(size, len(x))
		out = append(out, x[:n])
		x = x[n:]
	}
	return out
}
