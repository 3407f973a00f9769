package spectrum

import (
	"sync"

	"github.com/cwbudde/algo-tuner/dsp/core"
	"github.com/cwbudde/algo-vecmath"
)

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	if cap(buf.data) < need {
		buf.data = make([]float64, need)
	} else {
		buf.data = buf.data[:need]
	}
	return buf.data[:n], buf.data[n:need], buf
}

// Power returns |X[k]|^2 for each complex spectrum bin.
func Power(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	PowerInto(out, in)

	return out
}

// PowerInto writes |X[k]|^2 for the first len(dst) bins of in into dst.
// Scratch buffers are pooled, so steady-state calls do not allocate.
func PowerInto(dst []float64, in []complex128) {
	n := min(len(dst), len(in))
	if n == 0 {
		return
	}

	re, im, buf := getScratch(n)
	for i, c := range in[:n] {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Power(dst[:n], re, im)
	scratchPool.Put(buf)
}

// PowerDB converts a power value to dB with a floor at -300 dB.
func PowerDB(p float64) float64 {
	if p <= 1e-30 {
		return -300
	}

	return core.LinearPowerToDB(p)
}
