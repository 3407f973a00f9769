package decimate

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-tuner/dsp/window"
)

// designLowpass returns a unity-DC-gain linear-phase FIR with cutoff
// cutoffScale*0.5/factor (normalized to the input rate).
func designLowpass(factor int, cfg config) ([]float64, error) {
	if factor < 1 {
		return nil, ErrInvalidFactor
	}

	if cfg.tapsPerFactor <= 0 {
		return nil, errors.New("decimate: taps per factor must be > 0")
	}

	fc := 0.5 / float64(factor) * cfg.cutoffScale
	if fc <= 0 || fc >= 0.5 {
		return nil, fmt.Errorf("decimate: invalid cutoff %.6f", fc)
	}

	nTaps := cfg.tapsPerFactor*factor + 1

	kaiser, err := window.Kaiser(nTaps, cfg.kaiserBeta)
	if err != nil {
		return nil, err
	}

	taps := make([]float64, nTaps)
	center := 0.5 * float64(nTaps-1)

	var sum float64

	for n := range taps {
		t := float64(n) - center
		taps[n] = 2 * fc * sinc(2*fc*t) * kaiser[n]
		sum += taps[n]
	}

	if sum == 0 {
		return nil, errors.New("decimate: designed zero-sum filter")
	}

	for i := range taps {
		taps[i] /= sum
	}

	return taps, nil
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-12 {
		return 1
	}

	pix := math.Pi * x

	return math.Sin(pix) / pix
}
