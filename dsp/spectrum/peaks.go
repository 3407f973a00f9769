package spectrum

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Peak is a candidate spectral peak.
type Peak struct {
	Bin       int
	Frequency float64
	Power     float64
}

// PeakConfig controls peak selection.
type PeakConfig struct {
	// BinWidth is the spectrum resolution in Hz.
	BinWidth float64
	// MinFrequency excludes bins below this frequency.
	MinFrequency float64
	// HalfWidth is the number of bins on each side a peak must exceed.
	HalfWidth int
	// NoiseRatio is the linear power ratio a peak must reach over the
	// noise floor.
	NoiseRatio float64
	// RejectionRatio is the linear power ratio by which the nearest
	// stronger peak may exceed a candidate before it is dropped.
	RejectionRatio float64
	// MaxPeaks caps the number of returned peaks.
	MaxPeaks int
}

// PeakSet is the outcome of PickPeaks.
type PeakSet struct {
	Peaks []Peak
	// NoiseFloor is the median power of the searched band.
	NoiseFloor float64
}

// searchBand returns the bin range [lo, hi) considered for peaks.
func searchBand(bins int, cfg PeakConfig) (lo, hi int) {
	lo = 1
	if cfg.BinWidth > 0 && cfg.MinFrequency > 0 {
		lo = max(lo, int(math.Ceil(cfg.MinFrequency/cfg.BinWidth)))
	}

	return lo, bins
}

// NoiseFloor returns the median power of the bins PickPeaks would search.
func NoiseFloor(power []float64, cfg PeakConfig) float64 {
	lo, hi := searchBand(len(power), cfg)
	if lo >= hi {
		return 0
	}

	band := slices.Clone(power[lo:hi])
	sort.Float64s(band)

	return stat.Quantile(0.5, stat.Empirical, band, nil)
}

// PickPeaks returns the strongest candidate peaks of a power spectrum in
// descending power order.
//
// A bin is a candidate if it is a strict local maximum within HalfWidth
// bins on either side. Candidates below NoiseRatio times the median floor
// are discarded, as are candidates whose nearest stronger local maximum
// exceeds them by more than RejectionRatio.
func PickPeaks(power []float64, cfg PeakConfig) PeakSet {
	lo, hi := searchBand(len(power), cfg)
	if lo >= hi {
		return PeakSet{}
	}

	floor := NoiseFloor(power, cfg)
	half := max(cfg.HalfWidth, 1)

	maxima := make([]Peak, 0, 16)

	for k := lo; k < hi; k++ {
		if isLocalMax(power, k, half) {
			maxima = append(maxima, Peak{
				Bin:       k,
				Frequency: float64(k) * cfg.BinWidth,
				Power:     power[k],
			})
		}
	}

	out := make([]Peak, 0, len(maxima))

	for i, p := range maxima {
		if !(p.Power > 0) || p.Power < cfg.NoiseRatio*floor {
			continue
		}

		if s, ok := nearestStronger(maxima, i); ok && s.Power > cfg.RejectionRatio*p.Power {
			continue
		}

		out = append(out, p)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Power > out[b].Power
	})

	if cfg.MaxPeaks > 0 && len(out) > cfg.MaxPeaks {
		out = out[:cfg.MaxPeaks]
	}

	return PeakSet{Peaks: out, NoiseFloor: floor}
}

func isLocalMax(power []float64, k, half int) bool {
	v := power[k]

	for j := max(0, k-half); j <= min(len(power)-1, k+half); j++ {
		if j != k && power[j] >= v {
			return false
		}
	}

	return true
}

// nearestStronger finds the closest local maximum (by bin distance) with
// more power than maxima[i]. Equidistant ties go to the stronger one.
func nearestStronger(maxima []Peak, i int) (Peak, bool) {
	p := maxima[i]

	var (
		best  Peak
		found bool
		dist  int
	)

	for j, q := range maxima {
		if j == i || q.Power <= p.Power {
			continue
		}

		d := q.Bin - p.Bin
		if d < 0 {
			d = -d
		}

		if !found || d < dist || (d == dist && q.Power > best.Power) {
			best, dist, found = q, d, true
		}
	}

	return best, found
}
