package spectrum

import (
	"testing"

	"github.com/cwbudde/algo-tuner/dsp/window"
	"github.com/cwbudde/algo-tuner/internal/testutil"
)

func flatSpectrum(n int, level float64, peaks map[int]float64) []float64 {
	p := testutil.DC(level, n)
	for k, v := range peaks {
		p[k] = v
	}

	return p
}

func defaultPeakConfig() PeakConfig {
	return PeakConfig{
		BinWidth:       10,
		MinFrequency:   15,
		HalfWidth:      1,
		NoiseRatio:     100,
		RejectionRatio: 100,
		MaxPeaks:       3,
	}
}

func TestPickPeaksOrdering(t *testing.T) {
	power := flatSpectrum(64, 1, map[int]float64{10: 500, 20: 5000, 30: 1000})

	set := PickPeaks(power, defaultPeakConfig())
	if len(set.Peaks) != 3 {
		t.Fatalf("got %d peaks, want 3: %+v", len(set.Peaks), set.Peaks)
	}

	wantBins := []int{20, 30, 10}
	for i, p := range set.Peaks {
		if p.Bin != wantBins[i] {
			t.Fatalf("peak %d at bin %d, want %d", i, p.Bin, wantBins[i])
		}

		if p.Frequency != float64(p.Bin)*10 {
			t.Fatalf("peak %d frequency %v", i, p.Frequency)
		}
	}

	if set.NoiseFloor != 1 {
		t.Fatalf("NoiseFloor = %v, want 1", set.NoiseFloor)
	}
}

func TestPickPeaksRejectsWeakNeighbour(t *testing.T) {
	power := flatSpectrum(64, 0.01, map[int]float64{10: 1000, 13: 5, 40: 20})

	set := PickPeaks(power, defaultPeakConfig())
	if len(set.Peaks) != 2 {
		t.Fatalf("got %+v, want bins 10 and 40", set.Peaks)
	}

	if set.Peaks[0].Bin != 10 || set.Peaks[1].Bin != 40 {
		t.Fatalf("got %+v", set.Peaks)
	}
}

func TestPickPeaksNoiseThreshold(t *testing.T) {
	power := flatSpectrum(64, 1, map[int]float64{10: 99, 20: 100})

	set := PickPeaks(power, defaultPeakConfig())
	if len(set.Peaks) != 1 || set.Peaks[0].Bin != 20 {
		t.Fatalf("got %+v, want only bin 20", set.Peaks)
	}
}

func TestPickPeaksMinFrequencyAndCap(t *testing.T) {
	cfg := defaultPeakConfig()
	cfg.MinFrequency = 105
	cfg.MaxPeaks = 1

	power := flatSpectrum(64, 1, map[int]float64{5: 1e6, 20: 400, 30: 300})

	set := PickPeaks(power, cfg)
	if len(set.Peaks) != 1 || set.Peaks[0].Bin != 20 {
		t.Fatalf("got %+v, want only bin 20", set.Peaks)
	}
}

func TestPickPeaksHalfWidth(t *testing.T) {
	cfg := defaultPeakConfig()
	cfg.HalfWidth = 3
	cfg.RejectionRatio = 1e9

	power := flatSpectrum(64, 1, map[int]float64{20: 1000, 22: 900})

	set := PickPeaks(power, cfg)
	if len(set.Peaks) != 1 || set.Peaks[0].Bin != 20 {
		t.Fatalf("got %+v, want only bin 20", set.Peaks)
	}

	// A plateau is not a strict maximum.
	power = flatSpectrum(64, 1, map[int]float64{20: 1000, 21: 1000})
	if set := PickPeaks(power, cfg); len(set.Peaks) != 0 {
		t.Fatalf("plateau produced peaks: %+v", set.Peaks)
	}
}

func TestPickPeaksSilence(t *testing.T) {
	if set := PickPeaks(make([]float64, 128), defaultPeakConfig()); len(set.Peaks) != 0 {
		t.Fatalf("silence produced peaks: %+v", set.Peaks)
	}

	if set := PickPeaks(nil, defaultPeakConfig()); len(set.Peaks) != 0 {
		t.Fatal("nil spectrum produced peaks")
	}
}

func TestPickPeaksWhiteNoise(t *testing.T) {
	est, err := NewEstimator(512, 8820, window.TypeHann, 1)
	if err != nil {
		t.Fatal(err)
	}

	for seed := int64(1); seed <= 5; seed++ {
		p, err := est.Estimate(nil, testutil.DeterministicNoise(seed, 0.5, 512))
		if err != nil {
			t.Fatal(err)
		}

		cfg := defaultPeakConfig()
		cfg.BinWidth = est.BinWidth()

		if set := PickPeaks(p, cfg); len(set.Peaks) != 0 {
			t.Fatalf("seed %d: noise produced peaks: %+v", seed, set.Peaks)
		}
	}
}

func TestPickPeaksHarmonicTone(t *testing.T) {
	const rate = 8820.0

	est, err := NewEstimator(512, rate, window.TypeHann, 1)
	if err != nil {
		t.Fatal(err)
	}

	block := testutil.Harmonic(220, rate, []float64{1, 0.5, 0.25}, 512)

	p, err := est.Estimate(nil, block)
	if err != nil {
		t.Fatal(err)
	}

	cfg := defaultPeakConfig()
	cfg.BinWidth = est.BinWidth()

	set := PickPeaks(p, cfg)
	if len(set.Peaks) != 3 {
		t.Fatalf("got %d peaks, want 3: %+v", len(set.Peaks), set.Peaks)
	}

	for i, want := range []float64{220, 440, 660} {
		if d := set.Peaks[i].Frequency - want; d > cfg.BinWidth || d < -cfg.BinWidth {
			t.Fatalf("peak %d at %v Hz, want ~%v", i, set.Peaks[i].Frequency, want)
		}
	}
}
