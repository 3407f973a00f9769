package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-tuner/tuner"
)

func TestMeter(t *testing.T) {
	assert.Equal(t, "[----------*----------]", meter(0))
	assert.Equal(t, "[*---------|----------]", meter(-50))
	assert.Equal(t, "[----------|---------*]", meter(80))
	assert.Equal(t, "[----------|----------]", meter(math.NaN()))
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer

	p := newPrinter(&buf)
	p.Publish(tuner.Result{
		SignalPresent:  true,
		Frequency:      440.5,
		Note:           "A",
		Octave:         4,
		DeviationCents: 1.97,
		LevelDB:        -9.03,
	}, tuner.Spectrum{})
	p.Publish(tuner.Result{LevelDB: -80}, tuner.Spectrum{})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	assert.True(t, strings.HasPrefix(lines[0], "A4 "))
	assert.Contains(t, lines[0], "440.500 Hz")
	assert.Contains(t, lines[0], "+1.97 ct")
	assert.Contains(t, lines[0], "-9.0 dB")

	assert.True(t, strings.HasPrefix(lines[1], "- "))
	assert.Contains(t, lines[1], "-80.0 dB")
	assert.NoError(t, p.err)
}

func TestAssignmentsFlag(t *testing.T) {
	var a assignments

	require.NoError(t, a.Set("FFT_SIZE=1024"))
	require.NoError(t, a.Set("GAIN = 6"))
	assert.Error(t, a.Set("FFT_SIZE"))
	assert.Equal(t, "FFT_SIZE=1024,GAIN = 6", a.String())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuner.conf")
	require.NoError(t, os.WriteFile(path, []byte("FFT_SIZE = 1024\nMIN_FREQUENCY = 30\n"), 0o600))

	o := options{configPath: path, sets: assignments{"MIN_FREQUENCY=40", "WINDOW=blackman"}}

	cfg, err := loadConfig(o, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.FFTSize)
	assert.Equal(t, 40.0, cfg.MinFrequency)
	assert.Equal(t, "blackman", cfg.Window)

	_, err = loadConfig(options{sets: assignments{"NOPE=1"}}, zerolog.Nop())
	assert.Error(t, err)
}
