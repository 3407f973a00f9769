package tuner

import (
	"strconv"
	"time"
)

// Result is the tuning outcome of one calculation cycle.
type Result struct {
	// Sequence increases by one for every completed cycle of an engine.
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	SignalPresent bool `json:"signal_present"`

	// Frequency is the refined fundamental in Hz; zero without signal.
	Frequency          float64 `json:"frequency"`
	Note               string  `json:"note,omitempty"`
	NoteIndex          int     `json:"note_index"`
	Octave             int     `json:"octave"`
	ReferenceFrequency float64 `json:"reference_frequency"`
	// DeviationCents is negative when flat and positive when sharp.
	DeviationCents float64 `json:"deviation_cents"`

	// LevelDB is the RMS level of the analysed slice in dBFS.
	LevelDB float64 `json:"level_db"`
}

// Label returns the note with its octave (e.g. "A4"), or "-" without signal.
func (r Result) Label() string {
	if !r.SignalPresent || r.Note == "" {
		return "-"
	}

	return r.Note + strconv.Itoa(r.Octave)
}

// SpectrumPeak describes one peak that survived selection.
type SpectrumPeak struct {
	Bin       int     `json:"bin"`
	Frequency float64 `json:"frequency"`
	Refined   float64 `json:"refined"`
	PowerDB   float64 `json:"power_db"`
}

// Spectrum is the coarse power spectrum of a cycle, for display only.
type Spectrum struct {
	Sequence     uint64         `json:"sequence"`
	Timestamp    time.Time      `json:"timestamp"`
	BinWidth     float64        `json:"bin_width"`
	PowerDB      []float64      `json:"power_db"`
	NoiseFloorDB float64        `json:"noise_floor_db"`
	Peaks        []SpectrumPeak `json:"peaks"`
}
