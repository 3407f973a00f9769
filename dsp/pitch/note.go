package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
)

// Mapping locates a frequency on a scale.
type Mapping struct {
	// NoteIndex is the scale degree (pitch class) of the nearest note.
	NoteIndex int
	// Octave is the octave number of the nearest note.
	Octave int
	// Name is the note name.
	Name string
	// Reference is the exact frequency of the nearest note in Hz.
	Reference float64
	// DeviationCents is the signed interval from Reference to the mapped
	// frequency; positive means sharp.
	DeviationCents float64
}

// Label returns the note name with its octave, e.g. "A4".
func (m Mapping) Label() string {
	return fmt.Sprintf("%s%d", m.Name, m.Octave)
}

// Map finds the nearest scale note to freq.
//
// The octave is split off in the log domain; the remainder is compared
// against every degree and against the next octave's first degree, so
// frequencies just below an octave boundary map sharp-to-flat correctly.
// Equidistant notes resolve to the lower one.
func (s *Scale) Map(freq float64) (Mapping, error) {
	if !(freq > 0) || !core.IsFinite(freq) {
		return Mapping{}, fmt.Errorf("%w: %v", ErrInvalidFrequency, freq)
	}

	c := core.Cents(freq, s.base)
	octave := math.Floor(c / core.CentsPerOctave)
	rem := c - octave*core.CentsPerOctave

	if rem >= core.CentsPerOctave {
		rem -= core.CentsPerOctave
		octave++
	} else if rem < 0 {
		rem = 0
	}

	index := 0
	dev := rem
	wrap := false

	for i, n := range s.notes {
		if d := rem - n.Cents; math.Abs(d) < math.Abs(dev) {
			index, dev = i, d
		}
	}

	if d := rem - core.CentsPerOctave; math.Abs(d) < math.Abs(dev) {
		index, dev, wrap = 0, d, true
	}

	oct := int(octave) + s.baseOctave
	if wrap {
		oct++
	}

	return Mapping{
		NoteIndex:      index,
		Octave:         oct,
		Name:           s.notes[index].Name,
		Reference:      s.Frequency(index, oct),
		DeviationCents: dev,
	}, nil
}
