package pitch

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-tuner/dsp/core"
)

var (
	// ErrInvalidScale indicates a malformed scale definition.
	ErrInvalidScale = errors.New("pitch: invalid scale")
	// ErrInvalidFrequency indicates a frequency that cannot be mapped.
	ErrInvalidFrequency = errors.New("pitch: frequency must be finite and > 0")
)

// ConcertA is the standard reference pitch for A4 in Hz.
const ConcertA = 440.0

// Note is one scale degree.
type Note struct {
	Name  string
	Cents float64
}

// Scale is one octave of notes, repeated in every octave.
type Scale struct {
	name       string
	base       float64
	baseOctave int
	notes      []Note
}

var chromaticNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NewScale validates and builds a scale. The first note must sit at 0 cents,
// offsets must be strictly increasing and below 1200. baseOctave is the
// octave number reported for notes in the octave starting at base.
func NewScale(name string, base float64, baseOctave int, notes []Note) (*Scale, error) {
	if !(base > 0) || !core.IsFinite(base) {
		return nil, fmt.Errorf("%w: base frequency %v", ErrInvalidScale, base)
	}

	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: no notes", ErrInvalidScale)
	}

	if notes[0].Cents != 0 {
		return nil, fmt.Errorf("%w: first note %q at %v cents, want 0", ErrInvalidScale, notes[0].Name, notes[0].Cents)
	}

	for i, n := range notes {
		if !core.IsFinite(n.Cents) || n.Cents >= core.CentsPerOctave {
			return nil, fmt.Errorf("%w: note %q offset %v outside [0, 1200)", ErrInvalidScale, n.Name, n.Cents)
		}

		if i > 0 && n.Cents <= notes[i-1].Cents {
			return nil, fmt.Errorf("%w: offsets not increasing at %q", ErrInvalidScale, n.Name)
		}
	}

	return &Scale{
		name:       name,
		base:       base,
		baseOctave: baseOctave,
		notes:      append([]Note(nil), notes...),
	}, nil
}

// EqualTempered returns the 12-tone equal tempered scale C..B anchored so
// that A4 sounds at root Hz.
func EqualTempered(root float64) (*Scale, error) {
	notes := make([]Note, len(chromaticNames))
	for i, n := range chromaticNames {
		notes[i] = Note{Name: n, Cents: float64(i) * 100}
	}

	// C4 lies nine semitones below A4.
	return NewScale("12-TET", core.ShiftCents(root, -900), 4, notes)
}

// RootFrequency returns the A4 reference detuned by errorCents.
func RootFrequency(errorCents float64) float64 {
	return core.ShiftCents(ConcertA, errorCents)
}

// Name returns the scale name.
func (s *Scale) Name() string { return s.name }

// Base returns the frequency of the first note in the base octave.
func (s *Scale) Base() float64 { return s.base }

// Len returns the number of notes per octave.
func (s *Scale) Len() int { return len(s.notes) }

// Note returns scale degree i.
func (s *Scale) Note(i int) Note { return s.notes[i] }

// Notes returns a copy of the scale degrees.
func (s *Scale) Notes() []Note { return append([]Note(nil), s.notes...) }

// Frequency returns the reference frequency of degree index in octave.
func (s *Scale) Frequency(index, octave int) float64 {
	c := float64(octave-s.baseOctave)*core.CentsPerOctave + s.notes[index].Cents
	return s.base * math.Exp2(c/core.CentsPerOctave)
}
