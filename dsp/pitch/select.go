package pitch

import "math"

// TieCents is the deviation difference below which two candidates are
// considered equally well tuned.
const TieCents = 1.0

// Candidate is a refined spectral peak.
type Candidate struct {
	Frequency float64
	Power     float64
}

// Selection is the chosen fundamental and its place on the scale.
type Selection struct {
	Candidate
	Mapping
}

// SelectFundamental picks the candidate that lies closest to a scale note.
//
// Candidates below minFrequency or at/above nyquist are ignored. Among
// those within TieCents of the smallest absolute deviation, the strongest
// wins. It reports false when no candidate qualifies.
func SelectFundamental(cands []Candidate, s *Scale, minFrequency, nyquist float64) (Selection, bool) {
	mapped := make([]Selection, 0, len(cands))
	bestAbs := math.Inf(1)

	for _, c := range cands {
		if c.Frequency < minFrequency || c.Frequency >= nyquist {
			continue
		}

		m, err := s.Map(c.Frequency)
		if err != nil {
			continue
		}

		mapped = append(mapped, Selection{Candidate: c, Mapping: m})
		bestAbs = math.Min(bestAbs, math.Abs(m.DeviationCents))
	}

	var (
		out   Selection
		found bool
	)

	for _, sel := range mapped {
		if math.Abs(sel.DeviationCents) > bestAbs+TieCents {
			continue
		}

		if !found || sel.Power > out.Power {
			out, found = sel, true
		}
	}

	return out, found
}
