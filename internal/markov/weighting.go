package markov

import (
	"fmt"
	"strings"
)

// Weighting selects the proximity heuristic applied while fitting.
type Weighting int

const (
	// PitchWeighting rewards transitions that stay within an octave
	PitchWeighting Weighting = iota
	// DurationWeighting rewards transitions between similar durations
	DurationWeighting
)

const (
	octave             = 12
	durationSimilarity = 10

	closeWeight = 2
	farWeight   = 1
)

func (w Weighting) String() string {
	switch w {
	case PitchWeighting:
		return "pitch"
	case DurationWeighting:
		return "duration"
	default:
		return fmt.Sprintf("weighting(%d)", int(w))
	}
}

// ParseWeighting accepts "pitch" or "duration" (case insensitive).
func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pitch", "":
		return PitchWeighting, nil
	case "duration":
		return DurationWeighting, nil
	default:
		return PitchWeighting, fmt.Errorf("unknown weighting %q (allowed: pitch, duration)", s)
	}
}

// weight returns the count increment for observing `to` after `from`.
//
// Pitch: (12-|from-to|)/12 is only inspected for its sign, so anything within
// an octave counts 2 and anything wider counts 1.
// Duration: a gap above 10 ticks counts 1, otherwise 2.
func (w Weighting) weight(from, to int) float64 {
	diff := abs(from - to)
	if w == DurationWeighting {
		if diff > durationSimilarity {
			return farWeight
		}
		return closeWeight
	}

	proximity := float64(octave-diff) / octave
	if proximity >= 0 {
		return closeWeight
	}
	return farWeight
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
