package music

import (
	"fmt"
	"strconv"
	"strings"
)

const semitonesPerOctave = 12

// Note to semitone offset from C
var noteOffsets = map[string]int{
	"C":  0,
	"C#": 1, "Db": 1,
	"D":  2,
	"D#": 3, "Eb": 3,
	"E":  4,
	"F":  5,
	"F#": 6, "Gb": 6,
	"G":  7,
	"G#": 8, "Ab": 8,
	"A":  9,
	"A#": 10, "Bb": 10,
	"B": 11,
}

var sharpNames = [semitonesPerOctave]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParseNoteName converts scientific pitch notation ("C4", "F#3", "Bb-1") to
// a MIDI pitch. C4 is 60.
func ParseNoteName(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: empty note name", ErrInvalidNote)
	}

	// Extract root (first 1-2 chars: C, C#, Db, etc.)
	root := name[:1]
	if len(name) > 1 && (name[1] == '#' || name[1] == 'b') {
		root = name[:2]
	}
	offset, ok := noteOffsets[strings.ToUpper(root[:1])+root[1:]]
	if !ok {
		return 0, fmt.Errorf("%w: invalid root in %q", ErrInvalidNote, name)
	}

	octave, err := strconv.Atoi(name[len(root):])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid octave in %q", ErrInvalidNote, name)
	}

	pitch := (octave+1)*semitonesPerOctave + offset
	if err := ValidatePitch(pitch); err != nil {
		return 0, fmt.Errorf("%q: %w", name, err)
	}
	return pitch, nil
}

// NoteName renders a MIDI pitch with sharps, e.g. 61 is "C#4".
func NoteName(pitch int) string {
	if ValidatePitch(pitch) != nil {
		return strconv.Itoa(pitch)
	}
	return sharpNames[pitch%semitonesPerOctave] + strconv.Itoa(pitch/semitonesPerOctave-1)
}

// ParseNoteNames converts a sequence of note names.
func ParseNoteNames(names []string) ([]int, error) {
	pitches := make([]int, len(names))
	for i, name := range names {
		p, err := ParseNoteName(name)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		pitches[i] = p
	}
	return pitches, nil
}
