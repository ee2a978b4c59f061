// Package music converts between note events and the pitch / duration
// symbol streams the Markov chains learn from.
package music

import (
	"errors"
	"fmt"
	"sort"
)

const (
	EventNoteOn  = "note_on"
	EventNoteOff = "note_off"

	// DefaultVelocity is applied to generated notes when the caller gives none
	DefaultVelocity = 110

	MinPitch    = 0
	MaxPitch    = 127
	MaxVelocity = 127
)

// ErrInvalidNote is returned for out of range pitches, velocities or durations.
var ErrInvalidNote = errors.New("invalid note")

// NoteEvent is one half of a played note. note_on events carry no duration;
// note_off events carry the duration and the start time of their note.
type NoteEvent struct {
	Event     string `json:"event"`
	Note      int    `json:"note"`
	StartTime int    `json:"start_time"`
	Duration  *int   `json:"duration"`
	Velocity  int    `json:"velocity"`
}

// Message is a timed channel message as read from a MIDI track, with an
// absolute tick position.
type Message struct {
	Type     string `json:"type"`
	Note     int    `json:"note"`
	Velocity int    `json:"velocity"`
	Tick     int    `json:"tick"`
}

// PairMessages turns chronological note-on / note-off messages into note
// events. A note-on with velocity 0 counts as a note-off. Offs without a
// matching open note are dropped.
func PairMessages(msgs []Message) ([]NoteEvent, error) {
	type openNote struct {
		start    int
		velocity int
	}
	open := make(map[int]openNote)
	events := make([]NoteEvent, 0, len(msgs))

	for i, msg := range msgs {
		if err := ValidatePitch(msg.Note); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		switch {
		case msg.Type == EventNoteOn && msg.Velocity > 0:
			open[msg.Note] = openNote{start: msg.Tick, velocity: msg.Velocity}
			events = append(events, NoteEvent{
				Event:     EventNoteOn,
				Note:      msg.Note,
				StartTime: msg.Tick,
				Velocity:  msg.Velocity,
			})

		case msg.Type == EventNoteOff || msg.Type == EventNoteOn:
			n, ok := open[msg.Note]
			if !ok {
				continue
			}
			duration := msg.Tick - n.start
			if duration < 0 {
				return nil, fmt.Errorf("message %d: %w: note %d ends before it starts", i, ErrInvalidNote, msg.Note)
			}
			delete(open, msg.Note)
			events = append(events, NoteEvent{
				Event:     EventNoteOff,
				Note:      msg.Note,
				StartTime: n.start,
				Duration:  &duration,
				Velocity:  msg.Velocity,
			})
		}
	}
	return events, nil
}

// HighestVoice keeps, for every (start time, event kind) group, only the
// highest note. The result is sorted by start time with note_on events first,
// which reduces chords to a single melodic line.
func HighestVoice(events []NoteEvent) []NoteEvent {
	type groupKey struct {
		start int
		off   bool
	}
	order := make([]groupKey, 0)
	highest := make(map[groupKey]NoteEvent)

	for _, ev := range events {
		key := groupKey{start: ev.StartTime, off: ev.Event != EventNoteOn}
		cur, ok := highest[key]
		if !ok {
			order = append(order, key)
			highest[key] = ev
			continue
		}
		if ev.Note > cur.Note {
			highest[key] = ev
		}
	}

	out := make([]NoteEvent, len(order))
	for i, key := range order {
		out[i] = highest[key]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].Event == EventNoteOn && out[j].Event != EventNoteOn
	})
	return out
}

// ExtractSequences returns the pitch and duration streams of the highest
// voice, read from its note_off events. A missing duration reads as 0.
func ExtractSequences(events []NoteEvent) (pitches, durations []int) {
	for _, ev := range HighestVoice(events) {
		if ev.Event == EventNoteOn {
			continue
		}
		pitches = append(pitches, ev.Note)
		d := 0
		if ev.Duration != nil {
			d = *ev.Duration
		}
		durations = append(durations, d)
	}
	return pitches, durations
}

// BuildEvents pairs generated pitches with generated durations and lays them
// end to end on a running tick cursor. The longer stream is truncated.
func BuildEvents(pitches, durations []int, velocity int) []NoteEvent {
	n := min(len(pitches), len(durations))
	events := make([]NoteEvent, 0, 2*n)

	cursor := 0
	for i := 0; i < n; i++ {
		d := durations[i]
		events = append(events,
			NoteEvent{Event: EventNoteOn, Note: pitches[i], StartTime: cursor, Velocity: velocity},
			NoteEvent{Event: EventNoteOff, Note: pitches[i], StartTime: cursor, Duration: &d, Velocity: 0},
		)
		cursor += d
	}
	return events
}

// TotalTicks is the length of a BuildEvents result.
func TotalTicks(events []NoteEvent) int {
	end := 0
	for _, ev := range events {
		if ev.Duration != nil && ev.StartTime+*ev.Duration > end {
			end = ev.StartTime + *ev.Duration
		}
	}
	return end
}

// ValidatePitch checks the MIDI note range.
func ValidatePitch(p int) error {
	if p < MinPitch || p > MaxPitch {
		return fmt.Errorf("%w: pitch %d outside %d-%d", ErrInvalidNote, p, MinPitch, MaxPitch)
	}
	return nil
}

// ValidateVelocity checks the MIDI velocity range.
func ValidateVelocity(v int) error {
	if v < 0 || v > MaxVelocity {
		return fmt.Errorf("%w: velocity %d outside 0-%d", ErrInvalidNote, v, MaxVelocity)
	}
	return nil
}

// ValidatePitches checks every pitch of a sequence.
func ValidatePitches(seq []int) error {
	for _, p := range seq {
		if err := ValidatePitch(p); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDurations rejects negative tick durations.
func ValidateDurations(seq []int) error {
	for _, d := range seq {
		if d < 0 {
			return fmt.Errorf("%w: negative duration %d", ErrInvalidNote, d)
		}
	}
	return nil
}
