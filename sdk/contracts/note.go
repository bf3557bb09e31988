package contracts

import "time"

const (
	// MinNoteDurationMs is the shortest duration a decoded note may have.
	MinNoteDurationMs = 100
	// MaxNoteDurationMs is the longest duration a note may have (24h).
	MaxNoteDurationMs = 24 * 60 * 60 * 1000
)

// NoteEvent is one playable note.
type NoteEvent struct {
	Pitch      uint8 // MIDI note number (0-127).
	Velocity   uint8 // Note velocity (1-127).
	DurationMs int   // Duration in milliseconds, at least MinNoteDurationMs.
}

// Duration returns how long the note holds. Non-positive durations become
// MinNoteDurationMs and long ones are capped at MaxNoteDurationMs.
func (n NoteEvent) Duration() time.Duration {
	ms := n.DurationMs
	switch {
	case ms <= 0:
		ms = MinNoteDurationMs
	case ms > MaxNoteDurationMs:
		ms = MaxNoteDurationMs
	}
	return time.Duration(ms) * time.Millisecond
}

// NoteSequence is an ordered, looping list of notes.
type NoteSequence []NoteEvent

// Clone returns an independent copy of the sequence.
func (s NoteSequence) Clone() NoteSequence {
	if s == nil {
		return nil
	}
	out := make(NoteSequence, len(s))
	copy(out, s)
	return out
}
