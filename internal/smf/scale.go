package smf

import "github.com/leandrodaf/bowsense/sdk/contracts"

const (
	fallbackVelocity   = 100
	fallbackDurationMs = 400
)

var cMajor = [...]uint8{60, 62, 64, 65, 67, 69, 71, 72}

// FallbackScale returns the one-octave C major scale played when a file
// yields no notes.
func FallbackScale() contracts.NoteSequence {
	seq := make(contracts.NoteSequence, len(cMajor))
	for i, p := range cMajor {
		seq[i] = contracts.NoteEvent{Pitch: p, Velocity: fallbackVelocity, DurationMs: fallbackDurationMs}
	}
	return seq
}
