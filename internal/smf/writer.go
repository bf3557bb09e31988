package smf

import (
	"bytes"
	"fmt"

	"github.com/leandrodaf/bowsense/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	gosmf "gitlab.com/gomidi/midi/v2/smf"
)

const exportBPM = 120

// Encode writes seq as a single-track file at 120 BPM, one note after
// another. Parsing the result yields seq again, up to millisecond rounding.
func Encode(seq contracts.NoteSequence, ticksPerQuarter int) ([]byte, error) {
	if ticksPerQuarter <= 0 || ticksPerQuarter > 0x7FFF {
		ticksPerQuarter = DefaultTicksPerQuarter
	}

	s := gosmf.New()
	s.TimeFormat = gosmf.MetricTicks(uint16(ticksPerQuarter))

	var tr gosmf.Track
	tr.Add(0, gosmf.MetaTempo(exportBPM))
	for _, n := range seq {
		velocity := n.Velocity & 0x7F
		if velocity == 0 {
			velocity = 1
		}
		tr.Add(0, midi.NoteOn(0, n.Pitch&0x7F, velocity))
		tr.Add(msToTicks(n.DurationMs, ticksPerQuarter), midi.NoteOff(0, n.Pitch&0x7F))
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write smf: %w", err)
	}
	return buf.Bytes(), nil
}

// maxDeltaTicks is the largest delta a 4-byte variable-length quantity holds.
const maxDeltaTicks = 0x0FFFFFFF

// msToTicks is the inverse of TicksToMs at DefaultTempo.
func msToTicks(ms, ticksPerQuarter int) uint32 {
	switch {
	case ms < 0:
		ms = 0
	case ms > contracts.MaxNoteDurationMs:
		ms = contracts.MaxNoteDurationMs
	}
	ticks := uint64(ms) * 1000 * uint64(ticksPerQuarter) / DefaultTempo
	if ticks > maxDeltaTicks {
		return maxDeltaTicks
	}
	return uint32(ticks)
}
