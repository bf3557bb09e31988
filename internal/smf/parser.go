// Package smf decodes Standard MIDI Files into flat note sequences and
// writes sequences back out.
package smf

import (
	"context"
	"encoding/binary"
	"errors"
	"math/bits"

	"github.com/leandrodaf/bowsense/internal/logger"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

const (
	headerSize      = 14
	chunkHeaderSize = 8

	// MaxTracks caps the declared track count.
	MaxTracks = 1000
	// MaxEventsPerTrack caps the events read from one track.
	MaxEventsPerTrack = 100000
	// DefaultTempo is 120 BPM in microseconds per quarter note.
	DefaultTempo = 500000
	// DefaultTicksPerQuarter replaces SMPTE or zero divisions.
	DefaultTicksPerQuarter = 480

	maxVLQBytes = 4

	statusNoteOff       = 0x80
	statusNoteOn        = 0x90
	statusPolyPressure  = 0xA0
	statusControlChange = 0xB0
	statusProgram       = 0xC0
	statusChanPressure  = 0xD0
	statusPitchBend     = 0xE0
	statusSysEx         = 0xF0
	statusSysExEscape   = 0xF7
	statusMeta          = 0xFF

	metaEndOfTrack = 0x2F
	metaSetTempo   = 0x51

	ctxCheckInterval = 1024
)

var (
	errTruncated      = errors.New("event runs past track end")
	errBadVLQ         = errors.New("variable-length quantity longer than 4 bytes")
	errNoStatus       = errors.New("data byte without running status")
	errStalled        = errors.New("offset did not advance")
	errEventCap       = errors.New("event cap reached")
	errEndOfTrackMeta = errors.New("end of track")
)

// Header is the decoded MThd chunk.
type Header struct {
	Format          uint16
	Tracks          uint16
	TicksPerQuarter int
}

type openNote struct {
	velocity  uint8
	startTick uint64
}

// trackState lives for one track only.
type trackState struct {
	data    []byte
	off     int
	end     int
	tick    uint64
	tempo   uint32
	running byte
	open    map[uint8]openNote
	notes   contracts.NoteSequence
}

// Parser decodes Standard MIDI Files. The zero value is not usable; use NewParser.
type Parser struct {
	logger contracts.Logger
}

// NewParser returns a parser that reports anomalies to log. A nil log discards them.
func NewParser(log contracts.Logger) *Parser {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Parser{logger: log}
}

// Parse decodes data with a silent parser.
func Parse(data []byte) contracts.NoteSequence {
	return NewParser(nil).Parse(data)
}

// Parse decodes every note in data. Structural problems never fail the
// call: an invalid header yields an empty sequence and a damaged track
// contributes the notes decoded before the damage.
func (p *Parser) Parse(data []byte) contracts.NoteSequence {
	return p.ParseContext(context.Background(), data)
}

// ParseContext is Parse with cooperative cancellation; a cancelled parse returns nil.
func (p *Parser) ParseContext(ctx context.Context, data []byte) contracts.NoteSequence {
	hdr, off, ok := p.readHeader(data)
	if !ok {
		return nil
	}

	var notes contracts.NoteSequence
	for i := 0; i < int(hdr.Tracks); i++ {
		if off+chunkHeaderSize > len(data) || string(data[off:off+4]) != "MTrk" {
			p.logger.Warn("missing track chunk; remaining tracks abandoned", p.logger.Field().Int("track", i))
			break
		}

		length := int(binary.BigEndian.Uint32(data[off+4 : off+8]))
		start := off + chunkHeaderSize
		if length < 0 || length > len(data)-start {
			p.logger.Warn("track length exceeds file; remaining tracks abandoned",
				p.logger.Field().Int("track", i),
				p.logger.Field().Int("length", length))
			break
		}

		ts := &trackState{
			data:  data,
			off:   start,
			end:   start + length,
			tempo: DefaultTempo,
			open:  make(map[uint8]openNote),
		}
		if err := p.readTrack(ctx, ts, hdr.TicksPerQuarter); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("track aborted",
				p.logger.Field().Int("track", i),
				p.logger.Field().Int("offset", ts.off),
				p.logger.Field().Error("error", err))
		}
		if len(ts.open) > 0 {
			p.logger.Debug("dropping notes left open at track end",
				p.logger.Field().Int("track", i),
				p.logger.Field().Int("open", len(ts.open)))
		}

		notes = append(notes, ts.notes...)
		off = start + length
	}
	return notes
}

// ReadHeader validates and decodes the MThd chunk.
func ReadHeader(data []byte) (Header, bool) {
	hdr, _, ok := NewParser(nil).readHeader(data)
	return hdr, ok
}

func (p *Parser) readHeader(data []byte) (Header, int, bool) {
	if len(data) < headerSize || string(data[0:4]) != "MThd" {
		return Header{}, 0, false
	}

	hdr := Header{
		Format: binary.BigEndian.Uint16(data[8:10]),
		Tracks: binary.BigEndian.Uint16(data[10:12]),
	}
	if hdr.Tracks > MaxTracks {
		p.logger.Warn("track count out of range", p.logger.Field().Int("tracks", int(hdr.Tracks)))
		return Header{}, 0, false
	}

	division := int16(binary.BigEndian.Uint16(data[12:14]))
	hdr.TicksPerQuarter = DefaultTicksPerQuarter
	if division > 0 {
		hdr.TicksPerQuarter = int(division)
	}

	// Honor a longer declared header so extension bytes are skipped.
	off := headerSize
	if declared := int(binary.BigEndian.Uint32(data[4:8])); declared >= 6 && declared <= len(data)-chunkHeaderSize {
		off = chunkHeaderSize + declared
	}
	return hdr, off, true
}

func (p *Parser) readTrack(ctx context.Context, ts *trackState, tpq int) error {
	for events := 0; ts.off < ts.end; events++ {
		if events >= MaxEventsPerTrack {
			return errEventCap
		}
		if events%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		before := ts.off
		err := p.readEvent(ts, tpq)
		if errors.Is(err, errEndOfTrackMeta) {
			return nil
		}
		if err != nil {
			return err
		}
		if ts.off <= before {
			return errStalled
		}
	}
	return nil
}

func (p *Parser) readEvent(ts *trackState, tpq int) error {
	delta, err := ts.readVLQ()
	if err != nil {
		return err
	}
	ts.tick += uint64(delta)

	if ts.off >= ts.end {
		return errTruncated
	}
	status := ts.data[ts.off]
	if status&0x80 != 0 {
		ts.off++
		if status < statusSysEx {
			ts.running = status
		}
	} else {
		if ts.running == 0 {
			return errNoStatus
		}
		status = ts.running
	}

	switch status & 0xF0 {
	case statusNoteOff, statusNoteOn:
		b, err := ts.take(2)
		if err != nil {
			return err
		}
		pitch, velocity := b[0]&0x7F, b[1]&0x7F
		if status&0xF0 == statusNoteOn && velocity > 0 {
			ts.open[pitch] = openNote{velocity: velocity, startTick: ts.tick}
			return nil
		}
		ts.closeNote(pitch, tpq)
		return nil

	case statusPolyPressure, statusControlChange, statusPitchBend:
		_, err := ts.take(2)
		return err

	case statusProgram, statusChanPressure:
		_, err := ts.take(1)
		return err
	}

	switch status {
	case statusMeta:
		return ts.readMeta()
	case statusSysEx, statusSysExEscape:
		n, err := ts.readVLQ()
		if err != nil {
			return err
		}
		_, err = ts.take(int(n))
		return err
	default:
		p.logger.Warn("unexpected status byte skipped",
			p.logger.Field().Uint8("status", status),
			p.logger.Field().Int("offset", ts.off))
		_, err := ts.take(1)
		return err
	}
}

func (ts *trackState) readMeta() error {
	b, err := ts.take(1)
	if err != nil {
		return err
	}
	kind := b[0]

	n, err := ts.readVLQ()
	if err != nil {
		return err
	}
	payload, err := ts.take(int(n))
	if err != nil {
		return err
	}

	switch kind {
	case metaSetTempo:
		if len(payload) >= 3 {
			ts.tempo = uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
		}
	case metaEndOfTrack:
		return errEndOfTrackMeta
	}
	return nil
}

func (ts *trackState) closeNote(pitch uint8, tpq int) {
	on, ok := ts.open[pitch]
	if !ok {
		return
	}
	delete(ts.open, pitch)

	ts.notes = append(ts.notes, contracts.NoteEvent{
		Pitch:      pitch,
		Velocity:   on.velocity,
		DurationMs: TicksToMs(ts.tick-on.startTick, tpq, ts.tempo),
	})
}

// readVLQ reads a variable-length quantity of at most four bytes.
func (ts *trackState) readVLQ() (uint32, error) {
	var v uint32
	for i := 0; i < maxVLQBytes; i++ {
		if ts.off >= ts.end {
			return 0, errTruncated
		}
		b := ts.data[ts.off]
		ts.off++
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, errBadVLQ
}

func (ts *trackState) take(n int) ([]byte, error) {
	if n < 0 || n > ts.end-ts.off {
		return nil, errTruncated
	}
	b := ts.data[ts.off : ts.off+n]
	ts.off += n
	return b, nil
}

// TicksToMs converts a tick span to whole milliseconds at the given tempo,
// clamped to [contracts.MinNoteDurationMs, contracts.MaxNoteDurationMs].
func TicksToMs(ticks uint64, ticksPerQuarter int, tempo uint32) int {
	if ticksPerQuarter <= 0 {
		ticksPerQuarter = DefaultTicksPerQuarter
	}
	div := uint64(ticksPerQuarter) * 1000
	hi, lo := bits.Mul64(ticks, uint64(tempo))
	if hi >= div {
		return contracts.MaxNoteDurationMs
	}
	ms, _ := bits.Div64(hi, lo, div)
	switch {
	case ms < contracts.MinNoteDurationMs:
		return contracts.MinNoteDurationMs
	case ms > contracts.MaxNoteDurationMs:
		return contracts.MaxNoteDurationMs
	}
	return int(ms)
}
