// Package sequencer loops a note sequence through a monophonic voice,
// gated either by motion or by an explicit preview flag.
package sequencer

import (
	"math"
	"sync"

	"github.com/leandrodaf/bowsense/internal/logger"
	"github.com/leandrodaf/bowsense/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

const (
	// ReferencePitch is the MIDI note a sample voice plays at rate 1.
	ReferencePitch = 69
	semitoneRatio  = 1.059463
	minRate        = 0.5
	maxRate        = 2.0
)

// PlaybackRate converts a MIDI pitch to a playback-rate multiplier relative
// to ReferencePitch, clamped to [0.5, 2].
func PlaybackRate(pitch uint8) float64 {
	rate := math.Pow(semitoneRatio, float64(int(pitch)-ReferencePitch))
	return math.Max(minRate, math.Min(maxRate, rate))
}

// Sequencer plays one note at a time and schedules the next one after the
// current note's duration. It is safe for concurrent use; timer callbacks
// and caller methods are serialized by an internal lock.
type Sequencer struct {
	mu      sync.Mutex
	voice   contracts.Voice
	sched   contracts.Scheduler
	logger  contracts.Logger
	maxGain float64

	notes   contracts.NoteSequence
	index   int
	moving  bool
	preview bool
	speed   float64

	timer contracts.Timer
	gen   uint64 // bumped on every hard stop; stale timer callbacks compare against it
	sound bool
}

// New returns an idle sequencer. A nil scheduler uses time.AfterFunc; a nil logger discards output.
func New(voice contracts.Voice, sched contracts.Scheduler, log contracts.Logger, maxGain float64) *Sequencer {
	if sched == nil {
		sched = RealScheduler{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Sequencer{voice: voice, sched: sched, logger: log, maxGain: maxGain}
}

// SetNotes replaces the sequence, silences the voice and rewinds to the first note.
// Playback resumes from the start if it was running.
func (s *Sequencer) SetNotes(seq contracts.NoteSequence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hardStop()
	s.notes = seq.Clone()
	s.index = 0
	if s.running() {
		s.trigger()
	}
}

// Notes returns a copy of the current sequence.
func (s *Sequencer) Notes() contracts.NoteSequence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes.Clone()
}

// SetSpeed records the normalized motion speed used for per-note gain.
func (s *Sequencer) SetSpeed(normalized float64) {
	s.mu.Lock()
	s.speed = normalized
	s.mu.Unlock()
}

// SetMaxGain changes the gain ceiling for subsequent notes.
func (s *Sequencer) SetMaxGain(g float64) {
	s.mu.Lock()
	s.maxGain = g
	s.mu.Unlock()
}

// SetMoving opens or closes the motion gate. Closing it silences the
// current note immediately.
func (s *Sequencer) SetMoving(moving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.moving == moving {
		return
	}
	s.moving = moving
	s.transition()
}

// SetPreview starts or stops preview playback, which ignores motion and plays at full gain.
func (s *Sequencer) SetPreview(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preview == active {
		return
	}
	s.preview = active
	s.hardStop()
	if s.running() {
		s.trigger()
	}
}

// Stop closes both gates and silences the voice before returning.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.moving = false
	s.preview = false
	s.hardStop()
}

// Playing reports whether a note loop is active.
func (s *Sequencer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sound
}

// Index returns the position of the next note to be played.
func (s *Sequencer) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Previewing reports whether preview playback is on.
func (s *Sequencer) Previewing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

func (s *Sequencer) running() bool {
	return (s.moving || s.preview) && len(s.notes) > 0
}

// transition reacts to the motion gate; preview playback is left alone.
func (s *Sequencer) transition() {
	if s.preview {
		return
	}
	if !s.running() {
		s.hardStop()
		return
	}
	if !s.sound {
		s.trigger()
	}
}

// hardStop cancels the pending advance and silences the voice.
func (s *Sequencer) hardStop() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.sound {
		if err := s.voice.Stop(); err != nil {
			s.logger.Error("failed to stop voice", s.logger.Field().Error("error", err))
		}
	}
	s.sound = false
}

// trigger sounds the note at index and schedules the advance.
func (s *Sequencer) trigger() {
	if s.index >= len(s.notes) {
		s.index = 0
	}
	note := s.notes[s.index]
	s.index = (s.index + 1) % len(s.notes)

	level := s.maxGain
	if !s.preview {
		level = s.speed * s.maxGain
	}
	gain := float64(note.Velocity) / 127 * level
	rate := PlaybackRate(note.Pitch)

	if s.sound {
		if err := s.voice.Stop(); err != nil {
			s.logger.Error("failed to stop voice", s.logger.Field().Error("error", err))
		}
	}
	if err := s.voice.Start(note, rate, gain); err != nil {
		s.logger.Error("failed to start note",
			s.logger.Field().String("note", midi.Note(note.Pitch).String()),
			s.logger.Field().Error("error", err))
	}
	s.sound = true
	s.logger.Debug("note triggered",
		s.logger.Field().String("note", midi.Note(note.Pitch).String()),
		s.logger.Field().Float64("gain", gain),
		s.logger.Field().Float64("rate", rate),
		s.logger.Field().Int("durationMs", note.DurationMs))

	gen := s.gen
	s.timer = s.sched.AfterFunc(note.Duration(), func() { s.advance(gen) })
}

func (s *Sequencer) advance(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || !s.running() {
		return
	}
	s.trigger()
}
