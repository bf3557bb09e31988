// Package beepsink adapts the engine's outbound commands to beep streamers
// that a host hands to its audio output.
package beepsink

import (
	"math"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// gainToVolume converts a linear gain in (0,1] to the exponent used by
// effects.Volume with base 2.
func gainToVolume(g float64) (volume float64, silent bool) {
	if !(g > 0) {
		return 0, true
	}
	return math.Log2(math.Min(g, 1)), false
}

// GainSink applies the engine's gain and play/pause commands to a streamed
// recording. It implements contracts.AudioSink and beep.Streamer; the
// streamer side is what gets passed to the audio output.
type GainSink struct {
	mu   sync.Mutex
	ctrl *beep.Ctrl
	vol  *effects.Volume
	gain float64
}

// NewGainSink wraps src, starting paused and silent.
func NewGainSink(src beep.Streamer) *GainSink {
	vol := &effects.Volume{Streamer: src, Base: 2, Silent: true}
	return &GainSink{
		ctrl: &beep.Ctrl{Streamer: vol, Paused: true},
		vol:  vol,
	}
}

// Play resumes the recording.
func (s *GainSink) Play() error {
	s.mu.Lock()
	s.ctrl.Paused = false
	s.mu.Unlock()
	return nil
}

// Pause holds the recording at its current position.
func (s *GainSink) Pause() error {
	s.mu.Lock()
	s.ctrl.Paused = true
	s.mu.Unlock()
	return nil
}

// SetGain sets the linear gain; 0 silences the output.
func (s *GainSink) SetGain(gain float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gain = gain
	s.vol.Volume, s.vol.Silent = gainToVolume(gain)
	return nil
}

// Gain returns the last gain set.
func (s *GainSink) Gain() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

// Paused reports whether the recording is held.
func (s *GainSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Paused
}

// Stream implements beep.Streamer.
func (s *GainSink) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Stream(samples)
}

// Err implements beep.Streamer.
func (s *GainSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Err()
}
