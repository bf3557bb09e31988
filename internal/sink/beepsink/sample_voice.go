package beepsink

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

const (
	// ReferenceFrequency is A4, the pitch of the reference tone.
	ReferenceFrequency = 440.0
	resampleQuality    = 4
)

var errEmptySample = errors.New("sample voice has no audio")

// DefaultFormat is the format of generated reference tones.
var DefaultFormat = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

// NewReferenceTone renders d of an A4 sine into a buffer.
func NewReferenceTone(format beep.Format, d time.Duration) (*beep.Buffer, error) {
	tone, err := generators.SineTone(format.SampleRate, ReferenceFrequency)
	if err != nil {
		return nil, fmt.Errorf("reference tone: %w", err)
	}
	buf := beep.NewBuffer(format)
	buf.Append(beep.Take(format.SampleRate.N(d), tone))
	return buf, nil
}

// SampleVoice plays a reference sample resampled to each note's rate,
// looping it until the note is stopped. Only one note sounds at a time. It implements contracts.Voice and
// beep.Streamer; between notes it streams silence.
type SampleVoice struct {
	mu     sync.Mutex
	sample *beep.Buffer
	ctrl   *beep.Ctrl
	note   contracts.NoteEvent
}

// NewSampleVoice returns a voice that plays sample, which must be recorded at the reference pitch.
func NewSampleVoice(sample *beep.Buffer) *SampleVoice {
	return &SampleVoice{sample: sample}
}

// Start replaces the sounding note with note at the given rate and gain.
func (v *SampleVoice) Start(note contracts.NoteEvent, rate, gain float64) error {
	if !(rate > 0) {
		return fmt.Errorf("invalid playback rate %v", rate)
	}
	if v.sample == nil || v.sample.Len() == 0 {
		return errEmptySample
	}

	src := beep.Loop(-1, v.sample.Streamer(0, v.sample.Len()))
	volume, silent := gainToVolume(gain)
	out := &effects.Volume{
		Streamer: beep.ResampleRatio(resampleQuality, rate, src),
		Base:     2,
		Volume:   volume,
		Silent:   silent,
	}

	v.mu.Lock()
	v.ctrl = &beep.Ctrl{Streamer: out}
	v.note = note
	v.mu.Unlock()
	return nil
}

// Stop silences the current note.
func (v *SampleVoice) Stop() error {
	v.mu.Lock()
	v.ctrl = nil
	v.mu.Unlock()
	return nil
}

// Close stops the voice.
func (v *SampleVoice) Close() error {
	return v.Stop()
}

// Sounding reports the current note, if any.
func (v *SampleVoice) Sounding() (contracts.NoteEvent, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.note, v.ctrl != nil
}

// Stream implements beep.Streamer. It never drains; silence fills any gap.
func (v *SampleVoice) Stream(samples [][2]float64) (n int, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ctrl != nil {
		n, ok = v.ctrl.Stream(samples)
		if !ok {
			v.ctrl = nil
		}
	}
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (v *SampleVoice) Err() error { return nil }
