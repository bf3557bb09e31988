package bowsense

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/leandrodaf/bowsense/internal/gain"
	"github.com/leandrodaf/bowsense/internal/motion"
	"github.com/leandrodaf/bowsense/internal/sequencer"
	"github.com/leandrodaf/bowsense/internal/smf"
	"github.com/leandrodaf/bowsense/sdk/contracts"
	"go.uber.org/multierr"
)

// Errors reported by LoadMIDI. The fallback scale is installed in both cases.
var (
	ErrMIDITimeout = errors.New("MIDI parse timed out")
	ErrMIDIEmpty   = errors.New("MIDI file contains no notes")
	ErrClosed      = errors.New("engine closed")
)

// exportTicksPerQuarter is the resolution of files written by ExportMIDI.
const exportTicksPerQuarter = 480

// State is a snapshot of an engine session.
type State struct {
	Mode      contracts.Mode
	Preview   bool                   // Preview playback is on.
	Playing   bool                   // The sink is playing (recording mode) or a note loop is active.
	Sample    contracts.MotionSample // Last accepted sample.
	Speed     float64                // Normalized motion speed.
	Direction contracts.BowDirection
	Volume    float64 // Last emitted volume.
	NoteIndex int     // Next note the sequencer will play.
	Notes     int     // Length of the loaded sequence.
}

// Engine is one motion-to-audio session. It owns the smoothing window, the
// fader and the note sequencer; all methods are safe for concurrent use
// and samples are processed one at a time in call order.
type Engine struct {
	mu          sync.Mutex
	logger      contracts.Logger
	cfg         contracts.Config
	sink        contracts.AudioSink
	voice       contracts.Voice
	now         func() time.Time
	onDirection func(contracts.BowDirection)

	smoother *motion.Smoother
	fader    *gain.Fader
	seq      *sequencer.Sequencer
	parser   *smf.Parser

	mode    contracts.Mode
	sample  contracts.MotionSample
	last    contracts.GainCommand
	playing bool
	closed  bool
}

func newEngine(options *contracts.EngineOptions) *Engine {
	cfg := *options.Config
	e := &Engine{
		logger:      options.Logger,
		cfg:         cfg,
		sink:        options.Sink,
		voice:       options.Voice,
		now:         options.Clock,
		onDirection: options.DirectionHandler,
		smoother:    motion.NewSmoother(cfg.SmoothingWindowSize),
		fader:       gain.NewFader(cfg.FadeInDuration, cfg.FadeOutDuration, cfg.VolumeHistorySize),
		seq:         sequencer.New(options.Voice, options.Scheduler, options.Logger, cfg.MaxGain),
		parser:      smf.NewParser(options.Logger),
	}
	e.seq.SetNotes(smf.FallbackScale())

	e.logger.Info("engine created",
		e.logger.Field().Float64("threshold", cfg.MotionThreshold),
		e.logger.Field().Float64("maxGain", cfg.MaxGain),
		e.logger.Field().Int("window", cfg.SmoothingWindowSize),
		e.logger.Field().Duration("fadeIn", cfg.FadeInDuration),
		e.logger.Field().Duration("fadeOut", cfg.FadeOutDuration))
	return e
}

// ProcessLine decodes one "ax,ay,az,gx,gy,gz" record and drives the audio
// outputs. ok is false when the line was discarded; the previous sample
// and command stay in effect.
func (e *Engine) ProcessLine(line string) (cmd contracts.GainCommand, ok bool) {
	sample, ok := motion.Decode(line)
	if !ok {
		e.logger.Debug("sample line discarded", e.logger.Field().String("line", line))
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.last, false
	}
	return e.ProcessSample(sample)
}

// ProcessRaw is ProcessLine for a transport buffer.
func (e *Engine) ProcessRaw(raw contracts.RawSample) (contracts.GainCommand, bool) {
	return e.ProcessLine(string(raw))
}

// ProcessSample runs an already decoded sample through the pipeline.
func (e *Engine) ProcessSample(sample contracts.MotionSample) (contracts.GainCommand, bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return contracts.GainCommand{}, false
	}

	e.sample = sample
	speed, dir, changed := e.smoother.Observe(sample)
	normalized := gain.Normalize(speed, e.cfg.MaxMotionSpeed)
	target, shouldPlay := gain.TargetGain(normalized, e.cfg.MotionThreshold, e.cfg.MaxGain)

	cmd := contracts.GainCommand{Target: target, Speed: normalized, Direction: dir}
	switch e.mode {
	case contracts.ModeMIDI:
		e.seq.SetSpeed(normalized)
		switch {
		case e.seq.Previewing():
			cmd.Play, cmd.Volume = true, e.cfg.MaxGain
		default:
			e.seq.SetMoving(shouldPlay)
			cmd.Play = shouldPlay
			if shouldPlay {
				cmd.Volume = normalized * e.cfg.MaxGain
			}
		}
	default:
		e.drive(&cmd, shouldPlay)
	}
	e.last = cmd
	handler := e.onDirection
	e.mu.Unlock()

	if changed {
		e.logger.Debug("bow direction changed", e.logger.Field().String("direction", dir.String()))
		if handler != nil {
			handler(dir)
		}
	}
	return cmd, true
}

// drive advances the fader and applies the start-before-rise and
// stop-after-settle transport policy.
func (e *Engine) drive(cmd *contracts.GainCommand, shouldPlay bool) {
	if !shouldPlay {
		cmd.Target = 0
	}

	if cmd.Target > 0 && !e.playing {
		if err := e.sink.Play(); err != nil {
			e.logger.Error("sink failed to play", e.logger.Field().Error("error", err))
		}
		e.playing = true
	}

	cmd.Volume = e.fader.Advance(e.fader.Last(), cmd.Target, e.now())
	if err := e.sink.SetGain(cmd.Volume); err != nil {
		e.logger.Error("sink rejected gain", e.logger.Field().Error("error", err))
	}

	if !shouldPlay && e.playing && cmd.Volume <= gain.SettledEpsilon {
		if err := e.sink.Pause(); err != nil {
			e.logger.Error("sink failed to pause", e.logger.Field().Error("error", err))
		}
		e.playing = false
	}
	cmd.Play = e.playing
}

// SetMode switches between recording and MIDI playback. Everything
// audible is stopped before it returns.
func (e *Engine) SetMode(mode contracts.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == mode {
		return
	}
	e.silence()
	e.mode = mode
	e.logger.Info("mode switched", e.logger.Field().String("mode", mode.String()))
}

// Mode returns the current playback mode.
func (e *Engine) Mode() contracts.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetPreview toggles motion-independent audition of the note sequence.
// Any fade or note in flight is cancelled first.
func (e *Engine) SetPreview(active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.silenceSink()
	e.seq.SetPreview(active)
	e.logger.Info("preview toggled", e.logger.Field().Bool("active", active))
}

// Stop silences every output and leaves the engine idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.silence()
}

func (e *Engine) silence() {
	e.seq.Stop()
	e.silenceSink()
}

func (e *Engine) silenceSink() {
	e.fader.Reset()
	if !e.playing {
		return
	}
	if err := multierr.Append(e.sink.SetGain(0), e.sink.Pause()); err != nil {
		e.logger.Error("sink failed to stop", e.logger.Field().Error("error", err))
	}
	e.playing = false
}

// SetSensitivity changes the motion threshold at which gain saturates.
func (e *Engine) SetSensitivity(threshold float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.cfg
	cfg.MotionThreshold = threshold
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

// SetMaxGain changes the gain ceiling for both modes.
func (e *Engine) SetMaxGain(g float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.cfg
	cfg.MaxGain = g
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	e.seq.SetMaxGain(g)
	return nil
}

// Config returns the active configuration.
func (e *Engine) Config() contracts.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// LoadMIDI decodes a Standard MIDI File and installs its notes. Parsing
// races the configured ParseTimeout and ctx. When the file yields no notes
// or the parse does not finish in time, the fallback scale is installed and
// the returned error wraps ErrMIDIEmpty or ErrMIDITimeout.
func (e *Engine) LoadMIDI(ctx context.Context, data []byte) error {
	e.mu.Lock()
	timeout := e.cfg.ParseTimeout
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan contracts.NoteSequence, 1)
	go func() {
		result <- e.parser.ParseContext(ctx, data)
	}()

	var notes contracts.NoteSequence
	var err error
	select {
	case notes = <-result:
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("%w: %v", ErrMIDITimeout, ctx.Err())
		case len(notes) == 0:
			err = ErrMIDIEmpty
		}
	case <-ctx.Done():
		err = fmt.Errorf("%w: %v", ErrMIDITimeout, ctx.Err())
	}

	if err != nil {
		e.logger.Warn("using fallback scale",
			e.logger.Field().Int("bytes", len(data)),
			e.logger.Field().Error("error", err))
		notes = smf.FallbackScale()
	}

	e.seq.SetNotes(notes)
	e.logger.Info("note sequence loaded", e.logger.Field().Int("notes", len(notes)))
	return err
}

// SetNotes installs seq directly; an empty sequence installs the fallback scale.
func (e *Engine) SetNotes(seq contracts.NoteSequence) {
	if len(seq) == 0 {
		seq = smf.FallbackScale()
	}
	e.seq.SetNotes(seq)
}

// Notes returns a copy of the loaded sequence.
func (e *Engine) Notes() contracts.NoteSequence {
	return e.seq.Notes()
}

// ExportMIDI writes the loaded sequence as a Standard MIDI File.
func (e *Engine) ExportMIDI() ([]byte, error) {
	return smf.Encode(e.seq.Notes(), exportTicksPerQuarter)
}

// State returns a snapshot of the session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	playing := e.playing
	if e.mode == contracts.ModeMIDI || e.seq.Previewing() {
		playing = e.seq.Playing()
	}
	return State{
		Mode:      e.mode,
		Preview:   e.seq.Previewing(),
		Playing:   playing,
		Sample:    e.sample,
		Speed:     e.last.Speed,
		Direction: e.smoother.Direction(),
		Volume:    e.fader.Emitted(),
		NoteIndex: e.seq.Index(),
		Notes:     len(e.seq.Notes()),
	}
}

// Close stops playback and releases the voice and any closable sink.
// Further samples are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.silence()
	e.closed = true

	err := e.voice.Close()
	if c, ok := e.sink.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	e.logger.Info("engine closed")
	return err
}
