package contracts

import "time"

// Timer is a pending timed task that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d has elapsed and returns a cancellation handle.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// MIDIOutConfig holds configuration for the system MIDI output voice.
type MIDIOutConfig struct {
	ClientName string // Name of the MIDI client registered with the OS.
	Channel    uint8  // MIDI channel (0-15) notes are sent on.
}

// EngineOptions defines the configuration options for an engine session.
type EngineOptions struct {
	Logger           Logger             // Logger for logging events and errors.
	LogLevel         LogLevel           // Level of logging to use.
	Config           *Config            // Tuning options; DefaultConfig when nil.
	Sink             AudioSink          // Receives the gain stream in recording mode.
	Voice            Voice              // Sounds sequencer notes in MIDI mode.
	Clock            func() time.Time   // Time source for fades.
	Scheduler        Scheduler          // Timer source for note advance.
	DirectionHandler func(BowDirection) // Called when the bow direction flips.
	MIDIOutConfig    *MIDIOutConfig     // Configuration specific to the MIDI output voice.
}

// Option is a function that modifies EngineOptions.
type Option func(*EngineOptions)

// WithLogger sets the logger for the engine.
func WithLogger(l Logger) Option {
	return func(opts *EngineOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the engine.
func WithLogLevel(level LogLevel) Option {
	return func(opts *EngineOptions) {
		opts.LogLevel = level
	}
}

// WithConfig sets the tuning options for the engine.
func WithConfig(cfg Config) Option {
	return func(opts *EngineOptions) {
		opts.Config = &cfg
	}
}

// WithSink sets the audio sink driven in recording mode.
func WithSink(s AudioSink) Option {
	return func(opts *EngineOptions) {
		opts.Sink = s
	}
}

// WithVoice sets the voice used by the note sequencer.
func WithVoice(v Voice) Option {
	return func(opts *EngineOptions) {
		opts.Voice = v
	}
}

// WithClock overrides the time source used for fades.
func WithClock(now func() time.Time) Option {
	return func(opts *EngineOptions) {
		opts.Clock = now
	}
}

// WithScheduler overrides the timer source used for note advance.
func WithScheduler(s Scheduler) Option {
	return func(opts *EngineOptions) {
		opts.Scheduler = s
	}
}

// WithDirectionHandler registers a fire-and-forget callback for bow direction changes.
func WithDirectionHandler(h func(BowDirection)) Option {
	return func(opts *EngineOptions) {
		opts.DirectionHandler = h
	}
}

// WithMIDIOutConfig sets the configuration of the MIDI output voice.
func WithMIDIOutConfig(config MIDIOutConfig) Option {
	return func(opts *EngineOptions) {
		opts.MIDIOutConfig = &config
	}
}
