package contracts

// AudioSink receives the continuous gain stream in recording mode.
// Play must make the recording audible, Pause must silence it; SetGain
// receives values in [0,1].
type AudioSink interface {
	Play() error
	Pause() error
	SetGain(gain float64) error
}

// Voice sounds one note at a time for the note sequencer.
type Voice interface {
	// Start sounds note at the given playback-rate multiplier and gain,
	// replacing any note that is still sounding.
	Start(note NoteEvent, rate, gain float64) error
	// Stop silences the current note, if any.
	Stop() error
	// Close releases any resources held by the voice.
	Close() error
}

// MIDIOutput is a Voice backed by a system MIDI destination.
type MIDIOutput interface {
	Voice
	ListDevices() ([]DeviceInfo, error) // Lists all available MIDI destinations.
	SelectDevice(deviceID int) error    // Selects a MIDI destination by its ID.
}
