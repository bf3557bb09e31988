package bowsense

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/bowsense/internal/logger"
	"github.com/leandrodaf/bowsense/internal/midi/mididarwin"
	"github.com/leandrodaf/bowsense/internal/midi/midiwindows"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no MIDI output implementation.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// outputInitializers maps OS names to corresponding MIDI output initializers.
var outputInitializers = map[string]func(*contracts.EngineOptions) (contracts.MIDIOutput, error){
	"darwin":  mididarwin.NewMIDIClient,  // macOS (Darwin) CoreMIDI output.
	"windows": midiwindows.NewMIDIClient, // Windows winmm output.
}

// NewMIDIOutput creates a voice that plays sequencer notes on a system MIDI
// destination. Pass it to NewEngine with contracts.WithVoice after
// selecting a device. Only the logging and MIDI output options are used.
//
// Returns:
//   - contracts.MIDIOutput: The MIDI output voice.
//   - error: ErrUnsupportedOS on platforms without MIDI output, or an initialization error.
func NewMIDIOutput(opts ...contracts.Option) (contracts.MIDIOutput, error) {
	options := &contracts.EngineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel != 0 {
		options.Logger.SetLevel(options.LogLevel)
	}
	if options.MIDIOutConfig == nil {
		options.MIDIOutConfig = &contracts.MIDIOutConfig{ClientName: "bowsense"}
	}

	if initializer, exists := outputInitializers[runtime.GOOS]; exists {
		return initializer(options)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}
