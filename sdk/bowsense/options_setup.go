package bowsense

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/leandrodaf/bowsense/internal/logger"
	"github.com/leandrodaf/bowsense/internal/sequencer"
	"github.com/leandrodaf/bowsense/internal/sink/beepsink"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// referenceToneLength is the span of the generated A4 sample; voices loop it for longer notes.
const referenceToneLength = 2 * time.Second

// applyDefaultOptions sets default values for EngineOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify EngineOptions.
//
// Returns:
//   - contracts.EngineOptions: A structure containing the finalized options with defaults applied.
//   - error: An error if the configuration is invalid or a default voice could not be built.
func applyDefaultOptions(opts ...contracts.Option) (contracts.EngineOptions, error) {
	options := &contracts.EngineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Set defaults if options are not provided
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.Config == nil {
		cfg := contracts.DefaultConfig()
		options.Config = &cfg
	}
	if err := options.Config.Validate(); err != nil {
		return contracts.EngineOptions{}, err
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.Scheduler == nil {
		options.Scheduler = sequencer.RealScheduler{}
	}
	if options.MIDIOutConfig == nil {
		options.MIDIOutConfig = &contracts.MIDIOutConfig{ClientName: "bowsense"}
	}
	if options.Sink == nil {
		options.Sink = beepsink.NewGainSink(beep.Silence(-1))
	}
	if options.Voice == nil {
		tone, err := beepsink.NewReferenceTone(beepsink.DefaultFormat, referenceToneLength)
		if err != nil {
			return contracts.EngineOptions{}, fmt.Errorf("default voice: %w", err)
		}
		options.Voice = beepsink.NewSampleVoice(tone)
	}

	options.Logger.SetLevel(options.LogLevel)
	return *options, nil
}
