package bowsense

import (
	"github.com/gopxl/beep"
	"github.com/leandrodaf/bowsense/internal/sink/beepsink"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// BeepSink is an AudioSink whose output is a beep.Streamer.
type BeepSink interface {
	contracts.AudioSink
	beep.Streamer
}

// BeepVoice is a Voice whose output is a beep.Streamer.
type BeepVoice interface {
	contracts.Voice
	beep.Streamer
}

// NewBeepSink wraps a decoded recording so the engine controls its gain
// and transport. Hand the returned streamer to the audio output.
func NewBeepSink(recording beep.Streamer) BeepSink {
	return beepsink.NewGainSink(recording)
}

// NewBeepVoice returns a voice that plays sample, recorded at A4, pitch
// shifted per note. A nil sample uses a generated A4 sine.
func NewBeepVoice(sample *beep.Buffer) (BeepVoice, error) {
	if sample == nil {
		tone, err := beepsink.NewReferenceTone(beepsink.DefaultFormat, referenceToneLength)
		if err != nil {
			return nil, err
		}
		sample = tone
	}
	return beepsink.NewSampleVoice(sample), nil
}
