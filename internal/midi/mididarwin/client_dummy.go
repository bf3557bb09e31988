//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/bowsense/sdk/contracts"
)

type DummyMIDIClient struct {
	logger contracts.Logger
}

func NewMIDIClient(options *contracts.EngineOptions) (contracts.MIDIOutput, error) {
	options.Logger.Info("Using dummy MIDI output for non-macOS system")
	return &DummyMIDIClient{
		logger: options.Logger,
	}, nil
}

func (m *DummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy MIDI output")
	return nil, fmt.Errorf("MIDI functionality is not available on this platform")
}

func (m *DummyMIDIClient) SelectDevice(deviceID int) error {
	m.logger.Warn("SelectDevice called on dummy MIDI output")
	return fmt.Errorf("MIDI functionality is not available on this platform")
}

func (m *DummyMIDIClient) Start(note contracts.NoteEvent, rate, gain float64) error {
	m.logger.Debug("Start called on dummy MIDI output", m.logger.Field().Uint8("pitch", note.Pitch))
	return nil
}

func (m *DummyMIDIClient) Stop() error {
	return nil
}

func (m *DummyMIDIClient) Close() error {
	m.logger.Warn("Close called on dummy MIDI output")
	return nil
}
