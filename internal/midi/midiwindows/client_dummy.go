//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/bowsense/sdk/contracts"
)

type dummyMIDIClient struct {
	logger contracts.Logger
}

// NewMIDIClient initializes a dummy MIDI output for non-Windows systems.
func NewMIDIClient(options *contracts.EngineOptions) (contracts.MIDIOutput, error) {
	options.Logger.Info("Using dummy MIDI output for non-Windows system")
	return &dummyMIDIClient{
		logger: options.Logger,
	}, nil
}

// ListDevices logs a warning and returns an error indicating that MIDI functionality is unavailable on this platform.
func (m *dummyMIDIClient) ListDevices() ([]contracts.DeviceInfo, error) {
	m.logger.Warn("ListDevices called on dummy MIDI output")
	return nil, fmt.Errorf("MIDI functionality is not available on this platform")
}

// SelectDevice logs a warning and returns an error indicating that MIDI functionality is unavailable on this platform.
func (m *dummyMIDIClient) SelectDevice(deviceID int) error {
	m.logger.Warn("SelectDevice called on dummy MIDI output")
	return fmt.Errorf("MIDI functionality is not available on this platform")
}

// Start accepts the note without sounding it.
func (m *dummyMIDIClient) Start(note contracts.NoteEvent, rate, gain float64) error {
	m.logger.Debug("Start called on dummy MIDI output", m.logger.Field().Uint8("pitch", note.Pitch))
	return nil
}

// Stop is a no-op.
func (m *dummyMIDIClient) Stop() error {
	return nil
}

// Close logs a warning indicating that Close was called on the dummy MIDI output.
func (m *dummyMIDIClient) Close() error {
	m.logger.Warn("Close called on dummy MIDI output")
	return nil
}
