//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/leandrodaf/bowsense/sdk/contracts"
	"github.com/youpy/go-coremidi"
	"gitlab.com/gomidi/midi/v2"
)

// Error definitions for MIDI output issues.
var (
	ErrNoMIDIDevices      = errors.New("no MIDI destinations found")
	ErrInvalidMIDIDevice  = errors.New("invalid MIDI destination")
	ErrNoDeviceSelected   = errors.New("no MIDI destination selected")
	ErrCreateOutputPort   = errors.New("error creating output port")
	ErrSendingMIDIMessage = errors.New("error sending MIDI message")
)

// ClientMid sounds sequencer notes on a CoreMIDI destination. One note
// sounds at a time; starting a note releases the previous one.
type ClientMid struct {
	logger      contracts.Logger
	client      coremidi.Client       // CoreMIDI client instance for MIDI operations.
	outputPort  coremidi.OutputPort   // Output port notes are sent through.
	destination *coremidi.Destination // Selected destination, nil until SelectDevice.
	channel     uint8
	mu          sync.Mutex // Guards the destination and the sounding note.
	sounding    bool
	pitch       uint8
}

// NewMIDIClient initializes a CoreMIDI output voice.
func NewMIDIClient(options *contracts.EngineOptions) (contracts.MIDIOutput, error) {
	client, err := coremidi.NewClient(options.MIDIOutConfig.ClientName)
	if err != nil {
		return nil, err
	}

	port, err := coremidi.NewOutputPort(client, "Output Port")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}
	options.Logger.Info("MIDI output client successfully created")

	return &ClientMid{
		logger:     options.Logger,
		client:     client,
		outputPort: port,
		channel:    options.MIDIOutConfig.Channel & 0x0F,
	}, nil
}

// ListDevices retrieves and returns available MIDI destinations.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	if len(destinations) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(destinations))
	for i, destination := range destinations {
		entity := destination.Entity()
		devices[i] = contracts.DeviceInfo{
			Name:         destination.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return devices, nil
}

// SelectDevice selects the destination notes are sent to, releasing any
// note sounding on the previous one.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	if deviceID < 0 || deviceID >= len(destinations) {
		m.logger.Error(ErrInvalidMIDIDevice.Error())
		return ErrInvalidMIDIDevice
	}

	if err := m.release(); err != nil {
		m.logger.Warn("failed to release note on previous destination", m.logger.Field().Error("error", err))
	}

	destination := destinations[deviceID]
	m.destination = &destination
	m.logger.Info("MIDI destination selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", destination.Name()))
	return nil
}

// Start sends Note On for note; gain sets the velocity. The rate is
// ignored because the destination plays the exact pitch.
func (m *ClientMid) Start(note contracts.NoteEvent, rate, gain float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destination == nil {
		return ErrNoDeviceSelected
	}
	if err := m.release(); err != nil {
		return err
	}

	velocity := uint8(math.Round(math.Max(0, math.Min(1, gain)) * 127))
	if velocity == 0 {
		return nil
	}
	if err := m.send(midi.NoteOn(m.channel, note.Pitch&0x7F, velocity)); err != nil {
		return err
	}
	m.sounding = true
	m.pitch = note.Pitch & 0x7F
	return nil
}

// Stop sends Note Off for the sounding note.
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release()
}

// Close releases the sounding note and forgets the destination.
func (m *ClientMid) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.release()
	m.destination = nil
	m.logger.Info("MIDI output closed")
	return err
}

func (m *ClientMid) release() error {
	if !m.sounding || m.destination == nil {
		return nil
	}
	m.sounding = false
	return m.send(midi.NoteOff(m.channel, m.pitch))
}

func (m *ClientMid) send(msg midi.Message) error {
	packet := coremidi.NewPacket(msg.Bytes(), 0)
	if err := packet.Send(&m.outputPort, m.destination); err != nil {
		m.logger.Error(ErrSendingMIDIMessage.Error(), m.logger.Field().Error("error", err))
		return fmt.Errorf("%w: %v", ErrSendingMIDIMessage, err)
	}
	return nil
}
