//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/leandrodaf/bowsense/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIOUT windows.Handle

// CALLBACK_NULL opens the device without a callback
const CALLBACK_NULL = 0x00000000

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// ClientMid sounds sequencer notes on a winmm MIDI output device.
type ClientMid struct {
	logger   contracts.Logger
	handle   HMIDIOUT
	portConn bool
	mu       sync.Mutex
	channel  uint8
	sounding bool
	pitch    uint8
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutReset      = winmm.NewProc("midiOutReset")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

var errNotConnected = errors.New("no MIDI output device selected")

// NewMIDIClient creates a MIDI output voice for Windows
func NewMIDIClient(options *contracts.EngineOptions) (contracts.MIDIOutput, error) {
	options.Logger.Info("MIDI output client created for Windows")

	return &ClientMid{
		logger:  options.Logger,
		channel: options.MIDIOutConfig.Channel & 0x0F,
	}, nil
}

// ListDevices lists the available MIDI output devices
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn("No MIDI output devices found")
		return nil, errors.New("no MIDI output devices found")
	}

	devices := make([]contracts.DeviceInfo, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			m.logger.Warn(fmt.Sprintf("Failed to get information for MIDI output %d", i))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		devices[i] = contracts.DeviceInfo{
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		}
	}
	return devices, nil
}

// SelectDevice opens a MIDI output device, closing any previous one
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portConn {
		if err := m.closeDevice(); err != nil {
			return fmt.Errorf("failed to close previous MIDI output: %w", err)
		}
	}

	r1, _, err := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&m.handle)),
		uintptr(deviceID),
		0,
		0,
		CALLBACK_NULL,
	)
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to open MIDI output %d: %v", deviceID, err))
		return fmt.Errorf("failed to open MIDI output %d: %v", deviceID, err)
	}

	m.portConn = true
	m.logger.Info(fmt.Sprintf("MIDI output %d connected", deviceID))
	return nil
}

// Start sends Note On for note, releasing the previous note first
func (m *ClientMid) Start(note contracts.NoteEvent, rate, gain float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn {
		return errNotConnected
	}
	if err := m.release(); err != nil {
		return err
	}

	velocity := uint8(math.Round(math.Max(0, math.Min(1, gain)) * 127))
	if velocity == 0 {
		return nil
	}
	if err := m.shortMsg(midi.NoteOn(m.channel, note.Pitch&0x7F, velocity)); err != nil {
		return err
	}
	m.sounding = true
	m.pitch = note.Pitch & 0x7F
	return nil
}

// Stop sends Note Off for the sounding note
func (m *ClientMid) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release()
}

// Close releases the sounding note and closes the device
func (m *ClientMid) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn {
		m.logger.Warn("No MIDI output device is connected")
		return nil
	}
	if err := m.closeDevice(); err != nil {
		return fmt.Errorf("failed to close MIDI output: %w", err)
	}
	m.logger.Info("MIDI output closed")
	return nil
}

func (m *ClientMid) release() error {
	if !m.sounding {
		return nil
	}
	m.sounding = false
	return m.shortMsg(midi.NoteOff(m.channel, m.pitch))
}

// shortMsg packs a channel message into the DWORD midiOutShortMsg expects
func (m *ClientMid) shortMsg(msg midi.Message) error {
	b := msg.Bytes()
	var packed uintptr
	for i := 0; i < len(b) && i < 3; i++ {
		packed |= uintptr(b[i]) << (8 * i)
	}

	r1, _, err := procMidiOutShortMsg.Call(uintptr(m.handle), packed)
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to send MIDI message: %v", err))
		return fmt.Errorf("failed to send MIDI message: %v", err)
	}
	return nil
}

// closeDevice silences and closes the device
func (m *ClientMid) closeDevice() error {
	if m.handle == 0 {
		return fmt.Errorf("invalid MIDI output handle")
	}

	procMidiOutReset.Call(uintptr(m.handle))
	r1, _, err := procMidiOutClose.Call(uintptr(m.handle))
	if r1 != 0 {
		m.logger.Error(fmt.Sprintf("Failed to close MIDI output: %v", err))
		return err
	}

	m.portConn = false
	m.sounding = false
	m.handle = 0
	return nil
}
