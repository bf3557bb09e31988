package bowsense

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/bowsense/internal/logger"
	"github.com/leandrodaf/bowsense/internal/smf"
	"github.com/leandrodaf/bowsense/sdk/contracts"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	movingLine = "0,0,0,300,0,0" // magnitude 210, normalized 0.84
	stillLine  = "0,0,0,0,0,0"
)

// sinkEvent is one call observed by fakeSink
type sinkEvent struct {
	op   string
	gain float64
}

type fakeSink struct {
	mu     sync.Mutex
	events []sinkEvent
	closed bool
}

func (s *fakeSink) Play() error {
	s.record(sinkEvent{op: "play"})
	return nil
}

func (s *fakeSink) Pause() error {
	s.record(sinkEvent{op: "pause"})
	return nil
}

func (s *fakeSink) SetGain(g float64) error {
	s.record(sinkEvent{op: "gain", gain: g})
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) record(e sinkEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *fakeSink) ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.op
	}
	return out
}

func (s *fakeSink) reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

type fakeVoice struct {
	mu       sync.Mutex
	starts   []contracts.NoteEvent
	gains    []float64
	stops    int
	closeErr error
	closed   bool
}

func (v *fakeVoice) Start(note contracts.NoteEvent, rate, gain float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.starts = append(v.starts, note)
	v.gains = append(v.gains, gain)
	return nil
}

func (v *fakeVoice) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stops++
	return nil
}

func (v *fakeVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return v.closeErr
}

type fakeTimer struct{ stopped bool }

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler never fires; tests only observe the first note of a loop
type fakeScheduler struct{}

func (fakeScheduler) AfterFunc(time.Duration, func()) contracts.Timer { return &fakeTimer{} }

// manualClock is advanced by hand
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Add(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	engine *Engine
	sink   *fakeSink
	voice  *fakeVoice
	clock  *manualClock
	logs   *observer.ObservedLogs
}

// instantConfig disables fades and smoothing so each line maps straight to a gain
func instantConfig() contracts.Config {
	cfg := contracts.DefaultConfig()
	cfg.SmoothingWindowSize = 1
	cfg.VolumeHistorySize = 1
	cfg.FadeInDuration = 0
	cfg.FadeOutDuration = 0
	return cfg
}

func newHarness(t *testing.T, cfg contracts.Config, opts ...contracts.Option) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		sink:  &fakeSink{},
		voice: &fakeVoice{},
		clock: &manualClock{now: time.Unix(1700000000, 0)},
		logs:  logs,
	}

	base := []contracts.Option{
		contracts.WithLogger(logger.NewZapLoggerWithCore(core)),
		contracts.WithConfig(cfg),
		contracts.WithSink(h.sink),
		contracts.WithVoice(h.voice),
		contracts.WithClock(h.clock.Now),
		contracts.WithScheduler(fakeScheduler{}),
	}
	e, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	h.engine = e
	return h
}

// TestNewEngineRejectsInvalidConfig verifies option validation
func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := contracts.DefaultConfig()
	cfg.MaxGain = 1.5

	_, err := NewEngine(contracts.WithLogger(logger.NewNopLogger()), contracts.WithConfig(cfg))
	if !errors.Is(err, contracts.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

// TestNewEngineDefaults verifies the engine starts in recording mode with the fallback scale
func TestNewEngineDefaults(t *testing.T) {
	h := newHarness(t, contracts.DefaultConfig())

	st := h.engine.State()
	if st.Mode != contracts.ModeRecording {
		t.Errorf("Expected recording mode, got %v", st.Mode)
	}
	if st.Playing || st.Preview {
		t.Errorf("Expected an idle engine, got %+v", st)
	}
	if !reflect.DeepEqual(h.engine.Notes(), smf.FallbackScale()) {
		t.Errorf("Expected the fallback scale, got %+v", h.engine.Notes())
	}
}

// TestProcessLineDiscardsMalformed verifies bad lines keep the previous command
func TestProcessLineDiscardsMalformed(t *testing.T) {
	h := newHarness(t, instantConfig())

	prev, ok := h.engine.ProcessLine(movingLine)
	if !ok {
		t.Fatal("Expected the moving line to be accepted")
	}

	for _, line := range []string{"", "1,2,3", "garbage"} {
		cmd, ok := h.engine.ProcessLine(line)
		if ok {
			t.Errorf("Expected %q to be discarded", line)
		}
		if cmd != prev {
			t.Errorf("Expected previous command %+v, got %+v", prev, cmd)
		}
	}
}

// TestRecordingStartsBeforeRise verifies the sink plays before any audible gain
func TestRecordingStartsBeforeRise(t *testing.T) {
	cfg := instantConfig()
	cfg.FadeInDuration = 500 * time.Millisecond
	h := newHarness(t, cfg)

	cmd, _ := h.engine.ProcessLine(movingLine)
	if !cmd.Play || cmd.Target != 1 {
		t.Fatalf("Expected play at target 1, got %+v", cmd)
	}
	if cmd.Volume != 0 {
		t.Errorf("Expected the fade to start from silence, got %v", cmd.Volume)
	}

	ops := h.sink.ops()
	if len(ops) != 2 || ops[0] != "play" || ops[1] != "gain" {
		t.Fatalf("Expected play then gain, got %v", ops)
	}

	h.clock.Add(250 * time.Millisecond)
	cmd, _ = h.engine.ProcessLine(movingLine)
	if math.Abs(cmd.Volume-0.5) > 1e-9 {
		t.Errorf("Expected mid-fade volume 0.5, got %v", cmd.Volume)
	}

	h.clock.Add(250 * time.Millisecond)
	cmd, _ = h.engine.ProcessLine(movingLine)
	if cmd.Volume != 1 {
		t.Errorf("Expected full volume after the fade, got %v", cmd.Volume)
	}

	plays := 0
	for _, op := range h.sink.ops() {
		if op == "play" {
			plays++
		}
	}
	if plays != 1 {
		t.Errorf("Expected a single play, got %d", plays)
	}
}

// TestRecordingPausesAfterSettle verifies pause waits for the fade out
func TestRecordingPausesAfterSettle(t *testing.T) {
	cfg := instantConfig()
	cfg.FadeOutDuration = 30 * time.Millisecond
	h := newHarness(t, cfg)

	h.engine.ProcessLine(movingLine)
	h.sink.reset()

	cmd, _ := h.engine.ProcessLine(stillLine)
	if !cmd.Play || cmd.Volume != 1 {
		t.Errorf("Expected playback to continue at the start of the fade, got %+v", cmd)
	}
	for _, op := range h.sink.ops() {
		if op == "pause" {
			t.Fatal("Expected no pause before the fade settles")
		}
	}

	h.clock.Add(15 * time.Millisecond)
	cmd, _ = h.engine.ProcessLine(stillLine)
	if cmd.Play || cmd.Volume != 0 {
		t.Errorf("Expected a settled, paused sink, got %+v", cmd)
	}

	ops := h.sink.ops()
	if ops[len(ops)-1] != "pause" || ops[len(ops)-2] != "gain" {
		t.Errorf("Expected gain then pause, got %v", ops)
	}
}

// TestRecordingInstantRoundTrip verifies zero-length fades switch immediately
func TestRecordingInstantRoundTrip(t *testing.T) {
	h := newHarness(t, instantConfig())

	cmd, _ := h.engine.ProcessLine(movingLine)
	if cmd.Volume != 1 || !cmd.Play {
		t.Errorf("Expected immediate full volume, got %+v", cmd)
	}

	cmd, _ = h.engine.ProcessLine(stillLine)
	if cmd.Volume != 0 || cmd.Play {
		t.Errorf("Expected immediate silence, got %+v", cmd)
	}

	want := []string{"play", "gain", "gain", "pause"}
	if got := h.sink.ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

// TestMIDIModeGatesSequencer verifies motion starts and stops notes without touching the sink
func TestMIDIModeGatesSequencer(t *testing.T) {
	h := newHarness(t, instantConfig())
	h.engine.SetMode(contracts.ModeMIDI)

	cmd, _ := h.engine.ProcessLine(movingLine)
	if !cmd.Play || math.Abs(cmd.Volume-0.84) > 1e-9 {
		t.Errorf("Expected play at the motion level 0.84, got %+v", cmd)
	}
	if len(h.voice.starts) != 1 || h.voice.starts[0].Pitch != 60 {
		t.Fatalf("Expected the first scale note, got %+v", h.voice.starts)
	}
	wantGain := 100.0 / 127 * 0.84
	if math.Abs(h.voice.gains[0]-wantGain) > 1e-9 {
		t.Errorf("Expected gain %v, got %v", wantGain, h.voice.gains[0])
	}
	if !h.engine.State().Playing {
		t.Error("Expected the note loop to be active")
	}

	cmd, _ = h.engine.ProcessLine(stillLine)
	if cmd.Play || cmd.Volume != 0 {
		t.Errorf("Expected a closed gate at volume 0, got %+v", cmd)
	}
	if h.voice.stops != 1 {
		t.Errorf("Expected the note to be cut, got %d stops", h.voice.stops)
	}
	if h.engine.State().Playing {
		t.Error("Expected the note loop to be idle")
	}
	if ops := h.sink.ops(); len(ops) != 0 {
		t.Errorf("Expected no sink calls in MIDI mode, got %v", ops)
	}
}

// TestSetModeSilences verifies a mode switch pauses a playing sink before returning
func TestSetModeSilences(t *testing.T) {
	h := newHarness(t, instantConfig())

	h.engine.ProcessLine(movingLine)
	h.sink.reset()

	h.engine.SetMode(contracts.ModeMIDI)
	want := []string{"gain", "pause"}
	if got := h.sink.ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if h.engine.State().Volume != 0 {
		t.Errorf("Expected the fader to be reset, got %v", h.engine.State().Volume)
	}

	h.sink.reset()
	h.engine.SetMode(contracts.ModeMIDI)
	if ops := h.sink.ops(); len(ops) != 0 {
		t.Errorf("Expected switching to the same mode to do nothing, got %v", ops)
	}
}

// TestPreviewIgnoresMotion verifies preview plays at max gain while still
func TestPreviewIgnoresMotion(t *testing.T) {
	h := newHarness(t, instantConfig())
	h.engine.SetMode(contracts.ModeMIDI)

	h.engine.SetPreview(true)
	if len(h.voice.starts) != 1 {
		t.Fatalf("Expected preview to start a note, got %d", len(h.voice.starts))
	}
	if want := 100.0 / 127; math.Abs(h.voice.gains[0]-want) > 1e-9 {
		t.Errorf("Expected gain %v, got %v", want, h.voice.gains[0])
	}

	cmd, _ := h.engine.ProcessLine(stillLine)
	if !h.engine.State().Playing {
		t.Error("Expected preview to keep playing without motion")
	}
	if !cmd.Play || cmd.Volume != 1 {
		t.Errorf("Expected preview to report play at max gain, got %+v", cmd)
	}

	h.engine.Stop()
	st := h.engine.State()
	if st.Playing || st.Preview {
		t.Errorf("Expected Stop to end preview, got %+v", st)
	}
}

// TestDirectionHandler verifies the callback fires once per reversal
func TestDirectionHandler(t *testing.T) {
	var got []contracts.BowDirection
	h := newHarness(t, instantConfig(), contracts.WithDirectionHandler(func(d contracts.BowDirection) {
		got = append(got, d)
	}))

	for _, line := range []string{"0.5,0,0,0,0,0", "0.1,0,0,0,0,0", "-0.5,0,0,0,0,0", "-0.6,0,0,0,0,0"} {
		h.engine.ProcessLine(line)
	}

	if len(got) != 1 || got[0] != contracts.DirectionDown {
		t.Errorf("Expected one change to down, got %v", got)
	}
	if h.engine.State().Direction != contracts.DirectionDown {
		t.Errorf("Expected direction down, got %v", h.engine.State().Direction)
	}
}

// TestLoadMIDI verifies decoded notes replace the sequence
func TestLoadMIDI(t *testing.T) {
	h := newHarness(t, instantConfig())

	seq := contracts.NoteSequence{
		{Pitch: 62, Velocity: 90, DurationMs: 250},
		{Pitch: 74, Velocity: 60, DurationMs: 500},
	}
	data, err := smf.Encode(seq, 480)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	if err := h.engine.LoadMIDI(context.Background(), data); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := h.engine.Notes(); !reflect.DeepEqual(got, seq) {
		t.Errorf("Expected %+v, got %+v", seq, got)
	}
}

// TestLoadMIDIFallback verifies unusable input installs the fallback scale
func TestLoadMIDIFallback(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not a midi file")},
		{"header only", []byte{'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 0, 0x01, 0xE0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, instantConfig())
			h.engine.SetNotes(contracts.NoteSequence{{Pitch: 50, Velocity: 1, DurationMs: 100}})

			err := h.engine.LoadMIDI(context.Background(), tc.data)
			if !errors.Is(err, ErrMIDIEmpty) {
				t.Errorf("Expected ErrMIDIEmpty, got %v", err)
			}
			if !reflect.DeepEqual(h.engine.Notes(), smf.FallbackScale()) {
				t.Errorf("Expected the fallback scale, got %+v", h.engine.Notes())
			}
			if n := h.logs.FilterMessage("using fallback scale").Len(); n != 1 {
				t.Errorf("Expected one fallback warning, got %d", n)
			}
		})
	}
}

// TestLoadMIDITimeout verifies an expired context reports a timeout and falls back
func TestLoadMIDITimeout(t *testing.T) {
	h := newHarness(t, instantConfig())

	data, err := smf.Encode(contracts.NoteSequence{{Pitch: 62, Velocity: 90, DurationMs: 250}}, 480)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = h.engine.LoadMIDI(ctx, data)
	if !errors.Is(err, ErrMIDITimeout) {
		t.Errorf("Expected ErrMIDITimeout, got %v", err)
	}
	if !reflect.DeepEqual(h.engine.Notes(), smf.FallbackScale()) {
		t.Errorf("Expected the fallback scale, got %+v", h.engine.Notes())
	}
}

// denseSMF returns a one-track file of n controller events, slow enough to outlast a tiny parse budget
func denseSMF(n int) []byte {
	body := []byte{0x00, 0xB0, 0x07, 0x64}
	for i := 1; i < n; i++ {
		body = append(body, 0x00, 0x07, 0x64)
	}
	body = append(body, 0x00, 0xFF, 0x2F, 0x00)

	data := []byte{'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0x01, 0xE0, 'M', 'T', 'r', 'k'}
	data = binary.BigEndian.AppendUint32(data, uint32(len(body)))
	return append(data, body...)
}

// TestLoadMIDIParseTimeout verifies the configured budget bounds the parse
func TestLoadMIDIParseTimeout(t *testing.T) {
	cfg := instantConfig()
	cfg.ParseTimeout = time.Nanosecond
	h := newHarness(t, cfg)

	err := h.engine.LoadMIDI(context.Background(), denseSMF(90000))
	if !errors.Is(err, ErrMIDITimeout) {
		t.Errorf("Expected ErrMIDITimeout, got %v", err)
	}
	if !reflect.DeepEqual(h.engine.Notes(), smf.FallbackScale()) {
		t.Errorf("Expected the fallback scale, got %+v", h.engine.Notes())
	}
	if n := h.logs.FilterMessage("using fallback scale").Len(); n != 1 {
		t.Errorf("Expected one fallback warning, got %d", n)
	}
}

// TestSetNotesEmptyFallsBack verifies an empty sequence is never installed
func TestSetNotesEmptyFallsBack(t *testing.T) {
	h := newHarness(t, instantConfig())

	h.engine.SetNotes(nil)
	if len(h.engine.Notes()) != 8 {
		t.Errorf("Expected the 8-note fallback, got %d notes", len(h.engine.Notes()))
	}
}

// TestExportMIDI verifies the loaded sequence exports as a parseable file
func TestExportMIDI(t *testing.T) {
	h := newHarness(t, instantConfig())

	data, err := h.engine.ExportMIDI()
	if err != nil {
		t.Fatalf("Failed to export: %v", err)
	}
	if got := smf.Parse(data); !reflect.DeepEqual(got, smf.FallbackScale()) {
		t.Errorf("Expected the fallback scale back, got %+v", got)
	}
}

// TestTuning verifies sensitivity and gain updates are validated
func TestTuning(t *testing.T) {
	h := newHarness(t, instantConfig())

	if err := h.engine.SetSensitivity(2); !errors.Is(err, contracts.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if err := h.engine.SetMaxGain(-0.1); !errors.Is(err, contracts.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}

	if err := h.engine.SetMaxGain(0.5); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	cmd, _ := h.engine.ProcessLine(movingLine)
	if cmd.Volume != 0.5 {
		t.Errorf("Expected volume capped at 0.5, got %v", cmd.Volume)
	}

	// 0.84 sits below a 0.9 threshold, so the gain follows the eased ramp
	if err := h.engine.SetSensitivity(0.9); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	cmd, _ = h.engine.ProcessLine(movingLine)
	if cmd.Target >= 0.5 {
		t.Errorf("Expected a target under the ceiling, got %v", cmd.Target)
	}
	if h.engine.Config().MotionThreshold != 0.9 {
		t.Errorf("Expected threshold 0.9, got %v", h.engine.Config().MotionThreshold)
	}
}

// TestClose verifies Close silences, releases collaborators and combines their errors
func TestClose(t *testing.T) {
	h := newHarness(t, instantConfig())
	h.voice.closeErr = errors.New("device gone")

	h.engine.ProcessLine(movingLine)
	err := h.engine.Close()
	if err == nil || err.Error() != "device gone" {
		t.Errorf("Expected the voice error, got %v", err)
	}
	if !h.voice.closed || !h.sink.closed {
		t.Error("Expected voice and sink to be closed")
	}
	ops := h.sink.ops()
	if ops[len(ops)-1] != "pause" {
		t.Errorf("Expected the sink to be paused, got %v", ops)
	}

	if _, ok := h.engine.ProcessLine(movingLine); ok {
		t.Error("Expected samples to be ignored after Close")
	}
	if err := h.engine.LoadMIDI(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if err := h.engine.Close(); err != nil {
		t.Errorf("Expected a second Close to be a no-op, got %v", err)
	}
}
