package sequencer

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/bowsense/sdk/contracts"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler records timers so tests can fire them by hand
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) contracts.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// fire runs the latest timer even if it was stopped, like a timer that raced its cancellation
func (s *fakeScheduler) fire() {
	if t := s.last(); t != nil {
		t.f()
	}
}

type started struct {
	note contracts.NoteEvent
	rate float64
	gain float64
}

type fakeVoice struct {
	starts   []started
	stops    int
	sounding bool
	startErr error
}

func (v *fakeVoice) Start(note contracts.NoteEvent, rate, gain float64) error {
	v.starts = append(v.starts, started{note, rate, gain})
	v.sounding = true
	return v.startErr
}

func (v *fakeVoice) Stop() error {
	v.stops++
	v.sounding = false
	return nil
}

func (v *fakeVoice) Close() error { return nil }

var threeNotes = contracts.NoteSequence{
	{Pitch: 60, Velocity: 127, DurationMs: 200},
	{Pitch: 69, Velocity: 64, DurationMs: 300},
	{Pitch: 81, Velocity: 100, DurationMs: 400},
}

func newTestSequencer() (*Sequencer, *fakeVoice, *fakeScheduler) {
	v := &fakeVoice{}
	sched := &fakeScheduler{}
	s := New(v, sched, nil, 1.0)
	s.SetNotes(threeNotes)
	return s, v, sched
}

// TestPlaybackRate verifies the semitone ratio and clamping
func TestPlaybackRate(t *testing.T) {
	testCases := []struct {
		pitch uint8
		want  float64
	}{
		{69, 1},
		{81, math.Pow(1.059463, 12)},
		{57, math.Pow(1.059463, -12)},
		{127, 2},
		{0, 0.5},
	}

	for _, tc := range testCases {
		if got := PlaybackRate(tc.pitch); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("pitch %d: expected rate %v, got %v", tc.pitch, tc.want, got)
		}
	}
}

// TestMotionGatedLoop verifies notes advance on their durations and wrap around
func TestMotionGatedLoop(t *testing.T) {
	s, v, sched := newTestSequencer()

	s.SetSpeed(0.5)
	s.SetMoving(true)
	if len(v.starts) != 1 || v.starts[0].note.Pitch != 60 {
		t.Fatalf("Expected the first note to start, got %+v", v.starts)
	}
	if sched.last().d != 200*time.Millisecond {
		t.Errorf("Expected advance after 200ms, got %v", sched.last().d)
	}
	if math.Abs(v.starts[0].gain-0.5) > 1e-9 {
		t.Errorf("Expected gain 0.5 (velocity 127 at half speed), got %v", v.starts[0].gain)
	}

	sched.fire()
	sched.fire()
	sched.fire()

	pitches := []uint8{60, 69, 81, 60}
	if len(v.starts) != len(pitches) {
		t.Fatalf("Expected %d starts, got %d", len(pitches), len(v.starts))
	}
	for i, p := range pitches {
		if v.starts[i].note.Pitch != p {
			t.Errorf("Start %d: expected pitch %d, got %d", i, p, v.starts[i].note.Pitch)
		}
	}
	if v.stops != 3 {
		t.Errorf("Expected each new note to stop the previous one (3 stops), got %d", v.stops)
	}
	if math.Abs(v.starts[1].rate-1) > 1e-9 {
		t.Errorf("Expected rate 1 for A4, got %v", v.starts[1].rate)
	}
}

// TestStopMovingCutsNote verifies the hard stop and that stale timers are ignored
func TestStopMovingCutsNote(t *testing.T) {
	s, v, sched := newTestSequencer()

	s.SetSpeed(1)
	s.SetMoving(true)
	pending := sched.last()

	s.SetMoving(false)
	if v.sounding {
		t.Error("Expected the voice to be silenced immediately")
	}
	if !pending.stopped {
		t.Error("Expected the pending advance to be cancelled")
	}
	if s.Playing() {
		t.Error("Expected the sequencer to be idle")
	}

	// A callback that raced its cancellation must not restart playback
	pending.f()
	if len(v.starts) != 1 {
		t.Errorf("Expected no new note from a stale timer, got %d starts", len(v.starts))
	}

	// Resuming continues from the next note
	s.SetMoving(true)
	if v.starts[len(v.starts)-1].note.Pitch != 69 {
		t.Errorf("Expected resume at the next note, got %d", v.starts[len(v.starts)-1].note.Pitch)
	}
}

// TestPreviewLoop verifies preview plays at max gain regardless of motion
func TestPreviewLoop(t *testing.T) {
	v := &fakeVoice{}
	sched := &fakeScheduler{}
	s := New(v, sched, nil, 0.8)
	s.SetNotes(threeNotes)

	s.SetSpeed(0)
	s.SetPreview(true)
	if len(v.starts) != 1 {
		t.Fatalf("Expected preview to start a note, got %d", len(v.starts))
	}
	if math.Abs(v.starts[0].gain-0.8) > 1e-9 {
		t.Errorf("Expected gain 0.8, got %v", v.starts[0].gain)
	}

	// Motion changes do not interrupt preview
	s.SetMoving(true)
	s.SetMoving(false)
	if !v.sounding || len(v.starts) != 1 {
		t.Errorf("Expected preview to keep its note, got sounding=%v starts=%d", v.sounding, len(v.starts))
	}

	sched.fire()
	if len(v.starts) != 2 || math.Abs(v.starts[1].gain-0.8*64/127) > 1e-9 {
		t.Errorf("Expected second preview note at velocity-scaled gain, got %+v", v.starts)
	}

	s.SetPreview(false)
	if v.sounding || s.Previewing() {
		t.Error("Expected preview toggle to silence the voice")
	}
}

// TestSetNotesRestarts verifies replacing the sequence rewinds and cuts the old note
func TestSetNotesRestarts(t *testing.T) {
	s, v, _ := newTestSequencer()

	s.SetSpeed(1)
	s.SetMoving(true)
	s.SetNotes(contracts.NoteSequence{{Pitch: 72, Velocity: 100, DurationMs: 150}})

	last := v.starts[len(v.starts)-1]
	if last.note.Pitch != 72 {
		t.Errorf("Expected the new sequence to start, got %d", last.note.Pitch)
	}
	if s.Index() != 0 {
		t.Errorf("Expected index to wrap to 0 on a single-note sequence, got %d", s.Index())
	}
	if len(s.Notes()) != 1 {
		t.Errorf("Expected 1 note, got %d", len(s.Notes()))
	}
}

// TestEmptySequenceNeverPlays verifies gates without notes stay silent
func TestEmptySequenceNeverPlays(t *testing.T) {
	v := &fakeVoice{}
	s := New(v, &fakeScheduler{}, nil, 1)

	s.SetMoving(true)
	s.SetPreview(true)
	if len(v.starts) != 0 || s.Playing() {
		t.Error("Expected no playback without notes")
	}
}

// TestStopClearsGates verifies Stop leaves everything idle
func TestStopClearsGates(t *testing.T) {
	s, v, sched := newTestSequencer()
	v.startErr = errors.New("device gone")

	s.SetPreview(true)
	s.Stop()
	if s.Playing() || s.Previewing() || v.sounding {
		t.Error("Expected Stop to silence and clear both gates")
	}

	sched.fire()
	if len(v.starts) != 1 {
		t.Errorf("Expected no advance after Stop, got %d starts", len(v.starts))
	}
}

// TestRealSchedulerAdvances verifies the time.AfterFunc scheduler drives the loop
func TestRealSchedulerAdvances(t *testing.T) {
	v := &syncVoice{started: make(chan uint8, 8)}
	s := New(v, nil, nil, 1)
	s.SetNotes(contracts.NoteSequence{{Pitch: 60, Velocity: 100, DurationMs: 5}, {Pitch: 62, Velocity: 100, DurationMs: 5}})

	s.SetPreview(true)
	defer s.Stop()

	for _, want := range []uint8{60, 62, 60} {
		select {
		case got := <-v.started:
			if got != want {
				t.Fatalf("Expected pitch %d, got %d", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for pitch %d", want)
		}
	}
}

// TestNoteDurationClamped verifies out-of-range durations never schedule a non-positive advance
func TestNoteDurationClamped(t *testing.T) {
	testCases := []struct {
		name       string
		durationMs int
		want       time.Duration
	}{
		{"huge", math.MaxInt, 24 * time.Hour},
		{"negative", -5, contracts.MinNoteDurationMs * time.Millisecond},
		{"zero", 0, contracts.MinNoteDurationMs * time.Millisecond},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := &fakeVoice{}
			sched := &fakeScheduler{}
			s := New(v, sched, nil, 1)
			s.SetNotes(contracts.NoteSequence{{Pitch: 60, Velocity: 100, DurationMs: tc.durationMs}})

			s.SetPreview(true)
			if got := sched.last().d; got != tc.want {
				t.Errorf("Expected advance after %v, got %v", tc.want, got)
			}
			if len(v.starts) != 1 {
				t.Errorf("Expected a single note before the advance, got %d", len(v.starts))
			}
		})
	}
}

type syncVoice struct {
	started chan uint8
}

func (v *syncVoice) Start(note contracts.NoteEvent, rate, gain float64) error {
	select {
	case v.started <- note.Pitch:
	default:
	}
	return nil
}

func (v *syncVoice) Stop() error  { return nil }
func (v *syncVoice) Close() error { return nil }
