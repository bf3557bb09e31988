package gain

import (
	"math"
	"time"

	"github.com/leandrodaf/bowsense/internal/ring"
)

const (
	// SilenceEpsilon is the level at or below which a volume counts as zero for fade detection.
	SilenceEpsilon = 0.001
	// SettledEpsilon is the emitted level at or below which audio may be paused.
	SettledEpsilon = 0.01

	arriveTolerance = 0.01
	stableTolerance = 0.05
)

// Direction of an in-flight fade.
type Direction int

const (
	// FadeNone means the fader is idle.
	FadeNone Direction = iota
	// FadeIn ramps up from silence.
	FadeIn
	// FadeOut ramps down to silence.
	FadeOut
)

func (d Direction) String() string {
	switch d {
	case FadeIn:
		return "in"
	case FadeOut:
		return "out"
	default:
		return "none"
	}
}

type fadeState struct {
	direction   Direction
	start       time.Time
	duration    time.Duration
	startVolume float64
	target      float64
	rising      bool // startVolume < target when the fade began
}

// Fader turns target gains into timed ramps when audio enters or leaves
// silence, then averages the result over a short history. At most one
// fade is in flight. It is not safe for concurrent use.
type Fader struct {
	fadeIn  time.Duration
	fadeOut time.Duration
	history *ring.Window
	state   *fadeState
	last    float64
}

// NewFader returns an idle fader.
func NewFader(fadeIn, fadeOut time.Duration, historySize int) *Fader {
	return &Fader{
		fadeIn:  fadeIn,
		fadeOut: fadeOut,
		history: ring.New(historySize),
	}
}

// Advance computes the volume for this step and returns the smoothed value to emit.
// current is the live volume before the step, usually Last().
func (f *Fader) Advance(current, target float64, now time.Time) float64 {
	current = clamp01(current)
	target = clamp01(target)

	if f.state != nil && f.reversed(target) {
		f.state = nil
	}
	if f.state == nil {
		f.begin(current, target, now)
	}

	out := target
	if s := f.state; s != nil {
		out = f.step(s, target, now)
	}

	f.last = clamp01(out)
	f.history.Push(f.last)
	return f.history.Mean()
}

// begin enters Fading on a zero crossing; any other change is taken as-is.
func (f *Fader) begin(current, target float64, now time.Time) {
	var dir Direction
	var d time.Duration
	switch {
	case current <= SilenceEpsilon && target > SilenceEpsilon:
		dir, d = FadeIn, f.fadeIn
	case current > SilenceEpsilon && target <= SilenceEpsilon:
		dir, d = FadeOut, f.fadeOut
	default:
		return
	}
	if d <= 0 {
		return
	}

	f.state = &fadeState{
		direction:   dir,
		start:       now,
		duration:    d,
		startVolume: current,
		target:      target,
		rising:      current < target,
	}
}

func (f *Fader) reversed(target float64) bool {
	switch f.state.direction {
	case FadeIn:
		return target <= SilenceEpsilon
	case FadeOut:
		return target > SilenceEpsilon
	}
	return false
}

func (f *Fader) step(s *fadeState, target float64, now time.Time) float64 {
	progress := math.Min(float64(now.Sub(s.start))/float64(s.duration), 1)
	if progress < 0 {
		progress = 0
	}

	eased := EaseInOut(progress)
	if s.direction == FadeOut {
		eased = EaseOutSteep(progress)
	}

	stable := target == s.target
	s.target = target
	out := s.startVolume + (target-s.startVolume)*eased

	overshot := (s.rising && out > target) || (!s.rising && out < target)
	dist := math.Abs(out - target)
	if progress >= 1 || dist < arriveTolerance || overshot || (stable && dist < stableTolerance) {
		f.state = nil
		return target
	}
	return out
}

// Last returns the most recent unsmoothed volume.
func (f *Fader) Last() float64 { return f.last }

// Emitted returns the current smoothed volume without advancing.
func (f *Fader) Emitted() float64 { return f.history.Mean() }

// Fading reports the direction of the in-flight fade, FadeNone when idle.
func (f *Fader) Fading() Direction {
	if f.state == nil {
		return FadeNone
	}
	return f.state.direction
}

// Reset cancels any fade and clears the history to silence.
func (f *Fader) Reset() {
	f.state = nil
	f.last = 0
	f.history.Reset()
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
