package motion

import (
	"github.com/leandrodaf/bowsense/internal/ring"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// DirectionThreshold is how far ax must move from zero to register a bow direction.
const DirectionThreshold = 0.2

// Smoother averages motion magnitudes over a fixed window and tracks the
// bow direction with hysteresis. It is not safe for concurrent use.
type Smoother struct {
	window  *ring.Window
	lastDir contracts.BowDirection
}

// NewSmoother returns a smoother averaging the last size magnitudes.
func NewSmoother(size int) *Smoother {
	return &Smoother{window: ring.New(size)}
}

// Observe folds sample into the window and returns the motion speed (window
// mean) and the bow direction. changed is true exactly when the direction
// flipped between Up and Down.
func (s *Smoother) Observe(sample contracts.MotionSample) (speed float64, dir contracts.BowDirection, changed bool) {
	s.window.Push(sample.Magnitude())
	speed = s.window.Mean()

	switch {
	case sample.AX > DirectionThreshold:
		dir = contracts.DirectionUp
	case sample.AX < -DirectionThreshold:
		dir = contracts.DirectionDown
	default:
		dir = s.lastDir
	}

	if dir != contracts.DirectionUnknown {
		changed = s.lastDir != contracts.DirectionUnknown && dir != s.lastDir
		s.lastDir = dir
	}
	return speed, dir, changed
}

// Direction returns the last known bow direction.
func (s *Smoother) Direction() contracts.BowDirection { return s.lastDir }

// Len returns how many magnitudes the window currently holds.
func (s *Smoother) Len() int { return s.window.Len() }

// Reset clears the window and forgets the direction.
func (s *Smoother) Reset() {
	s.window.Reset()
	s.lastDir = contracts.DirectionUnknown
}
