package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the tuning options recognized by the engine.
type Config struct {
	MotionThreshold     float64       // Sensitivity in [0,1]; normalized speed at which gain saturates.
	MaxGain             float64       // Ceiling of the emitted gain, in [0,1].
	SmoothingWindowSize int           // Number of motion magnitudes averaged into the motion speed.
	FadeInDuration      time.Duration // Ramp length when audio rises from silence.
	FadeOutDuration     time.Duration // Ramp length when audio falls to silence.
	MaxMotionSpeed      float64       // Magnitude that maps to a normalized speed of 1.
	VolumeHistorySize   int           // Number of post-fade volumes averaged into the emitted gain.
	ParseTimeout        time.Duration // Wall-clock budget for decoding a MIDI file.
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		MotionThreshold:     0.15,
		MaxGain:             1.0,
		SmoothingWindowSize: 5,
		FadeInDuration:      500 * time.Millisecond,
		FadeOutDuration:     30 * time.Millisecond,
		MaxMotionSpeed:      250.0,
		VolumeHistorySize:   5,
		ParseTimeout:        10 * time.Second,
	}
}

// Validate reports the first option that is out of range.
func (c Config) Validate() error {
	switch {
	case c.MotionThreshold < 0 || c.MotionThreshold > 1:
		return fmt.Errorf("%w: motion threshold %v outside [0,1]", ErrInvalidConfig, c.MotionThreshold)
	case c.MaxGain < 0 || c.MaxGain > 1:
		return fmt.Errorf("%w: max gain %v outside [0,1]", ErrInvalidConfig, c.MaxGain)
	case c.SmoothingWindowSize < 1:
		return fmt.Errorf("%w: smoothing window size %d", ErrInvalidConfig, c.SmoothingWindowSize)
	case c.VolumeHistorySize < 1:
		return fmt.Errorf("%w: volume history size %d", ErrInvalidConfig, c.VolumeHistorySize)
	case c.FadeInDuration < 0 || c.FadeOutDuration < 0:
		return fmt.Errorf("%w: negative fade duration", ErrInvalidConfig)
	case !(c.MaxMotionSpeed > 0):
		return fmt.Errorf("%w: max motion speed %v", ErrInvalidConfig, c.MaxMotionSpeed)
	case c.ParseTimeout <= 0:
		return fmt.Errorf("%w: parse timeout %v", ErrInvalidConfig, c.ParseTimeout)
	}
	return nil
}
