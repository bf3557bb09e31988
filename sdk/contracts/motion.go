package contracts

import "math"

// RawSample is one complete, newline-trimmed record as delivered by the
// transport layer, for example "0.12,-0.40,9.81,1.5,0.2,-3.0".
type RawSample []byte

// MotionSample is one decoded 6-axis reading. Values are replaced wholesale
// on every accepted line.
type MotionSample struct {
	AX, AY, AZ float64 // Accelerometer axes.
	GX, GY, GZ float64 // Gyroscope axes.
}

// Magnitude returns the weighted motion magnitude 0.7*|gyro| + 0.3*|accel|.
func (s MotionSample) Magnitude() float64 {
	gyro := math.Sqrt(s.GX*s.GX + s.GY*s.GY + s.GZ*s.GZ)
	accel := math.Sqrt(s.AX*s.AX + s.AY*s.AY + s.AZ*s.AZ)
	return 0.7*gyro + 0.3*accel
}

// BowDirection is the hysteretic bowing direction derived from the X accelerometer axis.
type BowDirection int

const (
	// DirectionUnknown means no sample has crossed the direction threshold yet.
	DirectionUnknown BowDirection = iota
	// DirectionUp is reported once ax rises above the threshold.
	DirectionUp
	// DirectionDown is reported once ax falls below the negative threshold.
	DirectionDown
)

func (d BowDirection) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// GainCommand is what the engine emits for every processed sample in
// recording mode: the smoothed volume in [0,1] and the play/pause intent.
type GainCommand struct {
	Volume    float64      // Emitted volume after fade and history smoothing.
	Target    float64      // Target gain from the gain curve, 0 when paused.
	Play      bool         // Whether the sink should be audible.
	Speed     float64      // Normalized motion speed in [0,1].
	Direction BowDirection // Current bow direction.
}

// Mode selects how motion drives audio.
type Mode int

const (
	// ModeRecording modulates the gain of a streamed recording.
	ModeRecording Mode = iota
	// ModeMIDI gates a looping note sequence with motion.
	ModeMIDI
)

func (m Mode) String() string {
	if m == ModeMIDI {
		return "midi"
	}
	return "recording"
}
