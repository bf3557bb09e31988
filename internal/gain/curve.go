// Package gain maps motion speed to a target gain and ramps the emitted
// volume towards it.
package gain

import "math"

// PauseFloor is the fraction of max gain below which playback should pause.
const PauseFloor = 0.05

// Normalize scales a motion speed by maxSpeed and clamps the result to [0,1].
func Normalize(speed, maxSpeed float64) float64 {
	if !(maxSpeed > 0) || math.IsNaN(speed) || speed <= 0 {
		return 0
	}
	return math.Min(speed/maxSpeed, 1)
}

// TargetGain returns the gain a normalized speed should produce. At or
// above threshold the gain saturates at maxGain; below it the gain follows
// an eased ramp and shouldPlay turns false under PauseFloor of maxGain.
// A zero threshold is always exceeded.
func TargetGain(normalized, threshold, maxGain float64) (target float64, shouldPlay bool) {
	if normalized >= threshold {
		return maxGain, true
	}

	progress := math.Min(normalized/threshold, 1)
	target = EaseInOut(progress) * maxGain
	return target, target >= PauseFloor*maxGain
}

// EaseInOut is the symmetric quadratic ease: 2p² for p<0.5, else 1-2(1-p)².
func EaseInOut(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	q := 1 - p
	return 1 - 2*q*q
}

// EaseOutSteep is 1-(1-p)^20, dropping almost all of the way in the first few percent.
func EaseOutSteep(p float64) float64 {
	return 1 - math.Pow(1-p, 20)
}
