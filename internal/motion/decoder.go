// Package motion turns sample lines from the motion sensor into a smoothed
// motion speed and a bow direction.
package motion

import (
	"math"
	"strconv"
	"strings"

	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// FieldCount is the number of comma-separated values a sample line must carry.
const FieldCount = 6

// Decode parses "ax,ay,az,gx,gy,gz". Fields that are not finite numbers
// decode as 0; extra fields are ignored. ok is false when the line has
// fewer than FieldCount fields, in which case the caller keeps its previous sample.
func Decode(line string) (sample contracts.MotionSample, ok bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < FieldCount {
		return contracts.MotionSample{}, false
	}

	var v [FieldCount]float64
	for i := range v {
		v[i] = parseField(parts[i])
	}

	return contracts.MotionSample{
		AX: v[0], AY: v[1], AZ: v[2],
		GX: v[3], GY: v[4], GZ: v[5],
	}, true
}

// DecodeRaw decodes a transport buffer holding one record.
func DecodeRaw(raw contracts.RawSample) (contracts.MotionSample, bool) {
	return Decode(string(raw))
}

func parseField(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
