package bowsense

import (
	"math"
	"os"
	"strconv"
	"time"

	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvMotionThreshold = "BOWSENSE_MOTION_THRESHOLD"
	EnvMaxGain         = "BOWSENSE_MAX_GAIN"
	EnvSmoothingWindow = "BOWSENSE_SMOOTHING_WINDOW"
	EnvFadeInMs        = "BOWSENSE_FADE_IN_MS"
	EnvFadeOutMs       = "BOWSENSE_FADE_OUT_MS"
	EnvMaxMotionSpeed  = "BOWSENSE_MAX_MOTION_SPEED"
	EnvVolumeHistory   = "BOWSENSE_VOLUME_HISTORY"
	EnvParseTimeoutMs  = "BOWSENSE_PARSE_TIMEOUT_MS"
)

// LoadConfigFromEnv returns DefaultConfig overlaid with BOWSENSE_* variables.
// Unparseable or out-of-range values keep the default; threshold and gain
// are clamped to [0,1].
func LoadConfigFromEnv() contracts.Config {
	cfg := contracts.DefaultConfig()

	if v, ok := envFloat(EnvMotionThreshold); ok {
		cfg.MotionThreshold = clamp01(v)
	}
	if v, ok := envFloat(EnvMaxGain); ok {
		cfg.MaxGain = clamp01(v)
	}
	if v, ok := envInt(EnvSmoothingWindow); ok && v > 0 {
		cfg.SmoothingWindowSize = v
	}
	if v, ok := envInt(EnvFadeInMs); ok && v >= 0 {
		cfg.FadeInDuration = time.Duration(v) * time.Millisecond
	}
	if v, ok := envInt(EnvFadeOutMs); ok && v >= 0 {
		cfg.FadeOutDuration = time.Duration(v) * time.Millisecond
	}
	if v, ok := envFloat(EnvMaxMotionSpeed); ok && v > 0 {
		cfg.MaxMotionSpeed = v
	}
	if v, ok := envInt(EnvVolumeHistory); ok && v > 0 {
		cfg.VolumeHistorySize = v
	}
	if v, ok := envInt(EnvParseTimeoutMs); ok && v > 0 {
		cfg.ParseTimeout = time.Duration(v) * time.Millisecond
	}

	return cfg
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
