package sequencer

import (
	"time"

	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// RealScheduler schedules with time.AfterFunc.
type RealScheduler struct{}

// AfterFunc runs f on its own goroutine after d.
func (RealScheduler) AfterFunc(d time.Duration, f func()) contracts.Timer {
	return time.AfterFunc(d, f)
}
