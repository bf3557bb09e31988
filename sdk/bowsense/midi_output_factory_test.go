package bowsense

import (
	"errors"
	"runtime"
	"testing"

	"github.com/leandrodaf/bowsense/internal/logger"
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// TestNewMIDIOutputUnsupportedOS verifies platforms without an initializer are rejected
func TestNewMIDIOutputUnsupportedOS(t *testing.T) {
	if _, ok := outputInitializers[runtime.GOOS]; ok {
		t.Skipf("%s has a MIDI output", runtime.GOOS)
	}

	out, err := NewMIDIOutput(contracts.WithLogger(logger.NewNopLogger()))
	if !errors.Is(err, ErrUnsupportedOS) {
		t.Errorf("Expected ErrUnsupportedOS, got %v", err)
	}
	if out != nil {
		t.Errorf("Expected no output, got %T", out)
	}
}
