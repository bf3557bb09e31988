package bowsense

import (
	"github.com/leandrodaf/bowsense/sdk/contracts"
)

// NewEngine creates a motion-to-audio engine session with the specified options.
// It applies default options and initializes the engine.
//
// opts ...contracts.Option: A variadic list of option functions to customize the engine configuration.
//
// Returns:
//   - *Engine: An engine ready to receive sample lines.
//   - error: An error, if the configuration is invalid or a default collaborator could not be created.
func NewEngine(opts ...contracts.Option) (*Engine, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	return newEngine(&options), nil
}
