package ranking

import "github.com/okian/movierank/pkg/logger"

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts bounds how many times a mutation is attempted when the
// stored version moves underneath it.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithHydrationConcurrency bounds parallel movie lookups in TopRanked.
func WithHydrationConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.hydration = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
