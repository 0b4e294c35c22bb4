package service

import "github.com/okian/movierank/pkg/logger"

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCatalog enables catalog search.
func WithCatalog(c CatalogSearcher) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithRanker replaces the default ranking engine.
func WithRanker(r Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// WithTopLimits sets the default and maximum size of a top list.
func WithTopLimits(def, maxLimit int) Option {
	return func(s *Service) {
		if def > 0 && maxLimit >= def {
			s.topLimit = def
			s.maxTopLimit = maxLimit
		}
	}
}

// WithRankAttempts bounds optimistic retries per rank mutation.
func WithRankAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rankAttempts = n
		}
	}
}

// WithHydrationConcurrency bounds parallel movie lookups per top list.
func WithHydrationConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.hydrationConcurrency = n
		}
	}
}
