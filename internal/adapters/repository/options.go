package repository

import (
	"time"

	"github.com/okian/gradeboard/pkg/logger"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// TieredOption applies a configuration option to the Tiered repository.
type TieredOption func(*Tiered)

// WithLogger sets the logger used for cache write failures.
func WithLogger(l logger.Logger) TieredOption {
	return func(t *Tiered) {
		if l != nil {
			t.log = l
		}
	}
}
