package worker

import (
	"context"
	"sync/atomic"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// FailureHandler is told about a submission that could not be normalized
// or stored.
type FailureHandler func(ctx context.Context, s model.Submission, err error)

// WithFailureHandler registers fn for failed submissions. The service uses it
// to forget the submission id so the client may resubmit.
func WithFailureHandler(fn FailureHandler) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onFailure = fn
		}
	}
}

// withCounters makes the worker report into counters shared by a pool.
func withCounters(processed, failed *atomic.Int64) Option {
	return func(w *InMemoryWorker) {
		w.processed = processed
		w.failed = failed
	}
}
