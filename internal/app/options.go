package service

import (
	"context"

	repository "github.com/okian/gradeboard/internal/adapters/repository"
	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/logger"
)

// StudentSource looks up a student's history on the grading backend.
type StudentSource interface {
	GetStudent(ctx context.Context, id model.ID) (model.Student, error)
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the submission id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache sets the local store. The service owns it and closes it on Stop.
// Without one an in-memory store is created on Start.
func WithCache(store repository.Store) Option {
	return func(s *Service) {
		s.cache = store
	}
}

// WithSource sets the grading backend. Without one reads are served from
// the cache only and uploads are rejected.
func WithSource(src repository.Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithStudents sets where student histories are read from.
func WithStudents(src StudentSource) Option {
	return func(s *Service) {
		s.students = src
	}
}
