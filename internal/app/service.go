// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	queue "github.com/okian/gradeboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/gradeboard/internal/adapters/mq/worker"
	repository "github.com/okian/gradeboard/internal/adapters/repository"
	"github.com/okian/gradeboard/internal/domain/dedupe"
	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/internal/domain/progress"
	"github.com/okian/gradeboard/internal/domain/report"
	"github.com/okian/gradeboard/internal/domain/scoring"
	"github.com/okian/gradeboard/internal/domain/types"
	"github.com/okian/gradeboard/pkg/logger"
	"github.com/okian/gradeboard/pkg/metrics"
)

// Service implements the API dependencies for gradeboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	cache      repository.Store
	source     repository.Source
	students   StudentSource
	tiered     *repository.Tiered
	deduper    dedupe.Deduper
	queue      queue.Queue
	normalizer *scoring.Normalizer
	workerPool *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int

	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 4,
		queueSize:   10_000,
		dedupeSize:  50_000,
		normalizer:  scoring.NewNormalizer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// The deduper is usable before Start so handlers never see a nil one.
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting gradeboard service...")

	if s.cache == nil {
		s.cache = repository.NewMemoryStore(ctx)
		s.logger.Info(ctx, "using in-memory cache")
	}
	s.tiered = repository.NewTiered(s.source, s.cache)
	if s.source == nil {
		s.logger.Warn(ctx, "no grading backend configured, serving cache only")
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.queue = q
	s.workerPool = workerpool.NewPool(s.workerCount, q, s.normalizer, s.cache,
		workerpool.WithFailureHandler(s.forgetFailed))
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "gradeboard service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the queue, waits for the workers and closes the cache.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping gradeboard service...")

	var errs []error
	if err := s.workerPool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "gradeboard service stopped")
	return errors.Join(errs...)
}

// SeenAndRecord atomically checks if a submission id was seen and records
// it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordResultDuplicate()
	}
	return seen
}

// Unrecord removes a submission id so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// forgetFailed drops a submission the workers could not store from the
// deduper, so a resubmission is accepted instead of reported as duplicate.
func (s *Service) forgetFailed(ctx context.Context, sub model.Submission, _ error) { //nolint:gocritic // hugeParam
	s.deduper.Unrecord(ctx, sub.SubmissionID)
}

// Size returns the current number of ids in the deduper.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Enqueue submits a graded result for asynchronous normalization.
func (s *Service) Enqueue(ctx context.Context, sub model.Submission) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if err := q.Enqueue(ctx, sub); err != nil {
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			return fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return err
	}
	metrics.RecordResultIngested()
	s.logger.Debug(ctx, "submission queued",
		logger.String("submission_id", sub.SubmissionID),
		logger.String("assessment_id", sub.AssessmentID.String()),
	)
	return nil
}

// Normalize evaluates scores without storing anything.
func (s *Service) Normalize(_ context.Context, scores model.CriterionScores) scoring.Breakdown {
	for _, cs := range scores {
		metrics.RecordNormalization(cs.Score.Kind.String())
	}
	return scoring.Explain(scores)
}

// ClassifyMark returns the status and numeric value of mark.
func (s *Service) ClassifyMark(mark string) scoring.Classification {
	return scoring.Classify(mark)
}

func (s *Service) repo() (*repository.Tiered, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.tiered, nil
}

// Assessments lists assessments and reports which tier served them.
func (s *Service) Assessments(ctx context.Context) ([]model.Assessment, repository.DataSource, error) {
	repo, err := s.repo()
	if err != nil {
		return nil, "", err
	}
	return repo.List(ctx)
}

// Assessment returns a single assessment.
func (s *Service) Assessment(ctx context.Context, id model.ID) (model.Assessment, repository.DataSource, error) {
	repo, err := s.repo()
	if err != nil {
		return model.Assessment{}, "", err
	}
	return repo.Get(ctx, id)
}

// Report builds the per-student report of an assessment.
func (s *Service) Report(ctx context.Context, id model.ID) (report.Report, repository.DataSource, error) {
	a, src, err := s.Assessment(ctx, id)
	if err != nil {
		return report.Report{}, "", err
	}
	return report.Build(a), src, nil
}

// Summary counts the students of an assessment per status.
func (s *Service) Summary(ctx context.Context, id model.ID) (types.StatusCounts, error) {
	a, _, err := s.Assessment(ctx, id)
	if err != nil {
		return nil, err
	}
	return report.Summarize(a), nil
}

// Upload sends a CSV of repositories to the grading backend.
func (s *Service) Upload(ctx context.Context, up repository.Upload) (model.Assessment, error) {
	repo, err := s.repo()
	if err != nil {
		return model.Assessment{}, err
	}
	return repo.Upload(ctx, up)
}

// Progress returns a student's history across assessments.
func (s *Service) Progress(ctx context.Context, id model.ID) (progress.Progress, error) {
	if s.students == nil {
		return progress.Progress{}, fmt.Errorf("%w: %w", repository.ErrUnavailable, ErrNoStudents)
	}
	st, err := s.students.GetStudent(ctx, id)
	if err != nil {
		return progress.Progress{}, err
	}
	return progress.Build(st), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"seenIds":     s.deduper.Size(),
		"backend":     s.source != nil,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		cached := s.cache.Count(ctx)

		stats["queueLength"] = queueLen
		stats["cachedAssessments"] = cached
		stats["processed"] = s.workerPool.Processed()
		stats["failed"] = s.workerPool.Failed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateCachedAssessments(cached)
	}

	return stats
}
