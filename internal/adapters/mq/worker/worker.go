// Package worker normalizes queued submissions and stores the results.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	model "github.com/okian/gradeboard/internal/domain/model"
	scoring "github.com/okian/gradeboard/internal/domain/scoring"
	"github.com/okian/gradeboard/pkg/logger"
	"github.com/okian/gradeboard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// studentNamespace derives stable ids for students the backend sent without one.
var studentNamespace = uuid.MustParse("6f1d7a52-3f0e-5b8e-9c51-2a7de4b0c9a1")

// Updater stores a normalized result.
type Updater interface {
	UpsertResult(ctx context.Context, id model.ID, name string, r model.StudentResult) (model.Assessment, error)
}

// Scorer normalizes a submission.
type Scorer interface {
	Score(ctx context.Context, in model.Submission) (scoring.Result, error)
}

// Queue defines how workers receive submissions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Submission
}

// Worker processes submissions using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after it drains what is already buffered.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing submissions.
type InMemoryWorker struct {
	queue   Queue
	scorer  Scorer
	updater Updater
	name    string

	processed *atomic.Int64
	failed    *atomic.Int64
	onFailure FailureHandler

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, scorer Scorer, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		scorer:    scorer,
		updater:   updater,
		name:      "worker",
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, items)
			return
		case s, ok := <-items:
			if !ok {
				return
			}
			w.handle(ctx, s)
		}
	}
}

// drain processes what is buffered without waiting for more.
func (w *InMemoryWorker) drain(ctx context.Context, items <-chan model.Submission) {
	for {
		select {
		case s, ok := <-items:
			if !ok {
				return
			}
			w.handle(ctx, s)
		default:
			return
		}
	}
}

func (w *InMemoryWorker) handle(ctx context.Context, s model.Submission) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	if err := w.process(ctx, s); err != nil {
		w.failed.Add(1)
		w.logger.Error(ctx, "error processing submission",
			logger.String("submission_id", s.SubmissionID),
			logger.Error(err),
		)
		if w.onFailure != nil {
			w.onFailure(ctx, s, err)
		}
		return
	}
	w.processed.Add(1)
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// StudentID returns the id of the submitting student, deriving a stable
// UUIDv5 from the assessment, name and repository when the backend sent none.
func StudentID(s model.Submission) model.ID { //nolint:gocritic // hugeParam
	if s.Student.ID != "" {
		return s.Student.ID
	}
	key := strings.Join([]string{
		s.AssessmentID.String(),
		strings.ToLower(strings.TrimSpace(s.Student.Name)),
		strings.TrimSpace(s.Student.RepoURL),
	}, "\x00")
	return model.ID(uuid.NewSHA1(studentNamespace, []byte(key)).String())
}

// process normalizes and stores a single submission.
func (w *InMemoryWorker) process(ctx context.Context, s model.Submission) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.Student.ID = StudentID(s)

	normStart := time.Now()
	res, err := w.scorer.Score(ctx, s)
	metrics.RecordNormalizationLatency(float64(time.Since(normStart).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "normalize_error")
		return fmt.Errorf("normalize submission %s: %w", s.SubmissionID, err)
	}
	for _, cs := range s.Scores {
		metrics.RecordNormalization(cs.Score.Kind.String())
	}

	name := s.AssessmentName
	if _, err := w.updater.UpsertResult(ctx, s.AssessmentID, name, res.Student); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store submission %s: %w", s.SubmissionID, err)
	}

	metrics.RecordResultStored()
	metrics.RecordStatus(res.Summary.Status.String())
	w.logger.Debug(ctx, "submission stored",
		logger.String("submission_id", s.SubmissionID),
		logger.String("assessment_id", s.AssessmentID.String()),
		logger.String("status", res.Summary.Status.String()),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A count below one uses a multiple of
// the CPU count. opts apply to every worker.
func NewPool(workerCount int, queue Queue, scorer Scorer, updater Updater, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{
			WithName("worker-" + strconv.Itoa(i)),
			withCounters(&p.processed, &p.failed),
		}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, scorer, updater, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of submissions stored so far.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of submissions that could not be stored.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
