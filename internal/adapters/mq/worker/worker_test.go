package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/gradeboard/internal/adapters/mq/worker"
	"github.com/okian/gradeboard/internal/domain/dedupe"
	model "github.com/okian/gradeboard/internal/domain/model"
	scoring "github.com/okian/gradeboard/internal/domain/scoring"
	types "github.com/okian/gradeboard/internal/domain/types"
	logging "github.com/okian/gradeboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	items     chan model.Submission
	closeOnce sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{items: make(chan model.Submission, 32)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.Submission { return mq.items }

func (mq *mockQueue) Close() error {
	mq.closeOnce.Do(func() { close(mq.items) })
	return nil
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, model.Submission) (scoring.Result, error) {
	return scoring.Result{}, errors.New("scoring error")
}

type mockUpdater struct {
	mu      sync.Mutex
	results map[model.ID][]model.StudentResult
	names   map[model.ID]string
	err     error
	// failures is the number of upcoming calls that fail before err applies.
	failures int
}

func newMockUpdater() *mockUpdater {
	return &mockUpdater{
		results: make(map[model.ID][]model.StudentResult),
		names:   make(map[model.ID]string),
	}
}

func (m *mockUpdater) UpsertResult(_ context.Context, id model.ID, name string, r model.StudentResult) (model.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return model.Assessment{}, errors.New("transient store error")
	}
	if m.err != nil {
		return model.Assessment{}, m.err
	}
	m.results[id] = append(m.results[id], r)
	m.names[id] = name
	return model.Assessment{ID: id, Name: name, Results: m.results[id]}, nil
}

func (m *mockUpdater) get(id model.ID) []model.StudentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.StudentResult(nil), m.results[id]...)
}

func submission(id, student string) model.Submission {
	var cs model.CriterionScores
	cs.Set("Correctness", model.Structured(model.TextMark("Mostly correct"), ""))
	cs.Set("Style", model.Numeric(4))
	return model.Submission{
		SubmissionID:   id,
		AssessmentID:   "a-1",
		AssessmentName: "Week 1",
		Student:        model.SubmissionStudent{Name: student},
		Scores:         cs,
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		updater := newMockUpdater()
		w := worker.NewInMemoryWorker(q, scoring.NewNormalizer(), updater, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a submission is queued", func() {
			q.items <- submission("sub-1", "Ada")

			convey.Convey("Then the normalized result should be stored", func() {
				convey.So(waitFor(func() bool { return len(updater.get("a-1")) == 1 }), convey.ShouldBeTrue)
				r := updater.get("a-1")[0]
				convey.So(r.Name, convey.ShouldEqual, "Ada")
				convey.So(r.StudentID, convey.ShouldNotBeEmpty)
				convey.So(r.Average, convey.ShouldNotBeNil)
				convey.So(r.Average.Points, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the store fails", func() {
			updater.mu.Lock()
			updater.err = errors.New("store error")
			updater.mu.Unlock()
			q.items <- submission("sub-2", "Bob")
			time.Sleep(30 * time.Millisecond)

			convey.Convey("Then nothing should be stored", func() {
				convey.So(updater.get("a-1"), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When shutting down with buffered submissions", func() {
			q.items <- submission("sub-3", "Cy")
			q.items <- submission("sub-4", "Di")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then the buffer should be drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(updater.get("a-1")), convey.ShouldEqual, 2)
			})
		})
	})

	convey.Convey("Given a worker whose scorer fails", t, func() {
		q := newMockQueue()
		updater := newMockUpdater()
		w := worker.NewInMemoryWorker(q, failingScorer{}, updater)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.items <- submission("sub-5", "Eve")
		time.Sleep(30 * time.Millisecond)

		convey.Convey("Then the result should not be stored", func() {
			convey.So(updater.get("a-1"), convey.ShouldBeEmpty)
		})
	})
}

func TestFailureHandler(t *testing.T) {
	convey.Convey("Given a worker that forgets failed submission ids", t, func() {
		_ = logging.Init()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		seen := dedupe.NewInMemoryDeduper()
		q := newMockQueue()
		updater := newMockUpdater()
		updater.failures = 1

		var mu sync.Mutex
		var failed []string
		w := worker.NewInMemoryWorker(q, scoring.NewNormalizer(), updater,
			worker.WithFailureHandler(func(ctx context.Context, s model.Submission, err error) {
				mu.Lock()
				failed = append(failed, s.SubmissionID)
				mu.Unlock()
				seen.Unrecord(ctx, s.SubmissionID)
			}))
		go w.Run(ctx)

		sub := submission("sub-retry", "Fay")
		convey.So(seen.SeenAndRecord(ctx, sub.SubmissionID), convey.ShouldBeFalse)
		q.items <- sub

		convey.Convey("When the first store fails", func() {
			convey.So(waitFor(func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(failed) == 1
			}), convey.ShouldBeTrue)

			convey.Convey("Then the id should be forgotten and nothing stored", func() {
				convey.So(failed[0], convey.ShouldEqual, "sub-retry")
				convey.So(updater.get("a-1"), convey.ShouldBeEmpty)
				convey.So(seen.Size(), convey.ShouldEqual, 0)
			})

			convey.Convey("And a resubmission should be accepted and stored", func() {
				convey.So(seen.SeenAndRecord(ctx, sub.SubmissionID), convey.ShouldBeFalse)
				q.items <- sub
				convey.So(waitFor(func() bool { return len(updater.get("a-1")) == 1 }), convey.ShouldBeTrue)
				convey.So(updater.get("a-1")[0].Name, convey.ShouldEqual, "Fay")
				convey.So(seen.SeenAndRecord(ctx, sub.SubmissionID), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool with a failure handler and a failing scorer", t, func() {
		q := newMockQueue()
		var mu sync.Mutex
		var failed []string
		pool := worker.NewPool(2, q, failingScorer{}, newMockUpdater(),
			worker.WithFailureHandler(func(_ context.Context, s model.Submission, _ error) {
				mu.Lock()
				failed = append(failed, s.SubmissionID)
				mu.Unlock()
			}))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		q.items <- submission("sub-a", "Ada")
		q.items <- submission("sub-b", "Bob")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		err := pool.Shutdown(shutdownCtx)

		convey.Convey("Then every worker should report its failures", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(pool.Failed(), convey.ShouldEqual, 2)
			mu.Lock()
			defer mu.Unlock()
			convey.So(failed, convey.ShouldHaveLength, 2)
			convey.So(failed, convey.ShouldContain, "sub-a")
			convey.So(failed, convey.ShouldContain, "sub-b")
		})
	})
}

func TestStudentID(t *testing.T) {
	convey.Convey("Given submissions without a student id", t, func() {
		a := submission("1", "Ada Lovelace")
		b := submission("2", " ada lovelace ")
		c := submission("3", "Bob")

		convey.Convey("Then derived ids should be stable per student", func() {
			convey.So(worker.StudentID(a), convey.ShouldEqual, worker.StudentID(b))
			convey.So(worker.StudentID(a), convey.ShouldNotEqual, worker.StudentID(c))
		})

		convey.Convey("And an explicit id should be kept", func() {
			a.Student.ID = "s-42"
			convey.So(worker.StudentID(a), convey.ShouldEqual, model.ID("s-42"))
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		updater := newMockUpdater()
		pool := worker.NewPool(3, q, scoring.NewNormalizer(), updater)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When several submissions are queued and the pool shuts down", func() {
			for _, name := range []string{"Ada", "Bob", "Cy", "Di", "Eve"} {
				q.items <- submission("sub-"+name, name)
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then every submission should be processed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				convey.So(pool.Processed(), convey.ShouldEqual, 5)
				convey.So(pool.Failed(), convey.ShouldEqual, 0)
				convey.So(len(updater.get("a-1")), convey.ShouldEqual, 5)
			})
		})
	})

	convey.Convey("Given a pool with a default worker count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), scoring.NewNormalizer(), newMockUpdater())

		convey.Convey("Then it should size itself from the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestSummaryStatusFlowsThrough(t *testing.T) {
	convey.Convey("Given a normalizer", t, func() {
		res, err := scoring.NewNormalizer().Score(context.Background(), submission("x", "Ada"))

		convey.Convey("Then the main criterion should decide the status", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Summary.Status, convey.ShouldEqual, types.StatusGood)
		})
	})
}
