package service_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/gradeboard/internal/app"
	grader "github.com/okian/gradeboard/internal/adapters/grader"
	"github.com/okian/gradeboard/internal/adapters/repository"
	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/internal/domain/progress"
	"github.com/okian/gradeboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// flakyBackend serves one assessment and one student until it is taken down.
func flakyBackend(down *atomic.Bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/assessments", func(w http.ResponseWriter, _ *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"success": true, "assessments": [
			{"id": "remote-1", "name": "Remote", "date": "2024-05-01T09:00:00",
			 "results": [{"name": "Bob", "scores": {"Correctness": {"mark": "Fully correct"}}}]}
		]}`)
	})
	mux.HandleFunc("/api/assessments/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case down.Load():
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.URL.Path == "/api/assessments/remote-1":
			_, _ = io.WriteString(w, `{"success": true, "assessment": {"id": "remote-1", "name": "Remote", "results": []}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"success": false, "message": "Assessment not found"}`)
		}
	})
	mux.HandleFunc("/api/students/7", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "student": {"id": 7, "name": "Ada", "assessments": [
			{"assessment_name": "Week 1", "created_at": "2024-01-01T00:00:00", "scores": {"Style": 60}},
			{"assessment_name": "Week 2", "created_at": "2024-02-01T00:00:00", "scores": {"Style": 72.5}}
		]}}`)
	})
	return httptest.NewServer(mux)
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by a grading backend and a memory cache", t, func() {
		var down atomic.Bool
		backend := flakyBackend(&down)
		defer backend.Close()

		client, err := grader.New(backend.URL, grader.WithTimeout(time.Second))
		So(err, ShouldBeNil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cache := repository.NewMemoryStore(ctx)
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithCache(cache),
			service.WithSource(client),
			service.WithStudents(client),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When submissions are enqueued while the backend is down", func() {
			down.Store(true)
			subs := []model.Submission{
				submission("s-1", "a-1", "Ada", map[string]model.Score{
					"Correctness": model.Structured(model.TextMark("Excellent"), ""),
					"Style":       model.Numeric(90),
				}),
				submission("s-2", "a-1", "Cy", map[string]model.Score{
					"Style": model.Numeric(65),
				}),
			}
			for _, s := range subs {
				So(svc.SeenAndRecord(ctx, s.SubmissionID), ShouldBeFalse)
				So(svc.Enqueue(ctx, s), ShouldBeNil)
			}

			stored := waitUntil(func() bool {
				a, err := cache.Get(ctx, "a-1")
				return err == nil && len(a.Results) == 2
			})
			So(stored, ShouldBeTrue)

			Convey("Then the cached results should carry averages and student ids", func() {
				a, err := cache.Get(ctx, "a-1")
				So(err, ShouldBeNil)
				So(a.Name, ShouldEqual, "Assessment a-1")
				for _, r := range a.Results {
					So(r.StudentID, ShouldNotBeEmpty)
					So(r.Average, ShouldNotBeNil)
				}
			})

			Convey("And a resubmission should replace the student's result", func() {
				again := submission("s-3", "a-1", "ada", map[string]model.Score{
					"Correctness": model.Structured(model.TextMark("Incorrect"), ""),
				})
				So(svc.Enqueue(ctx, again), ShouldBeNil)

				replaced := waitUntil(func() bool {
					sum, err := svc.Summary(ctx, "a-1")
					return err == nil && sum[types.StatusUnsatisfactory] == 1
				})
				So(replaced, ShouldBeTrue)
				a, _ := cache.Get(ctx, "a-1")
				So(len(a.Results), ShouldEqual, 2)
			})

			Convey("And the report should be served from the cache", func() {
				list, src, err := svc.Assessments(ctx)
				So(err, ShouldBeNil)
				So(src, ShouldEqual, repository.FromCache)
				So(len(list), ShouldEqual, 1)

				rep, src, err := svc.Report(ctx, "a-1")
				So(err, ShouldBeNil)
				So(src, ShouldEqual, repository.FromCache)
				So(len(rep.Students), ShouldEqual, 2)
				statuses := map[string]types.Status{}
				for _, st := range rep.Students {
					statuses[st.Name] = st.Status
				}
				So(statuses["Ada"], ShouldEqual, types.StatusExcellent)
				So(statuses["Cy"], ShouldEqual, types.StatusNeedsImprovement)
				So(rep.Counts[types.StatusExcellent], ShouldEqual, 1)
			})
		})

		Convey("When an assessment is unknown to the backend", func() {
			_, _, err := svc.Assessment(ctx, "missing")

			Convey("Then not-found should be final", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the backend is up", func() {
			list, src, err := svc.Assessments(ctx)

			Convey("Then the remote list should be served and written through", func() {
				So(err, ShouldBeNil)
				So(src, ShouldEqual, repository.FromRemote)
				So(len(list), ShouldEqual, 1)

				cached, err := cache.Get(ctx, "remote-1")
				So(err, ShouldBeNil)
				So(cached.Name, ShouldEqual, "Remote")
			})
		})

		Convey("When asking for a student's progress", func() {
			p, err := svc.Progress(ctx, "7")

			Convey("Then the trend should be computed from the backend history", func() {
				So(err, ShouldBeNil)
				So(p.Attempts, ShouldEqual, 2)
				So(p.LatestName, ShouldEqual, "Week 2")
				So(len(p.Criteria), ShouldEqual, 1)
				So(p.Criteria[0].Trend, ShouldNotBeNil)
				So(p.Criteria[0].Trend.Direction, ShouldEqual, progress.Improved)
				So(p.Criteria[0].Trend.Message, ShouldEqual, "Improved by 12.5 points")
			})
		})
	})
}
