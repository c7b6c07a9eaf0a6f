package loadtest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/gradeboard/internal/adapters/http/api"
	app "github.com/okian/gradeboard/internal/app"
	"github.com/okian/gradeboard/internal/loadtest"
	"github.com/okian/gradeboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// newGradeboard starts a real service behind the API router.
func newGradeboard(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc := app.New(app.WithWorkerCount(4), app.WithQueueSize(1000))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc, svc, api.WithIngestSecret(secret)).Router(ctx))
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return srv
}

func TestGenerate(t *testing.T) {
	Convey("Given a small run", t, func() {
		cfg := loadtest.Config{Students: 7, Assessments: 3, RunID: "run1"}
		subs := loadtest.Generate(context.Background(), cfg)

		Convey("Then every student should appear once per assessment", func() {
			So(subs, ShouldHaveLength, 21)
			ids := map[string]bool{}
			perAssessment := map[string]map[string]bool{}
			for _, s := range subs {
				ids[s.SubmissionID] = true
				a := s.AssessmentID.String()
				if perAssessment[a] == nil {
					perAssessment[a] = map[string]bool{}
				}
				perAssessment[a][s.Student.ID.String()] = true
				So(len(s.Scores), ShouldBeGreaterThanOrEqualTo, 4)
				So(s.Student.Name, ShouldNotBeEmpty)
			}
			So(ids, ShouldHaveLength, 21)
			So(perAssessment, ShouldHaveLength, 3)
			So(perAssessment[loadtest.AssessmentID("run1", 0).String()], ShouldHaveLength, 7)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running gradeboard", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		Convey("When simulating without auth", func() {
			srv := newGradeboard(t, "")
			stats, err := loadtest.Run(ctx, loadtest.Config{
				BaseURL:      srv.URL,
				Students:     20,
				Assessments:  2,
				Workers:      4,
				Settle:       10 * time.Second,
				PollInterval: 20 * time.Millisecond,
			})

			Convey("Then every summary should be verified", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 40)
				So(stats.Accepted, ShouldEqual, 40)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Verified, ShouldEqual, 2)
				So(stats.SuccessRate(), ShouldEqual, 100)
			})
		})

		Convey("When the ingest endpoint requires a token", func() {
			srv := newGradeboard(t, "s3cret")

			Convey("Then a matching secret should pass", func() {
				stats, err := loadtest.Run(ctx, loadtest.Config{
					BaseURL: srv.URL, Students: 5, Assessments: 1, Workers: 2,
					Settle: 10 * time.Second, PollInterval: 20 * time.Millisecond,
					Secret: "s3cret",
				})
				So(err, ShouldBeNil)
				So(stats.Accepted, ShouldEqual, 5)
			})

			Convey("Then a wrong secret should fail every post and never settle", func() {
				stats, err := loadtest.Run(ctx, loadtest.Config{
					BaseURL: srv.URL, Students: 3, Assessments: 1, Workers: 2,
					Settle: 100 * time.Millisecond, PollInterval: 20 * time.Millisecond,
					Secret: "wrong",
				})
				So(errors.Is(err, loadtest.ErrIncomplete), ShouldBeTrue)
				So(stats.Failed, ShouldEqual, 3)
				So(stats.Incomplete, ShouldEqual, 1)
			})
		})

		Convey("When the service is unhealthy", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()
			_, err := loadtest.Run(ctx, loadtest.Config{BaseURL: srv.URL})

			Convey("Then the run should stop before submitting", func() {
				So(errors.Is(err, loadtest.ErrUnhealthy), ShouldBeTrue)
			})
		})
	})
}

func TestClientReport(t *testing.T) {
	Convey("Given a client", t, func() {
		Convey("Then an invalid base url should be rejected", func() {
			_, err := loadtest.NewClient("not a url", time.Second, "")
			So(err, ShouldNotBeNil)
		})

		Convey("Then a missing report should surface the status", func() {
			srv := newGradeboard(t, "")
			c, err := loadtest.NewClient(srv.URL, time.Second, "")
			So(err, ShouldBeNil)
			_, err = c.Report(context.Background(), "nope", "markdown")
			So(errors.Is(err, loadtest.ErrUnexpectedStatus), ShouldBeTrue)
		})
	})
}
