package grader_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	grader "github.com/okian/gradeboard/internal/adapters/grader"
	"github.com/okian/gradeboard/internal/adapters/repository"
	model "github.com/okian/gradeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/assessments", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "assessments": [
			{"id": 1, "name": "Week 1", "results": [{"name": "Ada", "scores": {"Correctness": {"mark": "Good"}}}]},
			{"id": "2", "name": "Week 2", "results": []}
		]}`)
	})
	mux.HandleFunc("/api/assessments/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "assessment": {"id": 1, "name": "Week 1", "results": []}}`)
	})
	mux.HandleFunc("/api/assessments/404", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success": false, "message": "Assessment not found"}`)
	})
	mux.HandleFunc("/api/assessments/500", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `oops`)
	})
	mux.HandleFunc("/api/assessments/rejected", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": false, "error": "bad id"}`)
	})
	mux.HandleFunc("/api/assessments/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/api/students/7", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "student": {"id": 7, "name": "Ada",
			"assessments": [{"assessment_name": "Week 1", "created_at": "2024-01-01T00:00:00", "scores": {"Style": 4}}]}}`)
	})
	mux.HandleFunc("/api/students", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "students": [{"id": 7, "name": "Ada"}]}`)
	})
	mux.HandleFunc("/api/upload_csv", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("rubric")
		if err != nil {
			http.Error(w, "missing rubric", http.StatusBadRequest)
			return
		}
		rubric, _ := io.ReadAll(f)
		w.Header().Set("X-Rubric", strings.ReplaceAll(string(rubric), "\n", "|"))
		_, _ = io.WriteString(w, `{"success": true, "assessment": {"id": 99, "name": "`+r.FormValue("name")+`", "results": []}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	Convey("Given a client for a fake grading backend", t, func() {
		srv := newBackend(t)
		c, err := grader.New(srv.URL+"/", grader.WithTimeout(200*time.Millisecond))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When listing assessments", func() {
			as, err := c.ListAssessments(ctx)

			Convey("Then mixed id types should be normalized", func() {
				So(err, ShouldBeNil)
				So(len(as), ShouldEqual, 2)
				So(as[0].ID, ShouldEqual, model.ID("1"))
				So(as[1].ID, ShouldEqual, model.ID("2"))
				So(as[0].Results[0].Scores.Names(), ShouldResemble, []string{"Correctness"})
			})
		})

		Convey("When getting a known assessment", func() {
			a, err := c.GetAssessment(ctx, "1")

			Convey("Then it should be returned", func() {
				So(err, ShouldBeNil)
				So(a.Name, ShouldEqual, "Week 1")
			})
		})

		Convey("When the backend answers 404", func() {
			_, err := c.GetAssessment(ctx, "404")

			Convey("Then the error should carry the message and match ErrNotFound", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "Assessment not found")
			})
		})

		Convey("When the backend answers 500 without a body", func() {
			_, err := c.GetAssessment(ctx, "500")

			Convey("Then the status should be reported", func() {
				var apiErr *grader.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.Status, ShouldEqual, http.StatusInternalServerError)
				So(err.Error(), ShouldEqual, "API error: 500")
			})
		})

		Convey("When the backend rejects the request", func() {
			_, err := c.GetAssessment(ctx, "rejected")

			Convey("Then ErrRejected should be returned with the reason", func() {
				So(errors.Is(err, grader.ErrRejected), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "bad id")
			})
		})

		Convey("When the backend is slower than the timeout", func() {
			_, err := c.GetAssessment(ctx, "slow")

			Convey("Then the call should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When fetching students", func() {
			students, err := c.ListStudents(ctx)
			So(err, ShouldBeNil)
			s, err := c.GetStudent(ctx, "7")

			Convey("Then history should decode", func() {
				So(err, ShouldBeNil)
				So(len(students), ShouldEqual, 1)
				So(s.ID, ShouldEqual, model.ID("7"))
				So(len(s.Attempts), ShouldEqual, 1)
			})
		})

		Convey("When uploading a CSV without a rubric", func() {
			a, err := c.UploadCSV(ctx, repository.Upload{
				Name:     "Week 5",
				Filename: "repos.csv",
				File:     strings.NewReader("name,github_url\nAda,https://github.com/ada/w5\n"),
			})

			Convey("Then the default rubric should be sent", func() {
				So(err, ShouldBeNil)
				So(a.ID, ShouldEqual, model.ID("99"))
				So(a.Name, ShouldEqual, "Week 5")
			})
		})

		Convey("When uploading without a file", func() {
			_, err := c.UploadCSV(ctx, repository.Upload{Name: "x"})

			Convey("Then it should fail before any request", func() {
				So(errors.Is(err, grader.ErrMissingFile), ShouldBeTrue)
			})
		})
	})

	Convey("Given an invalid backend URL", t, func() {
		_, err := grader.New("not a url")

		Convey("Then construction should fail", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestClient_DefaultRubric(t *testing.T) {
	Convey("Given a backend that echoes the rubric", t, func() {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseMultipartForm(1 << 20)
			if f, _, err := r.FormFile("rubric"); err == nil {
				b, _ := io.ReadAll(f)
				got = string(b)
			}
			_, _ = io.WriteString(w, `{"success": true}`)
		}))
		defer srv.Close()

		c, err := grader.New(srv.URL)
		So(err, ShouldBeNil)

		Convey("When no rubric is given", func() {
			_, err := c.UploadCSV(context.Background(), repository.Upload{File: strings.NewReader("x")})

			Convey("Then the default rubric lines should be sent", func() {
				So(err, ShouldBeNil)
				So(got, ShouldEqual, grader.DefaultRubric)
			})
		})
	})
}
