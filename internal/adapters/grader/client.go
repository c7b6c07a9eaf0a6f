// Package grader is a client for the external grading backend.
package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/gradeboard/internal/adapters/repository"
	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	// DefaultRubric is sent with uploads that carry no rubric.
	DefaultRubric = "Code Quality\nFunctionality\nBest Practices"
	// error bodies beyond this are not read
	maxErrorBody = 64 << 10
)

// envelope is the response wrapper used by every backend endpoint.
type envelope struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	Error       string             `json:"error"`
	Assessments []model.Assessment `json:"assessments"`
	Assessment  *model.Assessment  `json:"assessment"`
	Students    []model.Student    `json:"students"`
	Student     *model.Student     `json:"student"`
}

func (e envelope) reason() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Client talks to the grading backend over HTTP.
type Client struct {
	base          *url.URL
	http          *http.Client
	timeout       time.Duration
	defaultRubric string
}

var _ repository.Source = (*Client)(nil)

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse grader url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("grader url must be absolute: %q", baseURL)
	}
	c := &Client{
		base:          u,
		http:          &http.Client{},
		timeout:       defaultTimeout,
		defaultRubric: DefaultRubric,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.String() + "/api/" + strings.Join(escaped, "/")
}

// do sends req and decodes the envelope, recording the outcome under op.
func (c *Client) do(ctx context.Context, op string, req *http.Request) (env envelope, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RecordBackendRequest(op, outcome, float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body envelope
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body)
		return envelope{}, &APIError{Status: resp.StatusCode, Message: body.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if !env.Success {
		return envelope{}, fmt.Errorf("%w: %s", ErrRejected, env.reason())
	}
	return env, nil
}

func (c *Client) get(ctx context.Context, op string, parts ...string) (envelope, error) {
	req, err := http.NewRequest(http.MethodGet, c.endpoint(parts...), nil)
	if err != nil {
		return envelope{}, fmt.Errorf("%s: create request: %w", op, err)
	}
	return c.do(ctx, op, req)
}

// ListAssessments returns every assessment known to the backend.
func (c *Client) ListAssessments(ctx context.Context) ([]model.Assessment, error) {
	env, err := c.get(ctx, "list_assessments", "assessments")
	if err != nil {
		return nil, err
	}
	if env.Assessments == nil {
		return nil, fmt.Errorf("%w: response has no assessments", ErrRejected)
	}
	return env.Assessments, nil
}

// GetAssessment returns one assessment.
func (c *Client) GetAssessment(ctx context.Context, id model.ID) (model.Assessment, error) {
	env, err := c.get(ctx, "get_assessment", "assessments", id.String())
	if err != nil {
		return model.Assessment{}, err
	}
	if env.Assessment == nil {
		return model.Assessment{}, repository.ErrNotFound
	}
	return *env.Assessment, nil
}

// ListStudents returns every tracked student.
func (c *Client) ListStudents(ctx context.Context) ([]model.Student, error) {
	env, err := c.get(ctx, "list_students", "students")
	if err != nil {
		return nil, err
	}
	return env.Students, nil
}

// GetStudent returns one student with their assessment history.
func (c *Client) GetStudent(ctx context.Context, id model.ID) (model.Student, error) {
	env, err := c.get(ctx, "get_student", "students", id.String())
	if err != nil {
		return model.Student{}, err
	}
	if env.Student == nil {
		return model.Student{}, repository.ErrNotFound
	}
	return *env.Student, nil
}

// UploadCSV submits a CSV of repositories for grading. The rubric is sent
// as a text file part, falling back to the default rubric.
func (c *Client) UploadCSV(ctx context.Context, up repository.Upload) (model.Assessment, error) {
	if up.File == nil {
		return model.Assessment{}, ErrMissingFile
	}
	filename := up.Filename
	if filename == "" {
		filename = "upload.csv"
	}
	rubric, rubricName := up.Rubric, "rubric.txt"
	if strings.TrimSpace(rubric) == "" {
		rubric, rubricName = c.defaultRubric, "default_rubric.txt"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return model.Assessment{}, fmt.Errorf("upload_csv: %w", err)
	}
	if _, err := io.Copy(fw, up.File); err != nil {
		return model.Assessment{}, fmt.Errorf("upload_csv: read file: %w", err)
	}
	if err := mw.WriteField("name", up.Name); err != nil {
		return model.Assessment{}, fmt.Errorf("upload_csv: %w", err)
	}
	rw, err := mw.CreateFormFile("rubric", rubricName)
	if err != nil {
		return model.Assessment{}, fmt.Errorf("upload_csv: %w", err)
	}
	if _, err := io.WriteString(rw, rubric); err != nil {
		return model.Assessment{}, fmt.Errorf("upload_csv: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.Assessment{}, fmt.Errorf("upload_csv: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint("upload_csv"), &buf)
	if err != nil {
		return model.Assessment{}, fmt.Errorf("upload_csv: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	env, err := c.do(ctx, "upload_csv", req)
	if err != nil {
		return model.Assessment{}, err
	}
	if env.Assessment == nil {
		return model.Assessment{}, nil
	}
	return *env.Assessment, nil
}
