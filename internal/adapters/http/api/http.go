// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	repository "github.com/okian/gradeboard/internal/adapters/repository"
	"github.com/okian/gradeboard/internal/domain/dedupe"
	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/internal/domain/progress"
	"github.com/okian/gradeboard/internal/domain/report"
	"github.com/okian/gradeboard/internal/domain/scoring"
	"github.com/okian/gradeboard/internal/domain/types"
	"github.com/okian/gradeboard/pkg/logger"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultMaxResultBytes = 1 << 20
	requestTimeout        = 60 * time.Second
	dataSourceHeader      = "X-Data-Source"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a submission for async processing.
	Enqueue(ctx context.Context, sub model.Submission) error

	Normalize(ctx context.Context, scores model.CriterionScores) scoring.Breakdown
	ClassifyMark(mark string) scoring.Classification

	// Read operations go through the tiered repository.
	Assessments(ctx context.Context) ([]model.Assessment, repository.DataSource, error)
	Assessment(ctx context.Context, id model.ID) (model.Assessment, repository.DataSource, error)
	Report(ctx context.Context, id model.ID) (report.Report, repository.DataSource, error)
	Summary(ctx context.Context, id model.ID) (types.StatusCounts, error)
	Upload(ctx context.Context, up repository.Upload) (model.Assessment, error)
	Progress(ctx context.Context, id model.ID) (progress.Progress, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	stats    StatsProvider
	validate *validator.Validate
	auth     *tokenVerifier

	origins        []string
	maxUploadBytes int64
	maxResultBytes int64
	log            logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		stats:          stats,
		validate:       newValidator(),
		origins:        []string{"*"},
		maxUploadBytes: defaultMaxUploadBytes,
		maxResultBytes: defaultMaxResultBytes,
		log:            logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newValidator reports field errors by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Router builds the chi router with every route and middleware attached.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{dataSourceHeader},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)
	s.Register(ctx, r)
	return r
}

// Register attaches all business routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/status", s.handleStatus)
	r.Post("/normalize", s.handleNormalize)

	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.middleware)
		}
		r.Post("/results", s.handlePostResult)
	})

	r.Route("/assessments", func(r chi.Router) {
		r.Get("/", s.handleListAssessments)
		r.Post("/upload", s.handleUpload)
		r.Get("/{id}", s.handleGetAssessment)
		r.Get("/{id}/report", s.handleReport)
		r.Get("/{id}/summary", s.handleSummary)
	})
	r.Get("/students/{id}/progress", s.handleProgress)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func pathID(r *http.Request) model.ID {
	return model.ID(strings.TrimSpace(chi.URLParam(r, "id")))
}
