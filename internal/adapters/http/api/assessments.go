package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	repository "github.com/okian/gradeboard/internal/adapters/repository"
)

func setSource(w http.ResponseWriter, src repository.DataSource) {
	if src != "" {
		w.Header().Set(dataSourceHeader, string(src))
	}
}

// handleListAssessments handles GET /assessments.
func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	list, src, err := s.deps.Assessments(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setSource(w, src)
	writeJSON(w, http.StatusOK, list)
}

// handleGetAssessment handles GET /assessments/{id}.
func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	a, src, err := s.deps.Assessment(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setSource(w, src)
	writeJSON(w, http.StatusOK, a)
}

// handleReport handles GET /assessments/{id}/report. With format=markdown
// the narrative reports are returned as a single document.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, src, err := s.deps.Report(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setSource(w, src)

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, rep.Markdown())
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: unknown format", ErrBadRequest))
	}
}

// handleSummary handles GET /assessments/{id}/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Summary(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessment_id": pathID(r),
		"total":         counts.Total(),
		"counts":        counts,
	})
}

// handleUpload handles POST /assessments/upload. The rubric may be sent as
// a text field or as a file part.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: missing file", ErrBadRequest))
		return
	}
	defer func() { _ = file.Close() }()

	rubric, err := formRubric(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	a, err := s.deps.Upload(r.Context(), repository.Upload{
		Name:     name,
		Rubric:   rubric,
		Filename: hdr.Filename,
		File:     file,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func formRubric(r *http.Request) (string, error) {
	if v := r.FormValue("rubric"); v != "" {
		return v, nil
	}
	f, _, err := r.FormFile("rubric")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer func(f multipart.File) { _ = f.Close() }(f)
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
