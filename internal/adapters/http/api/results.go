package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	model "github.com/okian/gradeboard/internal/domain/model"
	"github.com/okian/gradeboard/pkg/logger"
)

// handlePostResult handles POST /results.
func (s *Server) handlePostResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxResultBytes)
	var sub model.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge,
				fmt.Errorf("%w: body exceeds %d bytes", ErrBadRequest, tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := s.validate.Struct(sub); err != nil {
		writeValidationError(w, err)
		return
	}

	// Idempotency check, mark as seen first.
	if s.deps.SeenAndRecord(ctx, sub.SubmissionID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if err := s.deps.Enqueue(ctx, sub); err != nil {
		// Roll back so the sender can retry.
		s.deps.Unrecord(ctx, sub.SubmissionID)
		s.log.Warn(ctx, "submission rejected",
			logger.String("submission_id", sub.SubmissionID),
			logger.Error(err),
		)
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Namespace()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    codeBadRequest,
		Message: "validation failed",
		Fields:  fields,
	})
}
