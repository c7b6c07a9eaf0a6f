package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	model "github.com/okian/gradeboard/internal/domain/model"
)

// handleNormalize handles POST /normalize. The body is a criterion score
// object; its key order is kept in the response.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var scores model.CriterionScores
	if err := json.NewDecoder(r.Body).Decode(&scores); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Normalize(r.Context(), scores))
}

// handleStatus handles GET /status?mark=.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	mark := r.URL.Query().Get("mark")
	if strings.TrimSpace(mark) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Errorf("%w: missing mark", ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.ClassifyMark(mark))
}
