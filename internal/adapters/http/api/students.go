package api

import "net/http"

// handleProgress handles GET /students/{id}/progress.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Progress(r.Context(), pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
