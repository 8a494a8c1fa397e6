package api

import (
	"net/http"
)

type healthResponse struct {
	Status     string `json:"status"`
	Components int    `json:"components"`
}

// handleHealthz reports ok once the component registry is frozen.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	reg := s.engine.Registry()
	if !reg.Frozen() {
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Components: len(reg.List())})
}
