package api

import (
	"net/http"

	"github.com/seantiz/groundstate/internal/registry"
)

// handleListComponents lists registered components, optionally filtered by
// ?kind=.
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	infos := s.engine.Registry().List()

	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := registry.ParseKind(k)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filtered := infos[:0]
		for _, info := range infos {
			if info.Kind == kind {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}

	s.writeJSON(w, http.StatusOK, infos)
}
