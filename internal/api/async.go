package api

import (
	"errors"
	"net/http"

	"github.com/seantiz/groundstate/internal/engine"
	"github.com/seantiz/groundstate/internal/resolve"
)

// handleAsyncRun validates the configuration up front, then hands the run to
// the engine and returns 202 with the pending record.
func (s *Server) handleAsyncRun(w http.ResponseWriter, r *http.Request) {
	cfg, op, ok := s.decodeRunRequest(w, r)
	if !ok {
		return
	}

	// Resolution is cheap and catches configuration errors before a run is
	// recorded. Construction errors still surface on the run itself.
	if _, err := resolve.Resolve(s.engine.Registry(), cfg); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	run, err := s.engine.Submit(r.Context(), cfg, op)
	if errors.Is(err, engine.ErrNoStore) {
		s.writeError(w, http.StatusServiceUnavailable, "asynchronous runs need a store")
		return
	}
	if err != nil {
		s.logger.Error("submit async run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	w.Header().Set("Location", "/v1/runs/"+run.ID)
	s.writeJSON(w, http.StatusAccepted, run)
}
