package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/groundstate/internal/model"
	"github.com/seantiz/groundstate/internal/store"
)

func (s *Server) handleStreamProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run for progress", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if model.IsTerminal(run.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEEvent(w, "done", run.Status)
		return
	}

	// Optimisations can run far longer than the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	// The broker keeps nothing for finished runs, so a run that finished
	// before Subscribe would never close ch. The store is updated before the
	// broker closes a run, so a second look catches that case.
	run, err = s.store.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("recheck run for progress", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if model.IsTerminal(run.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEEvent(w, "done", run.Status)
		return
	}

	progressStreams.Inc()
	defer progressStreams.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case line, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEData(w, line); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// progressHistoryResponse is the JSON response for
// GET /v1/runs/{id}/progress/history.
type progressHistoryResponse struct {
	RunID string               `json:"run_id"`
	Lines []store.ProgressLine `json:"lines"`
}

func (s *Server) handleGetProgressHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run for progress history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	lines, err := s.store.GetProgressLines(r.Context(), id)
	if err != nil {
		s.logger.Error("get progress lines", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get progress lines")
		return
	}
	if lines == nil {
		lines = []store.ProgressLine{}
	}

	s.writeJSON(w, http.StatusOK, progressHistoryResponse{RunID: id, Lines: lines})
}

// writeSSEData writes one data event, giving each line of a multi-line
// message its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, line string) error {
	for seg := range strings.SplitSeq(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named event.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
