package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/seantiz/groundstate/internal/assemble"
	"github.com/seantiz/groundstate/internal/engine"
	"github.com/seantiz/groundstate/internal/model"
	"github.com/seantiz/groundstate/internal/operator"
	"github.com/seantiz/groundstate/internal/registry"
	"github.com/seantiz/groundstate/internal/resolve"
	"github.com/seantiz/groundstate/internal/result"
	"github.com/seantiz/groundstate/internal/runconfig"
	"github.com/seantiz/groundstate/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// runResponse is returned by a synchronous run.
type runResponse struct {
	Run    *model.Run    `json:"run"`
	Result result.Record `json:"result"`
}

// runErrorResponse carries the failed run alongside the error when the run
// got far enough to be recorded.
type runErrorResponse struct {
	Error string     `json:"error"`
	Run   *model.Run `json:"run,omitempty"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// decodeRunRequest reads and validates a run request body. On failure it
// has already written the 400 response.
func (s *Server) decodeRunRequest(w http.ResponseWriter, r *http.Request) (runconfig.Configuration, *operator.WeightedPauliOperator, bool) {
	var req createRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return runconfig.Configuration{}, nil, false
	}
	if err := requestValidate.Struct(req); err != nil {
		s.writeError(w, http.StatusBadRequest, validationMessage(err))
		return runconfig.Configuration{}, nil, false
	}

	cfg, err := req.configuration()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid config: %v", err))
		return runconfig.Configuration{}, nil, false
	}
	op, err := operator.Read(bytes.NewReader(req.Operator))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid operator: %v", err))
		return runconfig.Configuration{}, nil, false
	}
	return cfg, op, true
}

// validationMessage renders the first validation failure.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", jsonName(fe.Field()))
		case "rawjson":
			return fmt.Sprintf("%s must be valid JSON", jsonName(fe.Field()))
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", jsonName(fe.Field()), fe.Param())
		}
	}
	return err.Error()
}

func jsonName(field string) string {
	switch field {
	case "Config":
		return "config"
	case "Format":
		return "format"
	case "Operator":
		return "operator"
	}
	return field
}

// statusFor maps a run error to an HTTP status. Configuration and
// construction problems are the caller's fault; an algorithm that fails or
// returns an incomplete record is unprocessable.
func statusFor(err error) int {
	var (
		unknown    *registry.UnknownComponentError
		ambiguous  *resolve.AmbiguousDependencyError
		missing    *resolve.MissingRequiredSectionError
		construct  *assemble.ComponentConstructionError
		noBackend  *engine.MissingExecutionContextError
		execErr    *engine.AlgorithmExecutionError
		incomplete *result.IncompleteResultError
	)
	switch {
	case errors.As(err, &unknown), errors.As(err, &ambiguous), errors.As(err, &missing),
		errors.As(err, &construct), errors.As(err, &noBackend):
		return http.StatusBadRequest
	case errors.As(err, &execErr), errors.As(err, &incomplete):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	cfg, op, ok := s.decodeRunRequest(w, r)
	if !ok {
		return
	}

	run, rec, err := s.engine.Execute(r.Context(), cfg, op)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("execute run", "error", err)
		}
		s.writeJSON(w, status, runErrorResponse{Error: err.Error(), Run: run})
		return
	}

	s.writeJSON(w, http.StatusOK, runResponse{Run: run, Result: rec})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
