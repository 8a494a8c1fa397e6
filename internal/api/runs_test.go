package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/seantiz/groundstate/internal/assemble"
	"github.com/seantiz/groundstate/internal/engine"
	"github.com/seantiz/groundstate/internal/model"
	"github.com/seantiz/groundstate/internal/operator"
	"github.com/seantiz/groundstate/internal/registry"
	"github.com/seantiz/groundstate/internal/resolve"
	"github.com/seantiz/groundstate/internal/result"
)

const h2GroundEnergy = -1.857275030202378

func loadH2(t *testing.T) *operator.WeightedPauliOperator {
	t.Helper()
	op, err := operator.LoadFile("../operator/testdata/h2_0.735.json")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return op
}

func h2JSON(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../operator/testdata/h2_0.735.json")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestCreateRunExactEigensolver(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := fmt.Sprintf(`{"config": {"algorithm": {"name": "ExactEigensolver"}}, "operator": %s}`, h2JSON(t))
	resp := postJSON(t, ts.URL+"/v1/runs", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got runResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	energy, ok := got.Result.Energy()
	if !ok {
		t.Fatalf("result has no energy: %v", got.Result)
	}
	if math.Abs(energy-h2GroundEnergy) > 1e-6 {
		t.Errorf("energy = %.10f, want %.10f", energy, h2GroundEnergy)
	}
	if got.Run.Status != model.StatusCompleted {
		t.Errorf("run status = %q, want completed", got.Run.Status)
	}
	if got.Run.Algorithm != "ExactEigensolver" {
		t.Errorf("run algorithm = %q, want ExactEigensolver", got.Run.Algorithm)
	}

	stored, err := srv.store.GetRun(t.Context(), got.Run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Energy == nil || math.Abs(*stored.Energy-h2GroundEnergy) > 1e-6 {
		t.Errorf("stored energy = %v, want %.10f", stored.Energy, h2GroundEnergy)
	}
}

func TestCreateRunVQEFromYAML(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	doc := `
algorithm:
  name: VQE
backend:
  name: statevector_simulator
optimizer:
  name: L_BFGS_B
  maxfun: 1000
variational_form:
  name: RYRZ
  depth: 3
  entanglement: linear
`
	config, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	body := fmt.Sprintf(`{"config": %s, "format": "yaml", "operator": %s}`, config, h2JSON(t))
	resp := postJSON(t, ts.URL+"/v1/runs", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got runResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	energy, ok := got.Result.Energy()
	if !ok {
		t.Fatalf("result has no energy: %v", got.Result)
	}
	if math.Abs(energy-h2GroundEnergy) > 1e-4 {
		t.Errorf("energy = %.10f, want %.10f", energy, h2GroundEnergy)
	}
	if _, ok := got.Result["opt_params"]; !ok {
		t.Error("result missing opt_params")
	}
}

func TestCreateRunBadRequests(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	h2 := h2JSON(t)
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "invalid JSON", body: `{`, wantErr: "invalid JSON body"},
		{name: "missing config", body: fmt.Sprintf(`{"operator": %s}`, h2), wantErr: "config is required"},
		{name: "missing operator", body: `{"config": {"algorithm": {"name": "VQE"}}}`, wantErr: "operator is required"},
		{
			name:    "unsupported format",
			body:    fmt.Sprintf(`{"config": "", "format": "toml", "operator": %s}`, h2),
			wantErr: "format must be one of: json yaml hcl",
		},
		{
			name: "no backend for VQE",
			body: fmt.Sprintf(`{"config": {"algorithm": {"name": "VQE"}}, "operator": %s}`, h2),
		},
		{
			name: "unknown algorithm",
			body: fmt.Sprintf(`{"config": {"algorithm": {"name": "QPE"}}, "operator": %s}`, h2),
		},
		{
			name: "invalid operator",
			body: `{"config": {"algorithm": {"name": "ExactEigensolver"}}, "operator": {"paulis": [{"label": "XQ", "coeff": {"real": 1}}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/v1/runs", tt.body)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}

			var got runErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Error == "" {
				t.Error("empty error message")
			}
			if tt.wantErr != "" && got.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", got.Error, tt.wantErr)
			}
		})
	}
}

func TestCreateRunReturnsFailedRun(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := fmt.Sprintf(`{"config": {"algorithm": {"name": "VQE"}}, "operator": %s}`, h2JSON(t))
	resp := postJSON(t, ts.URL+"/v1/runs", body)
	defer resp.Body.Close()

	var got runErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Run == nil {
		t.Fatal("response has no run")
	}
	if got.Run.Status != model.StatusFailed {
		t.Errorf("run status = %q, want failed", got.Run.Status)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown", &registry.UnknownComponentError{Kind: registry.KindAlgorithm, Name: "QPE"}, http.StatusBadRequest},
		{"ambiguous", &resolve.AmbiguousDependencyError{Kind: registry.KindOptimizer}, http.StatusBadRequest},
		{"missing", &resolve.MissingRequiredSectionError{Kind: registry.KindAlgorithm}, http.StatusBadRequest},
		{"construction", &assemble.ComponentConstructionError{Kind: registry.KindOptimizer, Name: "CG", Err: errors.New("bad")}, http.StatusBadRequest},
		{"no backend", &engine.MissingExecutionContextError{Algorithm: "VQE"}, http.StatusBadRequest},
		{"execution", &engine.AlgorithmExecutionError{Algorithm: "VQE", Err: errors.New("boom")}, http.StatusUnprocessableEntity},
		{"incomplete", &result.IncompleteResultError{Problem: result.ProblemEnergy, Field: "energy"}, http.StatusUnprocessableEntity},
		{"wrapped", fmt.Errorf("run: %w", &engine.AlgorithmExecutionError{Err: errors.New("boom")}), http.StatusUnprocessableEntity},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	srv := newTestServer(t)
	run := seedRun(t, srv, "ExactEigensolver")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got model.Run
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != run.ID || got.Status != model.StatusPending {
		t.Errorf("got %+v, want pending run %s", got, run.ID)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/nonexistent")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListRunsPagination(t *testing.T) {
	srv := newTestServer(t)
	for range 5 {
		seedRun(t, srv, "ExactEigensolver")
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs?limit=2&offset=1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var got listRunsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 5 {
		t.Errorf("total = %d, want 5", got.Total)
	}
	if len(got.Runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(got.Runs))
	}
	if got.Limit != 2 || got.Offset != 1 {
		t.Errorf("limit/offset = %d/%d, want 2/1", got.Limit, got.Offset)
	}
}

func TestListRunsEmptyAndClampedLimit(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs?limit=1000&offset=-3")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var got listRunsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Runs == nil || len(got.Runs) != 0 {
		t.Errorf("runs = %v, want empty list", got.Runs)
	}
	if got.Limit != defaultListLimit || got.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want %d/0", got.Limit, got.Offset, defaultListLimit)
	}
}

func TestAsyncRun(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := fmt.Sprintf(`{"config": {"algorithm": {"name": "VQE"}, "backend": {"name": "statevector_simulator"},
		"variational_form": {"name": "RYRZ", "depth": 3, "entanglement": "linear"}}, "operator": %s}`, h2JSON(t))
	resp := postJSON(t, ts.URL+"/v1/runs/async", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var run model.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", run.Status)
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/runs/"+run.ID {
		t.Errorf("Location = %q", loc)
	}

	srv.engine.Wait()

	stored, err := srv.store.GetRun(t.Context(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != model.StatusCompleted {
		t.Fatalf("stored status = %q (error %q), want completed", stored.Status, stored.Error)
	}
	if stored.Energy == nil || math.Abs(*stored.Energy-h2GroundEnergy) > 1e-4 {
		t.Errorf("stored energy = %v, want %.10f", stored.Energy, h2GroundEnergy)
	}
}

func TestAsyncRunRejectsBadConfig(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := fmt.Sprintf(`{"config": {"algorithm": {"name": "ExactEigensolver"}, "optimizer": [{"name": "CG"}, {"name": "L_BFGS_B"}]},
		"operator": %s}`, h2JSON(t))
	resp := postJSON(t, ts.URL+"/v1/runs/async", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	// Nothing was recorded.
	_, total, err := srv.store.ListRuns(t.Context(), 10, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 0 {
		t.Errorf("total runs = %d, want 0", total)
	}
}

func TestAsyncRunCompletesWithinDeadline(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := fmt.Sprintf(`{"config": {"algorithm": {"name": "ExactEigensolver"}}, "operator": %s}`, h2JSON(t))
	resp := postJSON(t, ts.URL+"/v1/runs/async", body)
	defer resp.Body.Close()

	var run model.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stored, err := srv.store.GetRun(t.Context(), run.ID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if model.IsTerminal(stored.Status) {
			if stored.Status != model.StatusCompleted {
				t.Errorf("status = %q, want completed", stored.Status)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run did not finish")
}
