package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/groundstate/internal/model"
	"github.com/seantiz/groundstate/internal/store"
)

func TestStreamProgressNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/nonexistent/progress")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamProgressFinishedRun(t *testing.T) {
	srv := newTestServer(t)
	run := seedRun(t, srv, "VQE", model.StatusRunning, model.StatusCompleted)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/progress")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := readSSE(t, resp)
	if len(events) != 1 || events[0] != "done:completed" {
		t.Errorf("events = %v, want [done:completed]", events)
	}
}

func TestStreamProgressReceivesEvents(t *testing.T) {
	srv := newTestServer(t)
	run := seedRun(t, srv, "VQE")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/runs/"+run.ID+"/progress", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// Headers arrive after the handler subscribed.
	broker := srv.engine.Broker()
	broker.Publish(run.ID, "evaluation 50: energy -1.1")
	broker.Publish(run.ID, "two\nlines")
	broker.Close(run.ID)

	events := readSSE(t, resp)
	want := []string{"evaluation 50: energy -1.1", "two\nlines", "done:stream complete"}
	if len(events) != len(want) {
		t.Fatalf("events = %q, want %q", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

// lateStore reports the first run it serves as still running, standing in
// for a run that finishes between the handler's status check and its
// broker subscription.
type lateStore struct {
	store.Store
	reads int
}

func (s *lateStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	run, err := s.Store.GetRun(ctx, id)
	s.reads++
	if err == nil && s.reads == 1 {
		run.Status = model.StatusRunning
	}
	return run, err
}

func TestStreamProgressRunFinishedBeforeSubscribe(t *testing.T) {
	base := newTestServer(t)
	run := seedRun(t, base, "VQE", model.StatusRunning, model.StatusCompleted)
	srv := NewServer(":0", &lateStore{Store: base.store}, base.engine, base.logger)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/runs/"+run.ID+"/progress", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	events := readSSE(t, resp)
	if len(events) != 1 || events[0] != "done:completed" {
		t.Errorf("events = %v, want [done:completed]", events)
	}
	if ctx.Err() != nil {
		t.Error("stream did not end on its own")
	}
}

func TestProgressHistory(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := fmt.Sprintf(`{"config": {"algorithm": {"name": "VQE"}, "backend": {"name": "statevector_simulator"},
		"optimizer": {"name": "CG", "maxiter": 5}}, "operator": %s}`, h2JSON(t))
	resp := postJSON(t, ts.URL+"/v1/runs", body)
	var created runResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if created.Run == nil {
		t.Fatal("no run in response")
	}

	resp, err := http.Get(ts.URL + "/v1/runs/" + created.Run.ID + "/progress/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var history progressHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if history.RunID != created.Run.ID {
		t.Errorf("run_id = %q, want %q", history.RunID, created.Run.ID)
	}
	if len(history.Lines) == 0 {
		t.Fatal("no progress lines recorded")
	}
	for i, l := range history.Lines {
		if l.Seq != i {
			t.Errorf("line %d has seq %d", i, l.Seq)
		}
	}
	last := history.Lines[len(history.Lines)-1].Line
	if !strings.HasPrefix(last, "vqe finished") {
		t.Errorf("last line = %q, want the completion summary", last)
	}
}

func TestProgressHistoryNotFound(t *testing.T) {
	srv := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/nonexistent/progress/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestProgressHistoryEmpty(t *testing.T) {
	srv := newTestServer(t)
	run := seedRun(t, srv, "ExactEigensolver")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/progress/history")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var history progressHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if history.Lines == nil || len(history.Lines) != 0 {
		t.Errorf("lines = %v, want empty list", history.Lines)
	}
}

// readSSE collects data events, joining multi-line data with newlines.
// Named events are reported as "name:data".
func readSSE(t *testing.T, resp *http.Response) []string {
	t.Helper()
	scanner := bufio.NewScanner(resp.Body)
	var (
		events []string
		name   string
		data   []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != nil {
				ev := strings.Join(data, "\n")
				if name != "" {
					ev = name + ":" + ev
				}
				events = append(events, ev)
			}
			name, data = "", nil
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	return events
}
