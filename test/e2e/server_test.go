package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond

	h2GroundEnergy = -1.857275030202378
)

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// serverProc holds the running server subprocess and its output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	builtBinary string
	buildOnce   sync.Once
	buildErr    error
)

func getBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e tests build the binary")
	}
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "groundstate-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		binary := filepath.Join(dir, "groundstate")
		cmd := exec.Command("go", "build", "-o", binary, "./cmd/groundstate")
		cmd.Dir = findRepoRoot(t)
		out, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("go build failed: %w\n%s", err, out)
			return
		}
		builtBinary = binary
	})
	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return builtBinary
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

func startServer(t *testing.T, binary string) *serverProc {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	stdout := &lockedBuffer{}
	cmd := exec.Command(binary, "serve")
	cmd.Env = append(os.Environ(),
		"GROUNDSTATE_LISTEN_ADDR="+addr,
		"GROUNDSTATE_DB_PATH="+dbPath,
		"GROUNDSTATE_LOG_LEVEL=info",
	)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(func() {
		cmd.Process.Kill()
		cmd.Wait()
	})

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

func runBody(t *testing.T, config string) string {
	t.Helper()
	op, err := os.ReadFile(filepath.Join(findRepoRoot(t), "internal", "operator", "testdata", "h2_0.735.json"))
	if err != nil {
		t.Fatalf("read operator: %v", err)
	}
	return fmt.Sprintf(`{"config": %s, "operator": %s}`, config, op)
}

func TestServeHealthzAndMetrics(t *testing.T) {
	sp := startServer(t, getBinary(t))

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}

	resp, err = http.Get(sp.url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"groundstate_http_requests_total", "groundstate_active_runs"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestServeSynchronousRun(t *testing.T) {
	sp := startServer(t, getBinary(t))

	resp, err := http.Post(sp.url+"/v1/runs", "application/json",
		bytes.NewBufferString(runBody(t, `{"algorithm": {"name": "ExactEigensolver"}}`)))
	if err != nil {
		t.Fatalf("POST /v1/runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200\nbody: %s", resp.StatusCode, body)
	}

	var got struct {
		Run    map[string]any `json:"run"`
		Result map[string]any `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	energy, ok := got.Result["energy"].(float64)
	if !ok || math.Abs(energy-h2GroundEnergy) > 1e-6 {
		t.Errorf("energy = %v, want %.10f", got.Result["energy"], h2GroundEnergy)
	}
	if id, ok := got.Run["id"].(string); !ok || len(id) != 26 {
		t.Errorf("id = %v, expected 26-char ULID", got.Run["id"])
	}
}

func TestServeAsyncRunStreamsProgress(t *testing.T) {
	sp := startServer(t, getBinary(t))

	config := `{"algorithm": {"name": "VQE"}, "backend": {"name": "statevector_simulator"},
		"variational_form": {"name": "RYRZ", "depth": 3, "entanglement": "linear"}}`
	resp, err := http.Post(sp.url+"/v1/runs/async", "application/json", bytes.NewBufferString(runBody(t, config)))
	if err != nil {
		t.Fatalf("POST /v1/runs/async: %v", err)
	}
	var run map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 202 {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	id := run["id"].(string)

	// The stream ends with a done event whether or not the run finished
	// before we subscribed.
	stream, err := http.Get(sp.url + "/v1/runs/" + id + "/progress")
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	scanner := bufio.NewScanner(stream.Body)
	sawDone := false
	for scanner.Scan() {
		if scanner.Text() == "event: done" {
			sawDone = true
		}
	}
	stream.Body.Close()
	if !sawDone {
		t.Error("progress stream ended without a done event")
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/v1/runs/" + id)
		if err != nil {
			t.Fatalf("GET run: %v", err)
		}
		var got map[string]any
		err = json.NewDecoder(resp.Body).Decode(&got)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode run: %v", err)
		}
		switch got["status"] {
		case "completed":
			energy, _ := got["energy"].(float64)
			if math.Abs(energy-h2GroundEnergy) > 1e-4 {
				t.Errorf("energy = %v, want %.10f", got["energy"], h2GroundEnergy)
			}
			return
		case "failed":
			t.Fatalf("run failed: %v", got["error"])
		}
		time.Sleep(pollInterval)
	}
	t.Fatal("run did not finish")
}

func TestServeStructuredLogsAndShutdown(t *testing.T) {
	sp := startServer(t, getBinary(t))

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- sp.cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("server exited with %v\noutput:\n%s", err, sp.stdout.String())
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}

	foundRequest, foundStopped := false, false
	scanner := bufio.NewScanner(strings.NewReader(sp.stdout.String()))
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		switch entry["msg"] {
		case "request":
			foundRequest = true
			for _, key := range []string{"method", "path", "status", "duration_ms", "request_id"} {
				if _, ok := entry[key]; !ok {
					t.Errorf("request log missing field %q", key)
				}
			}
		case "server stopped":
			foundStopped = true
		}
	}
	if !foundRequest {
		t.Errorf("no structured request log found\noutput:\n%s", sp.stdout.String())
	}
	if !foundStopped {
		t.Errorf("no shutdown log found\noutput:\n%s", sp.stdout.String())
	}
}
