package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
	"github.com/pthm-cable/arbor/sim"
	"github.com/pthm-cable/arbor/storage"
)

func newTestServer(t *testing.T, store storage.Store) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	engine := sim.NewEngine(sim.New(cfg, 42))
	run := storage.NewRun(42, cfg.Derived.SpeciesName)
	s := New(cfg, engine, store, run)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestReadEndpoints(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/tree", http.StatusOK},
		{"/phases", http.StatusOK},
		{"/environment", http.StatusOK},
		{"/display", http.StatusOK},
		{"/snapshot", http.StatusOK},
		{"/runs", http.StatusNotFound},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := do(t, ts, "GET", tt.path, nil)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	var health HealthReport
	decode(t, do(t, ts, "GET", "/health", nil), &health)
	if health.Status != "ok" || !health.Alive || health.Substeps != 0 {
		t.Errorf("unexpected health %+v", health)
	}

	var phases []sim.PhaseInfo
	decode(t, do(t, ts, "GET", "/phases", nil), &phases)
	if len(phases) != 7 || phases[0].ID != sim.PhaseCalendar {
		t.Errorf("unexpected phases %+v", phases)
	}

	var tree sim.TreeState
	decode(t, do(t, ts, "GET", "/tree", nil), &tree)
	if tree.Species != "oak" || !tree.Life.Alive {
		t.Errorf("unexpected tree %+v", tree.Life)
	}
}

func TestPostInput(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var out InputResponse
	resp := do(t, ts, "POST", "/input", map[string]any{"water": 150, "storm": true, "watr": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decode(t, resp, &out)
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "water") {
		t.Errorf("warnings = %v, want one suggesting water", out.Warnings)
	}

	var env environment.Snapshot
	decode(t, do(t, ts, "GET", "/environment", nil), &env)
	if env.Water != 100 || !env.Stressors.Storm {
		t.Errorf("water/storm = %v/%v, want clamped 100/true", env.Water, env.Stressors.Storm)
	}

	if resp := do(t, ts, "POST", "/input", "{bad"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
}

func TestPostAdvance(t *testing.T) {
	s, ts := newTestServer(t, nil)

	var out AdvanceResponse
	resp := do(t, ts, "POST", "/advance", AdvanceRequest{Seconds: 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decode(t, resp, &out)
	// Two seconds at 60 substeps per second, beyond the per-call cap.
	if out.Substeps < 119 || out.Substeps > 120 {
		t.Errorf("substeps = %d, want ~120", out.Substeps)
	}
	if got := s.engine.Sim.Substeps(); int(got) != out.Substeps {
		t.Errorf("sim substeps = %d, response %d", got, out.Substeps)
	}

	for _, body := range []any{AdvanceRequest{Seconds: -1}, AdvanceRequest{Seconds: maxAdvanceSeconds + 1}, "nope"} {
		if resp := do(t, ts, "POST", "/advance", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("advance %v status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestPostAdvanceIsBounded(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.advanceBudget = 50

	if resp := do(t, ts, "POST", "/input", map[string]any{"speed": 100}); resp.StatusCode != http.StatusOK {
		t.Fatalf("input status = %d", resp.StatusCode)
	}
	var out AdvanceResponse
	decode(t, do(t, ts, "POST", "/advance", AdvanceRequest{Seconds: 10}), &out)
	if out.Substeps != 50 {
		t.Errorf("substeps = %d, want the budget of 50", out.Substeps)
	}

	s.mu.Lock()
	pending := s.engine.Scheduler.Pending()
	s.mu.Unlock()
	if pending > s.cfg.Simulation.MaxBacklog+1e-9 {
		t.Errorf("pending = %v after advance, want <= %v", pending, s.cfg.Simulation.MaxBacklog)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, ts := newTestServer(t, nil)
	do(t, ts, "POST", "/advance", AdvanceRequest{Seconds: 1})

	var snap sim.Snapshot
	decode(t, do(t, ts, "GET", "/snapshot", nil), &snap)
	saved := s.engine.Sim.Tree()

	do(t, ts, "POST", "/advance", AdvanceRequest{Seconds: 1})
	if s.engine.Sim.Tree() == saved {
		t.Fatal("tree did not change after advancing")
	}

	resp := do(t, ts, "POST", "/snapshot", snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore status = %d", resp.StatusCode)
	}
	if s.engine.Sim.Tree() != saved {
		t.Error("restored tree differs from snapshot")
	}

	snap.Version = sim.SnapshotVersion + 1
	if resp := do(t, ts, "POST", "/snapshot", snap); resp.StatusCode != http.StatusConflict {
		t.Errorf("bad version status = %d, want 409", resp.StatusCode)
	}
}

func TestRunPersistsOnShutdown(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	s, ts := newTestServer(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for currentSubsteps(s) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if currentSubsteps(s) == 0 {
		t.Fatal("host loop never advanced the simulation")
	}

	snap, ok, err := store.LatestSnapshot(context.Background(), s.run.ID)
	if err != nil || !ok {
		t.Fatalf("latest snapshot = %v, %v", ok, err)
	}
	if snap.Substeps != currentSubsteps(s) {
		t.Errorf("saved at %d, want %d", snap.Substeps, currentSubsteps(s))
	}

	var runs []storage.Run
	decode(t, do(t, ts, "GET", "/runs", nil), &runs)
	if len(runs) != 1 || runs[0].ID != s.run.ID {
		t.Errorf("runs = %+v", runs)
	}
}

func currentSubsteps(s *Server) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Sim.Substeps()
}
