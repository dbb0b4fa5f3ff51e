package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/pthm-cable/arbor/sim"
)

// HealthReport summarises server state.
type HealthReport struct {
	Status   string `json:"status"`
	Alive    bool   `json:"alive"`
	Substeps int64  `json:"substeps"`
	RunID    string `json:"run_id,omitempty"`
}

// ErrorResponse reports an error.
type ErrorResponse struct {
	Message string `json:"message"`
}

// InputResponse reports the outcome of an input update.
type InputResponse struct {
	Warnings []string    `json:"warnings"`
	Display  sim.Display `json:"display"`
}

// AdvanceRequest asks the server to advance by wall-clock seconds.
type AdvanceRequest struct {
	Seconds float64 `json:"seconds"`
}

// AdvanceResponse reports how many substeps ran.
type AdvanceResponse struct {
	Substeps int         `json:"substeps"`
	Display  sim.Display `json:"display"`
}

func (s *Server) ReportHealth(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	report := HealthReport{
		Status:   "ok",
		Alive:    s.engine.Sim.Alive(),
		Substeps: s.engine.Sim.Substeps(),
		RunID:    s.run.ID,
	}
	s.mu.Unlock()
	sendJSON(w, report)
}

// GetPhases lists the update chain.
func (s *Server) GetPhases(w http.ResponseWriter, req *http.Request) {
	sendJSON(w, sim.Phases())
}

func (s *Server) GetTree(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	tree := s.engine.Sim.Tree()
	s.mu.Unlock()
	sendJSON(w, tree)
}

func (s *Server) GetEnvironment(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	env := s.engine.Sim.Environment()
	s.mu.Unlock()
	sendJSON(w, env)
}

func (s *Server) GetDisplay(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	d := s.engine.Sim.Display()
	s.mu.Unlock()
	sendJSON(w, d)
}

// PostInput applies a key-value input update.
func (s *Server) PostInput(w http.ResponseWriter, req *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
		sendError(w, "error decoding request body as input", http.StatusBadRequest)
		return
	}

	in, warnings := sim.ParseInput(raw)

	s.mu.Lock()
	warnings = append(warnings, s.engine.Apply(in)...)
	d := s.engine.Sim.Display()
	s.mu.Unlock()

	for _, w := range warnings {
		slog.Warn("input", "warning", w)
	}
	if warnings == nil {
		warnings = []string{}
	}
	sendJSON(w, InputResponse{Warnings: warnings, Display: d})
}

// PostAdvance advances the simulation by the requested wall-clock seconds,
// scaled by the current speed.
func (s *Server) PostAdvance(w http.ResponseWriter, req *http.Request) {
	var body AdvanceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		sendError(w, "error decoding request body as advance request", http.StatusBadRequest)
		return
	}
	if math.IsNaN(body.Seconds) || body.Seconds < 0 || body.Seconds > maxAdvanceSeconds {
		sendError(w, fmt.Sprintf("seconds must be within [0, %d]", maxAdvanceSeconds), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	n := s.drain(body.Seconds)
	d := s.engine.Sim.Display()
	s.mu.Unlock()

	sendJSON(w, AdvanceResponse{Substeps: n, Display: d})
}

func (s *Server) GetSnapshot(w http.ResponseWriter, req *http.Request) {
	s.mu.Lock()
	snap, err := s.engine.Sim.Snapshot()
	s.mu.Unlock()
	if err != nil {
		slog.Error("snapshot failed", "error", err)
		sendError(w, "server error", http.StatusInternalServerError)
		return
	}
	sendJSON(w, snap)
}

// PostSnapshot replaces the running simulation with a restored snapshot.
func (s *Server) PostSnapshot(w http.ResponseWriter, req *http.Request) {
	var snap sim.Snapshot
	if err := json.NewDecoder(req.Body).Decode(&snap); err != nil {
		sendError(w, "error decoding request body as snapshot", http.StatusBadRequest)
		return
	}

	restored, err := sim.Restore(s.cfg, &snap)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sim.ErrSnapshotVersion) {
			status = http.StatusConflict
		}
		sendError(w, err.Error(), status)
		return
	}

	s.mu.Lock()
	s.engine.Replace(restored)
	s.lastSaved = restored.Substeps()
	d := restored.Display()
	s.mu.Unlock()

	slog.Info("snapshot restored", "seed", snap.Seed, "substeps", snap.Substeps)
	sendJSON(w, d)
}

// GetRuns lists persisted runs.
func (s *Server) GetRuns(w http.ResponseWriter, req *http.Request) {
	if s.store == nil {
		sendError(w, "persistence disabled", http.StatusNotFound)
		return
	}
	runs, err := s.store.ListRuns(req.Context())
	if err != nil {
		slog.Error("listing runs", "error", err)
		sendError(w, "server error", http.StatusInternalServerError)
		return
	}
	sendJSON(w, runs)
}

func sendError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Message: msg})
}

func sendJSON(w http.ResponseWriter, object any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(object); err != nil {
		slog.Error("encoding response", "error", err)
	}
}
