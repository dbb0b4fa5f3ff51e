// Package server exposes a simulation over HTTP and drives it from a
// wall-clock host loop.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/sim"
	"github.com/pthm-cable/arbor/storage"
)

// maxAdvanceSeconds bounds a single POST /advance request.
const maxAdvanceSeconds = 3600

// maxAdvanceSubsteps bounds the work done under the lock by one
// POST /advance: an hour of substeps at 60 per second.
const maxAdvanceSubsteps = 216000

// Server owns one engine and guards it with a mutex.
type Server struct {
	cfg *config.Config

	mu     sync.Mutex
	engine *sim.Engine

	advanceBudget int

	store         storage.Store
	run           storage.Run
	snapshotEvery int64
	lastSaved     int64
}

// New creates a server for engine. store may be nil to disable persistence.
func New(cfg *config.Config, engine *sim.Engine, store storage.Store, run storage.Run) *Server {
	s := &Server{
		cfg:           cfg,
		engine:        engine,
		advanceBudget: maxAdvanceSubsteps,
		store:         store,
		run:           run,
	}
	if days := cfg.Server.SnapshotDays; days > 0 {
		s.snapshotEvery = int64(float64(days)/engine.Sim.DTDays() + 0.5)
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.ReportHealth).Methods("GET")
	router.HandleFunc("/phases", s.GetPhases).Methods("GET")
	router.HandleFunc("/tree", s.GetTree).Methods("GET")
	router.HandleFunc("/environment", s.GetEnvironment).Methods("GET")
	router.HandleFunc("/display", s.GetDisplay).Methods("GET")
	router.HandleFunc("/input", s.PostInput).Methods("POST")
	router.HandleFunc("/advance", s.PostAdvance).Methods("POST")
	router.HandleFunc("/snapshot", s.GetSnapshot).Methods("GET")
	router.HandleFunc("/snapshot", s.PostSnapshot).Methods("POST")
	router.HandleFunc("/runs", s.GetRuns).Methods("GET")
	return router
}

// Advance forwards elapsed wall-clock seconds to the engine.
func (s *Server) Advance(elapsed float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Advance(elapsed)
}

// drain advances by seconds without the per-frame cap, running at most
// advanceBudget substeps. Time beyond the budget and the scheduler's
// backlog bound is dropped.
func (s *Server) drain(seconds float64) int {
	return s.engine.CatchUp(seconds, s.advanceBudget)
}

// Run drives the engine from a ticker until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.Server.TickMillis) * time.Millisecond
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.persist(context.Background(), true)
			return ctx.Err()
		case now := <-ticker.C:
			s.Advance(now.Sub(last).Seconds())
			last = now
			s.persist(ctx, false)
		}
	}
}

// persist saves a snapshot when enough substeps have passed since the
// last one, or unconditionally when force is set.
func (s *Server) persist(ctx context.Context, force bool) {
	if s.store == nil || (s.snapshotEvery <= 0 && !force) {
		return
	}

	s.mu.Lock()
	substeps := s.engine.Sim.Substeps()
	due := force || substeps-s.lastSaved >= s.snapshotEvery
	if !due || substeps == s.lastSaved {
		s.mu.Unlock()
		return
	}
	snap, err := s.engine.Sim.Snapshot()
	s.lastSaved = substeps
	s.run.UpdatedAt = time.Now().UTC()
	run := s.run
	s.mu.Unlock()

	if err != nil {
		slog.Error("snapshot failed", "error", err)
		return
	}
	if err := s.store.SaveSnapshot(ctx, run.ID, snap); err != nil {
		slog.Error("saving snapshot", "run", run.ID, "error", err)
		return
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		slog.Error("saving run", "run", run.ID, "error", err)
		return
	}
	slog.Debug("snapshot saved", "run", run.ID, "substeps", substeps)
}
