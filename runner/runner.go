// Package runner drives headless simulations: one tree with full telemetry,
// or a cohort of independent trees on a worker pool.
package runner

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/scenario"
	"github.com/pthm-cable/arbor/sim"
	"github.com/pthm-cable/arbor/telemetry"
)

// Options configures a headless run.
type Options struct {
	Seed         int64
	LogStats     bool
	WindowDays   float64 // 0 = use config
	SnapshotDir  string
	SnapshotDays float64 // 0 = only a final snapshot when SnapshotDir is set
	Output       *telemetry.OutputManager
	Scenario     *scenario.Script
	Perf         bool

	// StatsCallback is called with each flushed window.
	StatsCallback func(telemetry.WindowStats)
}

// Run is one headless tree simulation with telemetry hooks.
type Run struct {
	engine    *sim.Engine
	player    *scenario.Player
	collector *telemetry.Collector
	lifetime  *telemetry.LifetimeTracker
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager

	logStats      bool
	statsCallback func(telemetry.WindowStats)

	snapshotDir   string
	snapshotEvery int64
	lastSnapshot  int64

	prevPhenology components.Phenology
}

// New creates a run for the given config and options.
func New(cfg *config.Config, opts Options) *Run {
	return newRun(cfg, sim.New(cfg, opts.Seed), opts)
}

// Resume creates a run continuing from snap. opts.Seed is ignored; the
// snapshot carries the seed and RNG state.
func Resume(cfg *config.Config, snap *sim.Snapshot, opts Options) (*Run, error) {
	s, err := sim.Restore(cfg, snap)
	if err != nil {
		return nil, fmt.Errorf("resuming run: %w", err)
	}
	r := newRun(cfg, s, opts)
	r.lastSnapshot = s.Substeps()
	r.collector.StartAt(s.Substeps())
	return r, nil
}

func newRun(cfg *config.Config, s *sim.Simulation, opts Options) *Run {
	windowDays := cfg.Telemetry.WindowDays
	if opts.WindowDays > 0 {
		windowDays = opts.WindowDays
	}

	r := &Run{
		engine:        sim.NewEngine(s),
		collector:     telemetry.NewCollector(windowDays, s.DTDays()),
		lifetime:      telemetry.NewLifetimeTracker(s.Seed(), s.DTDays()),
		output:        opts.Output,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		snapshotDir:   opts.SnapshotDir,
		prevPhenology: s.Tree().Phenology,
	}
	if opts.SnapshotDays > 0 {
		r.snapshotEvery = int64(math.Round(opts.SnapshotDays / s.DTDays()))
	}
	if opts.Perf {
		r.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow, cfg.Derived.DTDays)
		s.SetPhaseTimer(r.perf)
	}
	if opts.Scenario != nil {
		r.player = scenario.NewPlayer(opts.Scenario)
		r.applyScenario()
	}
	return r
}

// Sim returns the underlying simulation.
func (r *Run) Sim() *sim.Simulation {
	return r.engine.Sim
}

// Step executes one substep and its telemetry hooks.
func (r *Run) Step() sim.StepReport {
	report := r.engine.Sim.Step()
	if report.Skipped {
		return report
	}

	tree := r.engine.Sim.Tree()
	r.lifetime.Record(report, tree)

	events := telemetry.DetectEvents(r.prevPhenology, report, tree.Life.Age)
	r.prevPhenology = report.Phenology
	r.collector.RecordEvents(len(events))
	if err := r.output.WriteEvents(events); err != nil {
		slog.Error("failed to write events", "error", err)
	}
	if r.logStats {
		for _, e := range events {
			slog.Info("event", "type", e.Type.String(), "year", e.Year, "day", e.Day, "detail", e.Detail)
		}
	}

	r.collector.Record(report)
	if r.collector.ShouldFlush(report.Substep) || report.Died {
		r.flushTelemetry(tree)
	}

	if r.snapshotEvery > 0 && report.Substep-r.lastSnapshot >= r.snapshotEvery {
		r.saveSnapshot()
	}

	if r.player != nil && !report.Died {
		r.applyScenario()
	}
	return report
}

// RunFor steps until days have elapsed or the tree dies and returns the
// lifetime summary.
func (r *Run) RunFor(days float64) telemetry.LifetimeStats {
	n := int64(math.Ceil(days/r.engine.Sim.DTDays() - 1e-9))
	for i := int64(0); i < n; i++ {
		report := r.Step()
		if report.Skipped || report.Died {
			break
		}
	}
	return r.Finish()
}

// Finish flushes the partial window, writes the final snapshot and returns
// the lifetime summary.
func (r *Run) Finish() telemetry.LifetimeStats {
	tree := r.engine.Sim.Tree()
	if r.collector.Pending() > 0 {
		r.flushTelemetry(tree)
	}
	if r.snapshotDir != "" && r.lastSnapshot != r.engine.Sim.Substeps() {
		r.saveSnapshot()
	}
	ls := r.lifetime.Finish(tree)
	if err := r.output.WriteLifetime(ls); err != nil {
		slog.Error("failed to write lifetime", "error", err)
	}
	return ls
}
