package runner

import (
	"log/slog"

	"github.com/pthm-cable/arbor/sim"
	"github.com/pthm-cable/arbor/telemetry"
)

// flushTelemetry closes the current stats window.
func (r *Run) flushTelemetry(tree sim.TreeState) {
	stats := r.collector.Flush(tree)

	if r.statsCallback != nil {
		r.statsCallback(stats)
	}

	if r.logStats {
		stats.LogStats()
		if r.perf != nil {
			r.perf.Stats().LogStats()
		}
	}

	if err := r.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if r.perf != nil {
		if err := r.output.WritePerf(r.perf.Stats(), stats.WindowEndSubstep); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// saveSnapshot writes the current state to the snapshot directory.
func (r *Run) saveSnapshot() {
	r.lastSnapshot = r.engine.Sim.Substeps()
	if r.snapshotDir == "" {
		return
	}
	snap, err := r.engine.Sim.Snapshot()
	if err != nil {
		slog.Error("failed to capture snapshot", "error", err)
		return
	}
	path, err := telemetry.SaveSnapshot(snap, r.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "substeps", snap.Substeps)
}

// applyScenario applies scripted events that have come due.
func (r *Run) applyScenario() {
	for _, w := range r.player.Apply(r.engine) {
		slog.Warn("scenario input", "warning", w)
	}
}
