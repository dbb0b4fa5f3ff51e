package telemetry

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/sim"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("empty dir should disable output, got %v, %v", om, err)
	}
	// Nil manager methods are no-ops.
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	cfg := config.Default()
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	s := sim.New(cfg, 5)
	c := NewCollector(5, s.DTDays())
	lt := NewLifetimeTracker(s.Seed(), s.DTDays())
	prev := s.Tree().Phenology
	s.Run(15, func(r sim.StepReport) {
		tree := s.Tree()
		lt.Record(r, tree)
		events := DetectEvents(prev, r, tree.Life.Age)
		prev = r.Phenology
		c.RecordEvents(len(events))
		if err := om.WriteEvents(events); err != nil {
			t.Fatal(err)
		}
		c.Record(r)
		if c.ShouldFlush(r.Substep) {
			if err := om.WriteTelemetry(c.Flush(tree)); err != nil {
				t.Fatal(err)
			}
		}
	})
	ls := lt.Finish(s.Tree())
	if err := om.WriteLifetime(ls); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteCohort(ComputeCohortStats([]LifetimeStats{ls})); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(dir, "trajectory.csv"))
	if len(rows) != 4 {
		t.Fatalf("trajectory rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "window_end" {
		t.Errorf("trajectory header starts with %q", rows[0][0])
	}

	rows = readCSV(t, filepath.Join(dir, "lifetimes.csv"))
	if len(rows) != 2 || rows[1][0] != "5" {
		t.Errorf("lifetimes rows = %v", rows)
	}

	for _, name := range []string{"config.yaml", "cohort.json", "causes.csv", "events.csv", "perf.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}

func TestLifetimeTracker(t *testing.T) {
	s := sim.New(config.Default(), 9)
	lt := NewLifetimeTracker(s.Seed(), s.DTDays())
	s.Run(10, func(r sim.StepReport) { lt.Record(r, s.Tree()) })
	ls := lt.Finish(s.Tree())

	if ls.Seed != 9 || ls.Species != "oak" {
		t.Errorf("seed/species = %d/%q", ls.Seed, ls.Species)
	}
	if ls.Substeps != s.Substeps() {
		t.Errorf("Substeps = %d, want %d", ls.Substeps, s.Substeps())
	}
	if ls.MinHealth > ls.PeakHealth {
		t.Errorf("MinHealth %v > PeakHealth %v", ls.MinHealth, ls.PeakHealth)
	}
	if !ls.Alive || ls.Cause != "" {
		t.Errorf("alive/cause = %v/%q", ls.Alive, ls.Cause)
	}
}
