package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/sim"
	"github.com/pthm-cable/arbor/telemetry"
)

// exerciseStore runs the shared round-trip checks against an initialized store.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	first := NewRun(42, "oak")
	first.StartedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := NewRun(43, "pine")
	second.StartedAt = first.StartedAt.Add(time.Hour)
	second.Scenario = "summer-drought"

	for _, r := range []Run{second, first} {
		if err := store.SaveRun(ctx, r); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	got, ok, err := store.GetRun(ctx, first.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatalf("expected run %s", first.ID)
	}
	if got.Seed != 42 || got.Species != "oak" || !got.StartedAt.Equal(first.StartedAt) {
		t.Fatalf("unexpected run loaded: %+v", got)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing run = %v, %v; want not found", ok, err)
	}

	// Upsert replaces the summary.
	first.Summary = &telemetry.LifetimeStats{Seed: 42, Alive: false, Cause: "drought", AgeYears: 3.5}
	if err := store.SaveRun(ctx, first); err != nil {
		t.Fatalf("update run: %v", err)
	}
	got, _, err = store.GetRun(ctx, first.ID)
	if err != nil {
		t.Fatalf("get updated run: %v", err)
	}
	if got.Summary == nil || got.Summary.Cause != "drought" {
		t.Fatalf("summary not updated: %+v", got.Summary)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != first.ID || runs[1].ID != second.ID {
		t.Fatalf("runs not ordered by start time: %+v", runs)
	}

	s := sim.New(config.Default(), 42)
	s.Run(2, nil)
	early, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	s.Run(3, nil)
	late, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	for _, snap := range []*sim.Snapshot{late, early} {
		if err := store.SaveSnapshot(ctx, first.ID, snap); err != nil {
			t.Fatalf("save snapshot: %v", err)
		}
	}

	loaded, ok, err := store.LatestSnapshot(ctx, first.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if loaded.Substeps != late.Substeps || loaded.Tree != late.Tree {
		t.Fatalf("latest snapshot at %d, want %d", loaded.Substeps, late.Substeps)
	}
	if _, err := sim.Restore(config.Default(), loaded); err != nil {
		t.Fatalf("restore stored snapshot: %v", err)
	}

	if _, ok, err := store.LatestSnapshot(ctx, second.ID); err != nil || ok {
		t.Fatalf("run without snapshots = %v, %v; want not found", ok, err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), NewRun(1, "oak")); err == nil {
		t.Fatal("expected error before init")
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "arbor.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "arbor.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := NewRun(7, "birch")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewSQLiteStore(dbPath)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok, err := reopened.GetRun(ctx, run.ID)
	if err != nil || !ok || got.Species != "birch" {
		t.Fatalf("reopened run = %+v, %v, %v", got, ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	if _, _, err := store.GetRun(context.Background(), "x"); err == nil {
		t.Fatal("expected error before init")
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestCodecVersionMismatch(t *testing.T) {
	run := NewRun(1, "oak")
	run.SchemaVersion = 99
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("DecodeRun error = %v, want ErrVersionMismatch", err)
	}

	snap, err := sim.New(config.Default(), 1).Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	snap.Version = sim.SnapshotVersion + 1
	data, err = EncodeSnapshot(run.ID, snap)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeSnapshot(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("DecodeSnapshot error = %v, want ErrVersionMismatch", err)
	}

	mem := NewMemoryStore()
	if err := mem.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := mem.SaveRun(context.Background(), run); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("SaveRun error = %v, want ErrVersionMismatch", err)
	}
}

func TestNewRunIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if seen[id] {
			t.Fatalf("duplicate run id %s", id)
		}
		seen[id] = true
	}
}
