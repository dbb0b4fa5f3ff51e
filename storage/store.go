// Package storage persists run records and simulation snapshots.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/arbor/sim"
	"github.com/pthm-cable/arbor/telemetry"
)

// Store defines persistence operations for runs and their snapshots.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context) ([]Run, error)
	SaveSnapshot(ctx context.Context, runID string, snap *sim.Snapshot) error
	LatestSnapshot(ctx context.Context, runID string) (*sim.Snapshot, bool, error)
}

// VersionedRecord tags every persisted payload.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Run describes one simulated tree.
type Run struct {
	VersionedRecord
	ID        string                   `json:"id"`
	Seed      int64                    `json:"seed"`
	Species   string                   `json:"species"`
	Scenario  string                   `json:"scenario,omitempty"`
	StartedAt time.Time                `json:"started_at"`
	UpdatedAt time.Time                `json:"updated_at"`
	Summary   *telemetry.LifetimeStats `json:"summary,omitempty"`
}

// NewRun creates a run record with a fresh ID.
func NewRun(seed int64, species string) Run {
	now := time.Now().UTC()
	return Run{
		VersionedRecord: VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              NewRunID(),
		Seed:            seed,
		Species:         species,
		StartedAt:       now,
		UpdatedAt:       now,
	}
}

// NewRunID returns a random run identifier.
func NewRunID() string {
	return uuid.NewString()
}
