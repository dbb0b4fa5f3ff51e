package storage

import (
	"encoding/json"
	"errors"

	"github.com/pthm-cable/arbor/sim"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

type snapshotRecord struct {
	VersionedRecord
	RunID    string        `json:"run_id"`
	Snapshot *sim.Snapshot `json:"snapshot"`
}

func EncodeRun(r Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return Run{}, err
	}
	return run, nil
}

func EncodeSnapshot(runID string, snap *sim.Snapshot) ([]byte, error) {
	return json.Marshal(snapshotRecord{
		VersionedRecord: VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		RunID:           runID,
		Snapshot:        snap,
	})
}

func DecodeSnapshot(data []byte) (*sim.Snapshot, error) {
	var rec snapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return nil, err
	}
	if rec.Snapshot == nil {
		return nil, errors.New("snapshot record has no snapshot")
	}
	if rec.Snapshot.Version != sim.SnapshotVersion {
		return nil, ErrVersionMismatch
	}
	return rec.Snapshot, nil
}

func checkVersion(v VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
