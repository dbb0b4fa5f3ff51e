package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pthm-cable/arbor/sim"
)

// snapshotName is the file name for a tree's snapshot at a substep.
func snapshotName(seed, substeps int64) string {
	return fmt.Sprintf("snapshot_%d_%d.json", seed, substeps)
}

// SaveSnapshot writes a snapshot to dir through a temporary file so a
// crash never leaves a truncated snapshot behind.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *sim.Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(dir, snapshotName(snapshot.Seed, snapshot.Substeps))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk and rejects other format
// versions with sim.ErrSnapshotVersion.
func LoadSnapshot(path string) (*sim.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot sim.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != sim.SnapshotVersion {
		return nil, fmt.Errorf("%s: %w: got %d", filepath.Base(path), sim.ErrSnapshotVersion, snapshot.Version)
	}
	return &snapshot, nil
}

// LatestSnapshot returns the path of the most advanced snapshot of seed in
// dir, or "" when there is none.
func LatestSnapshot(dir string, seed int64) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("snapshot_%d_*.json", seed)))
	if err != nil {
		return "", err
	}

	prefix := fmt.Sprintf("snapshot_%d_", seed)
	best, bestSubsteps := "", int64(-1)
	for _, m := range matches {
		num := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), ".json")
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			continue
		}
		if n > bestSubsteps {
			best, bestSubsteps = m, n
		}
	}
	return best, nil
}
