package systems

import (
	"testing"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	return cfg
}

func withSpecies(t *testing.T, name string) *config.Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Tree.Species = name
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("selecting %s: %v", name, err)
	}
	return cfg
}

func snapshot(season environment.Season, progress float64, c environment.Conditions) environment.Snapshot {
	return environment.Snapshot{Conditions: c, Season: season, SeasonProgress: progress}
}

func mild() environment.Conditions {
	return environment.Conditions{Light: 80, Water: 70, Temperature: 20, Soil: 60, Wind: 10, Humidity: 50}
}
