package sim

import (
	"testing"

	"github.com/pthm-cable/arbor/config"
)

func testConfig(t *testing.T, mutate func(c *config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Finalize(); err != nil {
			t.Fatalf("finalizing config: %v", err)
		}
	}
	return cfg
}

func float(v float64) *float64 { return &v }

func boolean(v bool) *bool { return &v }
