package runner

import (
	"context"
	"runtime"
	"sync"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/scenario"
	"github.com/pthm-cable/arbor/telemetry"
)

// CohortOptions configures a cohort of independent trees. Tree i uses seed
// BaseSeed + i.
type CohortOptions struct {
	Size     int
	Workers  int // 0 = GOMAXPROCS
	BaseSeed int64
	Days     float64
	Scenario *scenario.Script

	// OnDone is called from worker goroutines as each tree finishes.
	OnDone func(index int, ls telemetry.LifetimeStats)
}

// CohortResult holds per-tree summaries in seed order and their aggregate.
type CohortResult struct {
	Runs  []telemetry.LifetimeStats
	Stats telemetry.CohortStats
}

// cohortJob is one tree for a worker to simulate.
type cohortJob struct {
	index int
	seed  int64
}

// RunCohort simulates every tree of the cohort on a pool of workers. The
// result does not depend on the worker count. A cancelled context stops
// workers from starting new trees and returns ctx.Err().
func RunCohort(ctx context.Context, cfg *config.Config, opts CohortOptions) (CohortResult, error) {
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > opts.Size {
		numWorkers = opts.Size
	}

	runs := make([]telemetry.LifetimeStats, opts.Size)
	jobs := make(chan cohortJob, numWorkers)
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue
				}
				run := New(cfg, Options{Seed: job.seed, Scenario: opts.Scenario})
				runs[job.index] = run.RunFor(opts.Days)
				if opts.OnDone != nil {
					opts.OnDone(job.index, runs[job.index])
				}
			}
		}()
	}

feed:
	for i := 0; i < opts.Size; i++ {
		select {
		case jobs <- cohortJob{index: i, seed: opts.BaseSeed + int64(i)}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return CohortResult{}, err
	}
	return CohortResult{
		Runs:  runs,
		Stats: telemetry.ComputeCohortStats(runs),
	}, nil
}
