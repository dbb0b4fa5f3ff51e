package main

import (
	"context"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/runner"
	"github.com/pthm-cable/arbor/telemetry"
)

// Targets are the cohort outcomes the calibration fits.
type Targets struct {
	MedianLifespan float64 // years, survivors counted at the horizon
	Survival       float64 // fraction alive at the horizon
}

// Evaluation is the outcome of one parameter vector.
type Evaluation struct {
	Params         []float64
	Fitness        float64
	MedianLifespan float64
	Survival       float64
	Curve          []float64 // fraction alive at the end of each year
	Stats          telemetry.CohortStats
}

// FitnessEvaluator runs cohorts and scores them against targets.
type FitnessEvaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	targets    Targets
	cohort     runner.CohortOptions
	years      int

	mu   sync.Mutex
	best *Evaluation
	last Evaluation
}

// NewFitnessEvaluator creates a new evaluator. Every evaluation reuses the
// same seeds so fitness differences come from the parameters alone.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, targets Targets, size, workers int, baseSeed int64, years int) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		baseConfig: baseCfg,
		targets:    targets,
		years:      years,
		cohort: runner.CohortOptions{
			Size:     size,
			Workers:  workers,
			BaseSeed: baseSeed,
			Days:     float64(years * baseCfg.Derived.Calendar.DaysPerYear()),
		},
	}
}

// Best returns the best evaluation so far, or nil.
func (fe *FitnessEvaluator) Best() *Evaluation {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.best
}

// Last returns the most recent evaluation.
func (fe *FitnessEvaluator) Last() Evaluation {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// Evaluate computes fitness for raw parameter values (lower = better).
func (fe *FitnessEvaluator) Evaluate(ctx context.Context, x []float64) (float64, error) {
	cfg := *fe.baseConfig
	fe.params.ApplyToConfig(&cfg, x)

	res, err := runner.RunCohort(ctx, &cfg, fe.cohort)
	if err != nil {
		return math.Inf(1), err
	}

	ev := Evaluation{
		Params:         fe.params.Clamp(x),
		MedianLifespan: medianLifespan(res.Runs, float64(fe.years)),
		Survival:       res.Stats.SurvivalFraction,
		Curve:          survivalCurve(res.Runs, fe.years),
		Stats:          res.Stats,
	}
	ev.Fitness = fe.targets.score(ev.MedianLifespan, ev.Survival)

	fe.mu.Lock()
	fe.last = ev
	if fe.best == nil || ev.Fitness < fe.best.Fitness {
		best := ev
		fe.best = &best
	}
	fe.mu.Unlock()
	return ev.Fitness, nil
}

// score is the squared relative lifespan error plus the squared survival
// error.
func (t Targets) score(median, survival float64) float64 {
	var f float64
	if t.MedianLifespan > 0 {
		d := (median - t.MedianLifespan) / t.MedianLifespan
		f += d * d
	}
	d := survival - t.Survival
	return f + d*d
}

// medianLifespan treats survivors as living to the horizon, so the median
// saturates at horizon once half the cohort survives.
func medianLifespan(runs []telemetry.LifetimeStats, horizon float64) float64 {
	if len(runs) == 0 {
		return 0
	}
	ages := make([]float64, len(runs))
	for i, r := range runs {
		if r.Alive {
			ages[i] = horizon
		} else {
			ages[i] = r.AgeYears
		}
	}
	sort.Float64s(ages)
	return stat.Quantile(0.5, stat.Empirical, ages, nil)
}

// survivalCurve returns the fraction of the cohort alive at the end of
// each simulated year.
func survivalCurve(runs []telemetry.LifetimeStats, years int) []float64 {
	if years <= 0 || len(runs) == 0 {
		return nil
	}
	deaths := make([]float64, years)
	for _, r := range runs {
		if r.Alive {
			continue
		}
		y := min(max(int(r.AgeYears), 0), years-1)
		deaths[y]++
	}
	dead := make([]float64, years)
	floats.CumSum(dead, deaths)

	curve := make([]float64, years)
	floats.AddConst(-float64(len(runs)), dead)
	floats.ScaleTo(curve, -1/float64(len(runs)), dead)
	return curve
}
