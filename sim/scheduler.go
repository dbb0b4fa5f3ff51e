package sim

import (
	"math"

	"github.com/pthm-cable/arbor/config"
)

// Stepper executes one fixed substep.
type Stepper interface {
	Step() StepReport
}

// Scheduler converts wall-clock elapsed time into fixed substeps. It carries
// leftover time between calls and never touches tree or environment state.
type Scheduler struct {
	stepper     Stepper
	dt          float64
	maxSubsteps int
	maxBacklog  float64
	maxSpeed    float64
	speed       float64
	pending     float64
	dropped     float64
	onStep      func(StepReport)
}

// NewScheduler creates a scheduler driving stepper.
func NewScheduler(stepper Stepper, cfg config.SimulationConfig) *Scheduler {
	s := &Scheduler{
		stepper:     stepper,
		dt:          1 / float64(max(1, cfg.SubstepsPerSecond)),
		maxSubsteps: max(1, cfg.MaxSubsteps),
		maxSpeed:    cfg.MaxSpeed,
	}
	// The backlog always holds at least one full call's worth of substeps.
	s.maxBacklog = math.Max(cfg.MaxBacklog, float64(s.maxSubsteps)*s.dt)
	if s.maxSpeed <= 0 {
		s.maxSpeed = 100
	}
	s.SetSpeed(cfg.Speed)
	return s
}

// OnStep registers a callback invoked with every substep report.
func (s *Scheduler) OnStep(fn func(StepReport)) {
	s.onStep = fn
}

// DT returns the substep length in scheduler seconds.
func (s *Scheduler) DT() float64 {
	return s.dt
}

// Speed returns the time multiplier.
func (s *Scheduler) Speed() float64 {
	return s.speed
}

// SetSpeed sets the time multiplier, clamped to [0, max speed]. Non-finite
// values are ignored.
func (s *Scheduler) SetSpeed(speed float64) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return
	}
	s.speed = math.Max(0, math.Min(s.maxSpeed, speed))
}

// Pending returns the accumulated time not yet consumed by substeps.
func (s *Scheduler) Pending() float64 {
	return s.pending
}

// Dropped returns the scheduler time discarded because the backlog was
// full.
func (s *Scheduler) Dropped() float64 {
	return s.dropped
}

// Advance accumulates elapsed×speed and runs as many substeps as fit, up to
// the per-call cap. Time left over beyond the backlog bound is dropped.
// Negative or non-finite elapsed is ignored.
func (s *Scheduler) Advance(elapsed float64) int {
	return s.run(elapsed, s.maxSubsteps, false)
}

// CatchUp is Advance with a caller-chosen substep budget in place of the
// per-call cap. It stops early once the stepper reports a skipped substep.
func (s *Scheduler) CatchUp(elapsed float64, budget int) int {
	return s.run(elapsed, budget, true)
}

func (s *Scheduler) run(elapsed float64, limit int, stopOnSkip bool) int {
	if !(elapsed >= 0) || math.IsInf(elapsed, 0) {
		return 0
	}
	s.pending += elapsed * s.speed

	n := 0
	for s.pending >= s.dt && n < limit {
		r := s.stepper.Step()
		s.pending -= s.dt
		n++
		if s.onStep != nil {
			s.onStep(r)
		}
		if stopOnSkip && r.Skipped {
			break
		}
	}

	if s.pending > s.maxBacklog {
		s.dropped += s.pending - s.maxBacklog
		s.pending = s.maxBacklog
	}
	return n
}
