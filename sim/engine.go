package sim

import (
	"fmt"
	"math"
)

// Engine pairs a Simulation with the Scheduler that drives it. Hosts talk to
// the Engine; it routes the speed input to the scheduler.
type Engine struct {
	Sim       *Simulation
	Scheduler *Scheduler
}

// NewEngine creates an engine for sim using its simulation config.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:       sim,
		Scheduler: NewScheduler(sim, sim.Config().Simulation),
	}
}

// Advance forwards elapsed wall-clock seconds to the scheduler.
func (e *Engine) Advance(elapsed float64) int {
	return e.Scheduler.Advance(elapsed)
}

// CatchUp forwards elapsed seconds to the scheduler with a substep budget.
func (e *Engine) CatchUp(elapsed float64, budget int) int {
	return e.Scheduler.CatchUp(elapsed, budget)
}

// Apply applies a host input to the simulation and scheduler.
func (e *Engine) Apply(in Input) []string {
	warnings := e.Sim.ApplyInput(in)
	if in.Speed != nil {
		if math.IsNaN(*in.Speed) || math.IsInf(*in.Speed, 0) {
			warnings = append(warnings, fmt.Sprintf("input %q is not finite; keeping %v", "speed", e.Scheduler.Speed()))
		} else {
			e.Scheduler.SetSpeed(*in.Speed)
		}
	}
	return warnings
}

// Replace swaps in a restored simulation, keeping the scheduler's speed and
// callback but dropping pending time.
func (e *Engine) Replace(sim *Simulation) {
	speed := e.Scheduler.Speed()
	onStep := e.Scheduler.onStep
	e.Sim = sim
	e.Scheduler = NewScheduler(sim, sim.Config().Simulation)
	e.Scheduler.SetSpeed(speed)
	e.Scheduler.OnStep(onStep)
}
