// Package systems implements the per-substep tree physiology: phenology,
// carbon balance, vitality, growth allocation and the mortality hazard model.
package systems

import (
	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

// Phenology classifies dormancy and the seasonal flags.
type Phenology struct {
	cfg     config.PhenologyConfig
	species config.Species
}

// NewPhenology creates the phenology system for the configured species.
func NewPhenology(cfg *config.Config) *Phenology {
	return &Phenology{cfg: cfg.Phenology, species: cfg.Derived.Species}
}

// DormancyFloor returns the temperature below which the tree goes dormant.
func (p *Phenology) DormancyFloor() float64 {
	if p.species.Evergreen {
		return p.species.DormancyTemperature - p.cfg.EvergreenFloorOffset
	}
	return p.species.DormancyTemperature
}

// IsDormant reports whether the tree is dormant under env.
// Deciduous trees are always dormant in Winter and late Autumn; evergreens
// only below their lowered temperature floor.
func (p *Phenology) IsDormant(env environment.Snapshot) bool {
	if env.Temperature < p.DormancyFloor() {
		return true
	}
	if p.species.Evergreen {
		return false
	}
	switch env.Season {
	case environment.Winter:
		return true
	case environment.Autumn:
		return env.SeasonProgress > p.cfg.LateAutumnDormancy
	}
	return false
}

// Update writes season, dormancy and flags into ph. Foliage is left to Vitality.
func (p *Phenology) Update(ph *components.Phenology, env environment.Snapshot, age, health float64) {
	ph.Season = env.Season
	ph.SeasonProgress = env.SeasonProgress
	ph.Dormant = p.IsDormant(env)

	spring := env.Season == environment.Spring
	ph.BudBurst = !ph.Dormant && spring && env.SeasonProgress < p.cfg.BudBurstWindow

	floweringWindow := (spring && env.SeasonProgress >= p.cfg.BudBurstWindow) ||
		(env.Season == environment.Summer && env.SeasonProgress < p.cfg.FloweringSummerWindow)
	ph.Flowering = !ph.Dormant && floweringWindow &&
		age >= p.species.FloweringMinAge && health >= p.cfg.FloweringMinHealth

	ph.LeafSenescence = !p.species.Evergreen &&
		env.Season == environment.Autumn && env.SeasonProgress >= p.cfg.SenescenceStart
}
