package systems

import (
	"math"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

// Vitality tracks health, vigor, accumulated stress, disease and foliage.
type Vitality struct {
	cfg       config.VitalityConfig
	phenology config.PhenologyConfig
	species   config.Species
}

// NewVitality creates the vitality tracker.
func NewVitality(cfg *config.Config) *Vitality {
	return &Vitality{cfg: cfg.Vitality, phenology: cfg.Phenology, species: cfg.Derived.Species}
}

// Update advances vitality and foliage by dt days. noise is a standard
// normal sample supplied by the caller.
func (v *Vitality) Update(
	vit *components.Vitality,
	ph *components.Phenology,
	env environment.Snapshot,
	bal CarbonBalance,
	traits components.Traits,
	noise, dt float64,
) {
	c := v.cfg
	sigma := bal.StressFraction
	ngf := bal.GrowthFactor

	// Recovery comes from photosynthesis and from headroom below the stress ceiling.
	recovery := bal.Photosynthesis*c.RecoveryPhotosynthesis + (100-vit.StressLevel)*c.RecoveryStress
	healthDelta := ngf*c.GrowthHealthGain + recovery*c.RecoveryWeight - sigma*c.StressHealthLoss
	health := vit.Health + healthDelta*dt + finite(noise, 0)*c.NoiseSigma*dt
	vit.Health = clampPercent(finite(health, vit.Health))

	// Vigor and stress are exponential moving averages.
	vit.Vigor = clampPercent(finite(vit.Vigor*c.VigorRetention+vit.Health*ngf*(1-c.VigorRetention), vit.Vigor))
	vit.StressLevel = clampPercent(finite(vit.StressLevel*c.StressRetention+sigma*c.StressAccumulation*dt, vit.StressLevel))

	// Infection grows faster in weak, susceptible trees and decays once cleared.
	if env.Stressors.Disease {
		growth := c.DiseaseGrowth * (1 - vit.Health/100) * (1 - traits.DiseaseResistance)
		vit.DiseaseLoad += (growth + c.DiseaseFloor) * dt
	} else {
		vit.DiseaseLoad -= vit.DiseaseLoad * c.DiseaseDecay * dt
	}
	vit.DiseaseLoad = clampPercent(vit.DiseaseLoad)

	vit.WaterContent = clampPercent(approach(vit.WaterContent, env.Water, c.WaterAlpha))
	vit.Stress = bal.Stress

	// Opacity tracks sqrt(density) so thin canopies still read as leafy.
	density := v.FoliageTarget(env, vit.Health, bal.Stress)
	ph.FoliageDensity = clamp01(approach(ph.FoliageDensity, density, c.DensityAlpha))
	ph.FoliageOpacity = clamp01(approach(ph.FoliageOpacity, math.Sqrt(density), c.OpacityAlpha))

	chlorophyll := 100 * ph.FoliageDensity * vit.Health / 100
	vit.Chlorophyll = clampPercent(approach(vit.Chlorophyll, chlorophyll, c.ChlorophyllAlpha))
}

// FoliageTarget returns the foliage density the canopy relaxes toward.
func (v *Vitality) FoliageTarget(env environment.Snapshot, health, stress float64) float64 {
	retention := clamp01(v.species.LeafRetention)

	var seasonal float64
	switch env.Season {
	case environment.Spring:
		// bud burst ramps from retained foliage to full canopy
		ramp := env.SeasonProgress / math.Max(eps, v.phenology.BudBurstWindow)
		seasonal = retention + (1-retention)*math.Min(1, ramp)
	case environment.Summer:
		seasonal = 1
	case environment.Autumn:
		seasonal = 1
		if start := v.phenology.SenescenceStart; env.SeasonProgress >= start {
			// linear fade toward the retained fraction
			fade := (env.SeasonProgress - start) / math.Max(eps, 1-start)
			seasonal = 1 - (1-retention)*clamp01(fade)
		}
	default:
		seasonal = retention
	}
	if v.species.Evergreen {
		seasonal = math.Max(seasonal, math.Min(1, retention+v.cfg.EvergreenRetention))
	}

	// Stress past the threshold sheds leaves proportionally.
	target := seasonal * health / 100
	if stress > v.cfg.FoliageStressThreshold {
		target *= 1 - (stress-v.cfg.FoliageStressThreshold)/100
	}
	return clamp01(target)
}
