package systems

import (
	"math"

	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

// CarbonBalance is the per-substep physiological result. Rates are per day.
type CarbonBalance struct {
	Photosynthesis   float64
	Respiration      float64
	NetCarbon        float64 // may be negative
	Stress           float64 // composite index, 0-100
	StressFraction   float64 // Stress / 100
	SeasonMultiplier float64
	GrowthFactor     float64 // 0 while dormant
}

// Physiology computes carbon balance and the composite stress index.
type Physiology struct {
	cfg     config.PhysiologyConfig
	seasons config.SeasonTable
}

// NewPhysiology creates the physiology engine.
func NewPhysiology(cfg *config.Config) *Physiology {
	return &Physiology{cfg: cfg.Physiology, seasons: cfg.Calendar.Seasons}
}

// Photosynthesis returns the gross carbon gain rate.
func (p *Physiology) Photosynthesis(env environment.Snapshot) float64 {
	waterFactor := math.Min(1, env.Water/math.Max(eps, p.cfg.WaterSaturation))
	return p.cfg.PhotosynthesisBase * env.Light / 100 * waterFactor * env.Soil / 100
}

// Respiration returns the maintenance carbon loss rate for totalBiomass kg.
func (p *Physiology) Respiration(temperature, totalBiomass float64) float64 {
	q := math.Pow(p.cfg.Q10, (temperature-p.cfg.ReferenceTemp)/10)
	return p.cfg.RespirationBase * q * totalBiomass / 100
}

// Stress returns the composite stress index in [0, cap].
func (p *Physiology) Stress(env environment.Snapshot, dormant bool) float64 {
	s := p.cfg.Stress
	var total float64

	if env.Water < s.WaterDeficitThreshold {
		total += (s.WaterDeficitThreshold - env.Water) * s.WaterDeficitWeight
	} else if env.Water > s.WaterExcessThreshold {
		total += (env.Water - s.WaterExcessThreshold) * s.WaterExcessWeight
	}

	var temp float64
	switch {
	case env.Temperature < s.ColdSevere || env.Temperature > s.HeatSevere:
		temp = s.SeverePenalty
	case env.Temperature < s.ColdModerate || env.Temperature > s.HeatModerate:
		temp = s.ModeratePenalty
	}
	if dormant {
		temp *= s.DormantTempScale
	}
	total += temp

	if env.Light < s.LightThreshold {
		total += (s.LightThreshold - env.Light) * s.LightWeight
	}

	if env.Stressors.Disease {
		total += s.Disease
	}
	if env.Stressors.Pests {
		total += s.Pests
	}
	if env.Stressors.Storm {
		total += s.Storm
	}
	if env.Stressors.Pollution {
		total += s.Pollution
	}
	return clamp(total, 0, s.Cap)
}

// Evaluate computes the carbon balance and net growth factor for one substep.
func (p *Physiology) Evaluate(env environment.Snapshot, dormant bool, totalBiomass float64) CarbonBalance {
	b := CarbonBalance{
		Photosynthesis:   finite(p.Photosynthesis(env), 0),
		Respiration:      finite(p.Respiration(env.Temperature, totalBiomass), 0),
		SeasonMultiplier: p.seasons.At(env.Season).GrowthMultiplier,
	}
	b.NetCarbon = b.Photosynthesis - b.Respiration
	b.Stress = p.Stress(env, dormant)
	b.StressFraction = b.Stress / 100

	if !dormant {
		raw := (b.NetCarbon*p.cfg.CarbonEfficiency - b.StressFraction*p.cfg.StressGrowthPenalty) * b.SeasonMultiplier
		b.GrowthFactor = math.Max(0, finite(raw, 0))
	}
	return b
}
