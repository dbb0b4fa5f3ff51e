package systems

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

// MortalityParams configure the hazard model. They change only through an
// explicit reconfiguration.
type MortalityParams struct {
	Enabled            bool    `json:"enabled"`
	BaseRate           float64 `json:"base_rate"`
	SenescenceStartAge float64 `json:"senescence_start_age"`
	MaxAge             float64 `json:"max_age"`
	AgeTolerance       float64 `json:"age_tolerance"`
	SenescenceWeight   float64 `json:"senescence_weight"`
	StressWeight       float64 `json:"stress_weight"`
	DroughtThreshold   float64 `json:"drought_threshold"`
	DroughtWeight      float64 `json:"drought_weight"`
	HeatStressTemp     float64 `json:"heat_stress_temp"`
	HeatWeight         float64 `json:"heat_weight"`
	DiseaseRate        float64 `json:"disease_rate"`
	StormFrequency     float64 `json:"storm_frequency"`
	WindThreshold      float64 `json:"wind_threshold"`
	WindRange          float64 `json:"wind_range"`
	StormMultiplier    float64 `json:"storm_multiplier"`
	FireWaterThreshold float64 `json:"fire_water_threshold"`
	FireTempThreshold  float64 `json:"fire_temp_threshold"`
	FireTempRange      float64 `json:"fire_temp_range"`
	FireWeight         float64 `json:"fire_weight"`
	FireResistance     float64 `json:"fire_resistance"`
	WindResistance     float64 `json:"windthrow_resistance"`
	MaxHeight          float64 `json:"max_height"`
	HazardCap          float64 `json:"hazard_cap"`
}

// NewMortalityParams builds the hazard parameters from config and the
// configured species.
func NewMortalityParams(cfg *config.Config) MortalityParams {
	m := cfg.Mortality
	sp := cfg.Derived.Species
	return MortalityParams{
		Enabled:            m.Enabled,
		BaseRate:           m.BaseRate,
		SenescenceStartAge: m.SenescenceStartAge,
		MaxAge:             m.MaxAge,
		AgeTolerance:       m.AgeTolerance,
		SenescenceWeight:   m.SenescenceWeight,
		StressWeight:       m.StressWeight,
		DroughtThreshold:   m.DroughtThreshold,
		DroughtWeight:      m.DroughtWeight,
		HeatStressTemp:     m.HeatStressTemp,
		HeatWeight:         m.HeatWeight,
		DiseaseRate:        m.DiseaseRate,
		StormFrequency:     m.StormFrequency,
		WindThreshold:      m.WindThreshold,
		WindRange:          m.WindRange,
		StormMultiplier:    m.StormMultiplier,
		FireWaterThreshold: m.FireWaterThreshold,
		FireTempThreshold:  m.FireTempThreshold,
		FireTempRange:      m.FireTempRange,
		FireWeight:         m.FireWeight,
		FireResistance:     sp.FireResistance,
		WindResistance:     sp.WindthrowResistance,
		MaxHeight:          sp.MaxHeight,
		HazardCap:          m.HazardCap,
	}
}

// Hazards holds the annualized hazard components, each ≥ 0.
type Hazards struct {
	Base       float64 `json:"base"`
	Senescence float64 `json:"senescence"`
	Stress     float64 `json:"stress"`
	Drought    float64 `json:"drought"`
	Heat       float64 `json:"heat"`
	Disease    float64 `json:"disease"`
	Windthrow  float64 `json:"windthrow"`
	Fire       float64 `json:"fire"`
}

// Sum returns the uncapped total hazard.
func (h Hazards) Sum() float64 {
	return h.Base + h.Senescence + h.Stress + h.Drought + h.Heat + h.Disease + h.Windthrow + h.Fire
}

// Cause attributes a death to the highest-priority active component:
// windthrow, fire, disease, drought, heat, senescence, then generic stress.
func (h Hazards) Cause() components.DeathCause {
	switch {
	case h.Windthrow > 0:
		return components.CauseWindthrow
	case h.Fire > 0:
		return components.CauseFire
	case h.Disease > 0:
		return components.CauseDisease
	case h.Drought > 0:
		return components.CauseDrought
	case h.Heat > 0:
		return components.CauseHeatStress
	case h.Senescence > 0:
		return components.CauseSenescence
	default:
		return components.CauseStress
	}
}

// MortalityInput is the tree state read by the hazard model.
type MortalityInput struct {
	Age               float64
	Height            float64
	Health            float64
	StressLevel       float64
	DiseaseLoad       float64
	DiseaseResistance float64
}

// Hazards evaluates every component for the given state and environment.
func (p MortalityParams) Hazards(in MortalityInput, env environment.Snapshot) Hazards {
	var h Hazards
	h.Base = math.Max(0, p.BaseRate)

	if in.Age > p.SenescenceStartAge {
		span := math.Max(eps, p.MaxAge-p.SenescenceStartAge)
		r := (in.Age - p.SenescenceStartAge) / span
		h.Senescence = p.SenescenceWeight * r * r
	}

	s := in.StressLevel / 100
	h.Stress = p.StressWeight * s * s

	if env.Water < p.DroughtThreshold {
		h.Drought = p.DroughtWeight * (p.DroughtThreshold - env.Water) / math.Max(eps, p.DroughtThreshold)
	}

	if env.Temperature > p.HeatStressTemp {
		h.Heat = p.HeatWeight * (env.Temperature - p.HeatStressTemp)
	}

	if env.Stressors.Disease {
		h.Disease = p.DiseaseRate * (1 - in.Health/100) * (1 - in.DiseaseResistance) * (1 + in.DiseaseLoad/100)
	}

	if env.Wind > p.WindThreshold {
		storm := 1.0
		if env.Stressors.Storm {
			storm = p.StormMultiplier
		}
		h.Windthrow = p.StormFrequency * (env.Wind - p.WindThreshold) / math.Max(eps, p.WindRange) *
			in.Height / math.Max(eps, p.MaxHeight) * (1 - p.WindResistance) * storm
	}

	if env.Water < p.FireWaterThreshold && env.Temperature > p.FireTempThreshold {
		h.Fire = p.FireWeight *
			(p.FireWaterThreshold - env.Water) / math.Max(eps, p.FireWaterThreshold) *
			(env.Temperature - p.FireTempThreshold) / math.Max(eps, p.FireTempRange) *
			(1 - p.FireResistance)
	}

	h.Base = math.Max(0, finite(h.Base, 0))
	h.Senescence = math.Max(0, finite(h.Senescence, 0))
	h.Stress = math.Max(0, finite(h.Stress, 0))
	h.Drought = math.Max(0, finite(h.Drought, 0))
	h.Heat = math.Max(0, finite(h.Heat, 0))
	h.Disease = math.Max(0, finite(h.Disease, 0))
	h.Windthrow = math.Max(0, finite(h.Windthrow, 0))
	h.Fire = math.Max(0, finite(h.Fire, 0))
	return h
}

// TotalHazard returns the capped annual hazard.
func (p MortalityParams) TotalHazard(h Hazards) float64 {
	return math.Min(h.Sum(), p.HazardCap)
}

// IsOldAge reports whether age has reached the maximum lifespan.
func (p MortalityParams) IsOldAge(age float64) bool {
	return age >= p.MaxAge-p.AgeTolerance
}

// DeathProbability converts an annual hazard into the probability of at
// least one event within dtYears: 1 - exp(-hazard*dtYears).
func DeathProbability(hazard, dtYears float64) float64 {
	if !(hazard > 0) || !(dtYears > 0) {
		return 0
	}
	return distuv.Exponential{Rate: hazard}.CDF(dtYears)
}

// MortalityOutcome reports one substep of the hazard model.
type MortalityOutcome struct {
	Died        bool
	Cause       components.DeathCause
	Hazards     Hazards
	Hazard      float64 // capped annual total
	Probability float64
	Sampled     bool // whether a uniform draw was consumed
}

// Mortality samples death from the hazard model.
type Mortality struct {
	Params MortalityParams
}

// NewMortality creates the hazard model from config.
func NewMortality(cfg *config.Config) *Mortality {
	return &Mortality{Params: NewMortalityParams(cfg)}
}

// Evaluate runs the two-state model for one substep. The max-age rule
// applies even when the hazard model is disabled. uniform is called at
// most once, and only when the model is enabled and old age did not fire.
func (m *Mortality) Evaluate(in MortalityInput, env environment.Snapshot, dtYears float64, uniform func() float64) MortalityOutcome {
	p := m.Params
	if p.IsOldAge(in.Age) {
		return MortalityOutcome{Died: true, Cause: components.CauseOldAge, Probability: 1}
	}
	if !p.Enabled {
		return MortalityOutcome{}
	}

	out := MortalityOutcome{Hazards: p.Hazards(in, env)}
	out.Hazard = p.TotalHazard(out.Hazards)
	out.Probability = DeathProbability(out.Hazard, dtYears)
	out.Sampled = true
	if uniform() < out.Probability {
		out.Died = true
		out.Cause = out.Hazards.Cause()
	}
	return out
}
