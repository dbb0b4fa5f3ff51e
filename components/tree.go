package components

import "github.com/pthm-cable/arbor/environment"

// Morphology holds the tree's dimensions. Lengths are metres, DBH is cm.
type Morphology struct {
	Height      float64 `json:"height"`
	DBH         float64 `json:"dbh"`
	CrownRadius float64 `json:"crown_radius"`
	CrownHeight float64 `json:"crown_height"`
	RootDepth   float64 `json:"root_depth"`
	RootSpread  float64 `json:"root_spread"`
}

// Biomass holds compartment masses in kg.
// Heartwood + Sapwood == Trunk; Total is the sum of the four primary compartments.
type Biomass struct {
	Trunk     float64 `json:"trunk"`
	Branches  float64 `json:"branches"`
	Leaves    float64 `json:"leaves"`
	Roots     float64 `json:"roots"`
	Heartwood float64 `json:"heartwood"`
	Sapwood   float64 `json:"sapwood"`
	Total     float64 `json:"total"`
}

// Recompute restores Total after any compartment changes.
func (b *Biomass) Recompute() {
	b.Total = b.Trunk + b.Branches + b.Leaves + b.Roots
}

// Vitality holds the health indices, all in [0, 100].
type Vitality struct {
	Health       float64 `json:"health"`
	Vigor        float64 `json:"vigor"`
	WaterContent float64 `json:"water_content"`
	StressLevel  float64 `json:"stress_level"` // accumulated
	DiseaseLoad  float64 `json:"disease_load"`
	Chlorophyll  float64 `json:"chlorophyll"`
	Stress       float64 `json:"stress"` // last composite index
}

// Phenology holds the seasonal state. Foliage values are fractions in [0, 1].
type Phenology struct {
	Season         environment.Season `json:"season"`
	SeasonProgress float64            `json:"season_progress"`
	Dormant        bool               `json:"dormant"`
	BudBurst       bool               `json:"bud_burst"`
	Flowering      bool               `json:"flowering"`
	LeafSenescence bool               `json:"leaf_senescence"`
	FoliageDensity float64            `json:"foliage_density"`
	FoliageOpacity float64            `json:"foliage_opacity"`
}

// Exchange holds cumulative gas and water exchange in kg.
type Exchange struct {
	CO2Absorbed     float64 `json:"co2_absorbed"`
	O2Produced      float64 `json:"o2_produced"`
	WaterTranspired float64 `json:"water_transpired"`
	CarbonStored    float64 `json:"carbon_stored"`
}
