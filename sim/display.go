package sim

import "fmt"

// Display thresholds.
const (
	seedlingAge    = 1.0
	saplingAge     = 10.0
	youngAge       = 40.0
	dyingHealth    = 25.0
	stressedIndex  = 40.0
	diseasedLoad   = 30.0
	thrivingHealth = 80.0
)

// LifeStage classifies the tree by age.
func (s *Simulation) LifeStage() string {
	t := s.Tree()
	return lifeStage(t, s.mortality.Params.SenescenceStartAge)
}

func lifeStage(t TreeState, senescenceStart float64) string {
	age := t.Life.Age
	switch {
	case !t.Life.Alive:
		return "Dead"
	case age < seedlingAge:
		return "Seedling"
	case age < saplingAge:
		return "Sapling"
	case age < youngAge:
		return "Young"
	case age < senescenceStart:
		return "Mature"
	default:
		return "Ancient"
	}
}

// Status returns the most salient condition of the tree.
func (s *Simulation) Status() string {
	return status(s.Tree())
}

func status(t TreeState) string {
	v := t.Vitality
	p := t.Phenology
	switch {
	case !t.Life.Alive:
		return fmt.Sprintf("Dead (%s)", t.Life.Cause)
	case p.Dormant:
		return "Dormant"
	case v.Health < dyingHealth:
		return "Dying"
	case v.Stress >= stressedIndex:
		return "Stressed"
	case v.DiseaseLoad >= diseasedLoad:
		return "Diseased"
	case p.Flowering:
		return "Flowering"
	case p.BudBurst:
		return "Budding"
	case p.LeafSenescence:
		return "Senescing"
	case v.Health >= thrivingHealth:
		return "Thriving"
	default:
		return "Healthy"
	}
}

// Display is the presentation view consumed by UI hosts.
type Display struct {
	LifeStage  string  `json:"life_stage"`
	Status     string  `json:"status"`
	Season     string  `json:"season"`
	Year       int     `json:"year"`
	Day        int     `json:"day"`
	Age        float64 `json:"age"`
	Height     float64 `json:"height"`
	DBH        float64 `json:"dbh"`
	Health     float64 `json:"health"`
	Foliage    float64 `json:"foliage"`
	Opacity    float64 `json:"opacity"`
	TotalMass  float64 `json:"total_biomass"`
	CarbonKg   float64 `json:"carbon_stored"`
	Alive      bool    `json:"alive"`
	DeathCause string  `json:"death_cause,omitempty"`
}

// Display returns the presentation view of the current state.
func (s *Simulation) Display() Display {
	t := s.Tree()
	d := Display{
		LifeStage: lifeStage(t, s.mortality.Params.SenescenceStartAge),
		Status:    status(t),
		Season:    t.Phenology.Season.String(),
		Year:      s.clock.Year,
		Day:       int(s.clock.Day),
		Age:       t.Life.Age,
		Height:    t.Morphology.Height,
		DBH:       t.Morphology.DBH,
		Health:    t.Vitality.Health,
		Foliage:   t.Phenology.FoliageDensity,
		Opacity:   t.Phenology.FoliageOpacity,
		TotalMass: t.Biomass.Total,
		CarbonKg:  t.Exchange.CarbonStored,
		Alive:     t.Life.Alive,
	}
	if !t.Life.Alive {
		d.DeathCause = t.Life.Cause.String()
	}
	return d
}
