package systems

import (
	"math"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/config"
	"github.com/pthm-cable/arbor/environment"
)

// Growth converts the net growth factor into size and biomass increments.
type Growth struct {
	cfg     config.GrowthConfig
	species config.Species
	seasons config.SeasonTable
}

// NewGrowth creates the growth allocator for the configured species.
func NewGrowth(cfg *config.Config) *Growth {
	return &Growth{cfg: cfg.Growth, species: cfg.Derived.Species, seasons: cfg.Calendar.Seasons}
}

// CanGrow reports whether the growth gate is open.
func (g *Growth) CanGrow(bal CarbonBalance, health float64, dormant bool) bool {
	return bal.GrowthFactor > 0 && health > g.cfg.MinHealth && !dormant
}

// ExpectedDBH returns the allometric diameter (cm) for a height (m).
func (g *Growth) ExpectedDBH(height float64) float64 {
	return math.Pow(math.Max(0, height), g.cfg.DBHExponent) * g.cfg.DBHCoefficient
}

// Update applies one substep of growth over dt days and returns the biomass
// increment in kg. Heartwood conversion runs even when the gate is closed.
func (g *Growth) Update(
	m *components.Morphology,
	b *components.Biomass,
	ex *components.Exchange,
	vit components.Vitality,
	life components.Life,
	traits components.Traits,
	env environment.Snapshot,
	bal CarbonBalance,
	dormant bool,
	dt float64,
) float64 {
	var increment float64
	if g.CanGrow(bal, vit.Health, dormant) {
		ngf := bal.GrowthFactor
		c := g.cfg

		// Height growth slows quadratically as the tree nears its species ceiling.
		room := 1 - m.Height/math.Max(eps, g.species.MaxHeight)
		room = math.Max(0, room)
		dh := g.species.HeightGrowthRate * traits.GrowthVigor * ngf * room * room * dt
		m.Height += math.Max(0, finite(dh, 0))

		// DBH closes the gap to the allometric diameter, plus a small baseline
		// so a tree at its expected girth still thickens.
		gap := math.Max(0, g.ExpectedDBH(m.Height)-m.DBH)
		dd := (c.DBHRate*gap*ngf + c.DBHBase*ngf) * dt
		m.DBH += math.Max(0, finite(dd, 0))

		m.CrownRadius = m.Height * c.CrownRadiusRatio * (0.6 + 0.4*vit.Health/100)
		m.CrownHeight = m.Height * c.CrownHeightRatio * (0.7 + 0.3*vit.Health/100)

		// Roots never shrink; depth is capped by height and spread by crown.
		soil := env.Soil / 100
		depth := m.RootDepth + c.RootDepthRate*ngf*soil*dt
		m.RootDepth = math.Max(m.RootDepth, math.Min(depth, m.Height*c.RootDepthCap))
		spread := m.RootSpread + c.RootSpreadRate*ngf*soil*dt
		m.RootSpread = math.Max(m.RootSpread, math.Min(spread, m.CrownRadius*c.RootSpreadCap))

		increment = math.Max(0, finite(g.species.BiomassGrowthRate*ngf*dt, 0))
		alloc := g.seasons.At(env.Season).Allocation
		b.Trunk += increment * alloc.Trunk
		b.Sapwood += increment * alloc.Trunk // new trunk wood starts as sapwood
		b.Branches += increment * alloc.Branches
		b.Leaves += increment * alloc.Leaves
		b.Roots += increment * alloc.Roots

		ex.CarbonStored += increment * c.CarbonFraction
	}

	// Mature sapwood lignifies into heartwood.
	if life.Age > g.cfg.HeartwoodAge && b.Sapwood > 0 {
		converted := math.Min(b.Sapwood, b.Sapwood*g.cfg.HeartwoodRate*dt)
		b.Sapwood -= converted
		b.Heartwood += converted
	}
	b.Recompute()
	return increment
}
