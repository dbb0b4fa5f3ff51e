package sim

// PhaseInfo describes one phase of the update chain for perf output and
// the HTTP surface.
type PhaseInfo struct {
	ID          string `json:"id"`          // Internal identifier (used for perf tracking)
	Name        string `json:"name"`        // Display name
	Description string `json:"description"` // What this phase does
	Category    string `json:"category"`    // Grouping (e.g., "environment", "tree")
}

// phaseRegistry lists every phase in update-chain order.
var phaseRegistry = []PhaseInfo{
	{ID: PhaseCalendar, Name: "Calendar", Description: "Advances the clock and classifies the season", Category: "environment"},
	{ID: PhasePhenology, Name: "Phenology", Description: "Dormancy, bud burst, flowering and leaf senescence", Category: "tree"},
	{ID: PhasePhysiology, Name: "Physiology", Description: "Photosynthesis, respiration and stress", Category: "tree"},
	{ID: PhaseMortality, Name: "Mortality", Description: "Hazard and death sampling", Category: "tree"},
	{ID: PhaseGrowth, Name: "Growth", Description: "Carbon allocation to organs and dimensions", Category: "tree"},
	{ID: PhaseVitality, Name: "Vitality", Description: "Health, vigor, disease and foliage", Category: "tree"},
	{ID: PhaseExchange, Name: "Exchange", Description: "CO2 absorbed, O2 produced and water transpired", Category: "environment"},
}

// Phases returns metadata for every phase in update-chain order.
func Phases() []PhaseInfo {
	out := make([]PhaseInfo, len(phaseRegistry))
	copy(out, phaseRegistry)
	return out
}

// PhaseIDs returns all phase IDs in update-chain order.
func PhaseIDs() []string {
	ids := make([]string, len(phaseRegistry))
	for i, info := range phaseRegistry {
		ids[i] = info.ID
	}
	return ids
}

// PhaseName returns the display name for a phase ID.
// Falls back to the ID itself if not found.
func PhaseName(id string) string {
	for _, info := range phaseRegistry {
		if info.ID == id {
			return info.Name
		}
	}
	return id
}
