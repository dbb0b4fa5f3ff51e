package systems

import (
	"math"

	"github.com/pthm-cable/arbor/components"
	"github.com/pthm-cable/arbor/environment"
)

// Molar mass ratio O2/CO2.
const o2PerCO2 = 32.0 / 44.0

// UpdateExchange accumulates gas and water exchange over dt days.
func UpdateExchange(
	ex *components.Exchange,
	bal CarbonBalance,
	leaves float64,
	dormant bool,
	env environment.Snapshot,
	transpirationPerLeaf, dt float64,
) {
	absorbed := math.Max(0, bal.Photosynthesis) * dt
	ex.CO2Absorbed += absorbed
	ex.O2Produced += absorbed * o2PerCO2
	if !dormant {
		dryness := 1 - env.Humidity/100
		ex.WaterTranspired += math.Max(0, leaves*transpirationPerLeaf*dryness*dt)
	}
}
