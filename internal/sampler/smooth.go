package sampler

import (
	"math"
	"time"
)

// SnapEpsilon is the distance below which Advance lands exactly on the target.
const SnapEpsilon = 0.01

// Advance moves current toward target by dt*rate of the remaining distance.
// Within SnapEpsilon it returns target exactly. The step is capped at the
// full distance so a long frame never overshoots.
func Advance(current, target float64, dt time.Duration, rate float64) float64 {
	if math.Abs(target-current) < SnapEpsilon {
		return target
	}
	step := dt.Seconds() * rate
	if step <= 0 {
		return current
	}
	if step > 1 {
		step = 1
	}
	return current + (target-current)*step
}
