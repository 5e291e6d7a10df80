package stability

import (
	"fmt"
	"math"

	"github.com/stackscout/scout/internal/types"
)

// minAdoptionsForCalibration is the sample size below which historical
// accuracy stats are too noisy to act on.
const minAdoptionsForCalibration = 2

// overestimateShrinkFloor caps how aggressively a history of
// overestimation may shrink new estimates. Growing estimates tracks the
// accuracy ratio directly; shrinking them is deliberately damped, since
// an optimistic pipeline is worse than a pessimistic one.
const overestimateShrinkFloor = 0.7

// CalibrateEffort adjusts the effort interval in place using the
// project's historical estimate-accuracy stats, and returns a note
// describing the adjustment (empty when nothing changed).
//
// Both ends of the interval are calibrated component-wise so the range
// stays a range.
func CalibrateEffort(e *types.EffortEstimate, stats types.CalibrationStats) string {
	if stats.Adoptions < minAdoptionsForCalibration {
		return ""
	}

	switch stats.Bias {
	case "underestimate":
		e.Scale(stats.AccuracyRatio)
		e.CalibrationNote = fmt.Sprintf("scaled x%.2f: %d past adoptions averaged %.2fx their estimates",
			stats.AccuracyRatio, stats.Adoptions, stats.AccuracyRatio)
		return "effort " + e.CalibrationNote

	case "overestimate":
		factor := math.Max(overestimateShrinkFloor, 1-math.Abs(stats.AccuracyRatio-1)*0.5)
		e.Scale(factor)
		e.CalibrationNote = fmt.Sprintf("scaled x%.2f: past estimates ran high (accuracy %.2f), damped shrink",
			factor, stats.AccuracyRatio)
		return "effort " + e.CalibrationNote

	case "balanced":
		e.CalibrationNote = fmt.Sprintf("estimates historically accurate over %d adoptions; no adjustment", stats.Adoptions)
		return "effort " + e.CalibrationNote

	default:
		return ""
	}
}
