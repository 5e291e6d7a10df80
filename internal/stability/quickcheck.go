package stability

import (
	"fmt"

	"github.com/stackscout/scout/internal/types"
)

// Quick-check bounds. These are conservative on purpose: the quick check
// exists to save enrichment cost and must never reject an item the full
// gate would have recommended.
const (
	quickCheckMinScore        = 0.2
	quickCheckMinScoreHealthy = 0.4
)

// QuickCheckResult is the pre-enrichment short-circuit decision
type QuickCheckResult struct {
	Proceed bool
	Reason  string
}

// QuickCheck decides, before paying for enrichment, whether an item has
// any chance of surviving the full gate. It fails closed on a maturity
// gate failure (which forces DEFER regardless of costs), on a weak match
// score, or on a weak-ish score against a very healthy stack whose
// scaled thresholds it could not clear anyway.
func QuickCheck(profile *types.ProjectProfile, maturityResult types.MaturityGateResult, matchScore float64) QuickCheckResult {
	if !maturityResult.Passed {
		return QuickCheckResult{Reason: fmt.Sprintf("maturity gate failed (effective %s); verdict would be DEFER", maturityResult.Effective)}
	}
	if matchScore < quickCheckMinScore {
		return QuickCheckResult{Reason: fmt.Sprintf("match score %.2f below %.2f", matchScore, quickCheckMinScore)}
	}
	if profile.Health.Overall > highHealthTier && matchScore < quickCheckMinScoreHealthy {
		return QuickCheckResult{Reason: fmt.Sprintf("match score %.2f below %.2f for a healthy stack", matchScore, quickCheckMinScoreHealthy)}
	}
	return QuickCheckResult{Proceed: true}
}
