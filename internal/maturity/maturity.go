// Package maturity implements the second pipeline stage: the adoption
// maturity gate. It infers a maturity level from traction when none is
// supplied, detects deprecation signals that override the inferred level,
// and decides per proposed action whether the technology clears the bar.
package maturity

import (
	"fmt"
	"time"

	"github.com/stackscout/scout/internal/types"
)

// Deprecation detection thresholds
const (
	decliningReleaseMonths  = 24   // no release for this long -> declining
	deprecatedReleaseMonths = 36   // no release for this long -> deprecated
	starLossThreshold       = 0.10 // 30-day star loss fraction -> declining
	issueRatioThreshold     = 0.10 // open-issues/stars ratio -> declining
)

// RequiredFor returns the minimum maturity a technology must have for the
// proposed action. Replacing an existing component is the only action that
// demands more than experimental.
func RequiredFor(action types.Action) types.Maturity {
	if action == types.ActionReplaceExisting {
		return types.MaturityGrowth
	}
	return types.MaturityExperimental
}

// Evaluate runs the maturity gate for one item and action. When the
// supplied maturity is empty it is inferred from traction; detected
// deprecation signals then override the level before the pass/fail check.
//
// Pure: never panics, no I/O.
func Evaluate(m types.Maturity, action types.Action, traction *types.Traction, now time.Time) types.MaturityGateResult {
	result := types.MaturityGateResult{
		Action:   action,
		Required: RequiredFor(action),
	}

	effective := m
	if effective == "" || !effective.IsValid() {
		effective = Infer(traction, now)
		result.Warnings = append(result.Warnings, fmt.Sprintf("maturity inferred from traction: %s", effective))
	}

	signals := DetectDeprecation(traction, now)
	result.DeprecationSignals = signals.Descriptions
	if signals.Deprecated {
		effective = types.MaturityDeprecated
	} else if signals.Declining && effective != types.MaturityDeprecated {
		effective = types.MaturityDeclining
	}
	result.Effective = effective

	result.Passed = Satisfies(effective, result.Required)
	if !result.Passed {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("maturity %s does not satisfy %s required for %s", effective, result.Required, action))
	}
	return result
}

// Satisfies reports whether an effective maturity level clears a required
// minimum. Deprecated fails everything, including MONITOR. Declining is a
// health override, not a high rung: it satisfies requirements up to but
// excluding stable.
func Satisfies(effective, required types.Maturity) bool {
	switch effective {
	case types.MaturityDeprecated:
		return false
	case types.MaturityDeclining:
		return required.Rank() < types.MaturityStable.Rank()
	default:
		return effective.Rank() >= required.Rank()
	}
}

// DowngradeResult is the outcome of walking the action chain down
type DowngradeResult struct {
	Action types.Action // last action tried
	Passed bool         // whether any action in the chain cleared the bar
	Steps  int          // number of downgrade steps taken
}

// Downgrade steps a failed action down the chain
// REPLACE_EXISTING -> COMPLEMENT -> MONITOR until one satisfies the
// maturity bar. It never upgrades; a deprecated technology exhausts the
// chain without passing.
func Downgrade(action types.Action, effective types.Maturity) DowngradeResult {
	current := action
	steps := 0
	for {
		if Satisfies(effective, RequiredFor(current)) {
			return DowngradeResult{Action: current, Passed: true, Steps: steps}
		}
		next, ok := current.Downgrade()
		if !ok {
			return DowngradeResult{Action: current, Passed: false, Steps: steps}
		}
		current = next
		steps++
	}
}

// DeprecationSignals is the result of the independent deprecation scan
type DeprecationSignals struct {
	Declining    bool
	Deprecated   bool
	Descriptions []string
}

// DetectDeprecation scans traction for signs that a technology is
// being abandoned. The signals are independent of the declared maturity
// and override it before the gate check.
func DetectDeprecation(t *types.Traction, now time.Time) DeprecationSignals {
	var s DeprecationSignals
	if t == nil {
		return s
	}

	if months := t.MonthsSinceRelease(now); months >= 0 {
		if months > deprecatedReleaseMonths {
			s.Deprecated = true
			s.Descriptions = append(s.Descriptions, fmt.Sprintf("no release in %d months", months))
		} else if months > decliningReleaseMonths {
			s.Declining = true
			s.Descriptions = append(s.Descriptions, fmt.Sprintf("no release in %d months", months))
		}
	}

	if t.Stars > 0 && t.StarsDelta30d < 0 {
		loss := float64(-t.StarsDelta30d) / float64(t.Stars)
		if loss > starLossThreshold {
			s.Declining = true
			s.Descriptions = append(s.Descriptions, fmt.Sprintf("lost %.0f%% of stars in 30 days", loss*100))
		}
	}

	if t.Stars > 0 && t.OpenIssues > 0 {
		ratio := float64(t.OpenIssues) / float64(t.Stars)
		if ratio > issueRatioThreshold {
			s.Declining = true
			s.Descriptions = append(s.Descriptions, fmt.Sprintf("open-issues/stars ratio %.2f", ratio))
		}
	}
	return s
}

// Infer derives a maturity level from traction magnitude, project age,
// and contributor count by majority vote against fixed thresholds. Used
// when a feed item carries no explicit maturity.
func Infer(t *types.Traction, now time.Time) types.Maturity {
	if t == nil {
		return types.MaturityExperimental
	}

	votes := []types.Maturity{
		magnitudeVote(t),
		ageVote(t, now),
		contributorVote(t),
	}

	counts := map[types.Maturity]int{}
	for _, v := range votes {
		counts[v]++
	}
	for _, level := range []types.Maturity{types.MaturityStable, types.MaturityGrowth, types.MaturityExperimental} {
		if counts[level] >= 2 {
			return level
		}
	}
	// Three-way split: take the middle rung.
	return types.MaturityGrowth
}

func magnitudeVote(t *types.Traction) types.Maturity {
	switch {
	case t.Stars >= 5000 || t.Downloads >= 1_000_000:
		return types.MaturityStable
	case t.Stars >= 500 || t.Downloads >= 50_000:
		return types.MaturityGrowth
	default:
		return types.MaturityExperimental
	}
}

func ageVote(t *types.Traction, now time.Time) types.Maturity {
	switch months := t.AgeMonths(now); {
	case months >= 36:
		return types.MaturityStable
	case months >= 12:
		return types.MaturityGrowth
	default:
		return types.MaturityExperimental
	}
}

func contributorVote(t *types.Traction) types.Maturity {
	switch {
	case t.Contributors >= 100:
		return types.MaturityStable
	case t.Contributors >= 20:
		return types.MaturityGrowth
	default:
		return types.MaturityExperimental
	}
}
