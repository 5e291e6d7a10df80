// Package stability implements the policy core of the pipeline: it
// converts the enrichment analysis plus project signals into two
// competing scalar costs (cost of change vs cost of no-change), applies
// health- and pain-point-aware thresholds, and emits a fully auditable
// verdict.
//
// The deliberate bias is toward stability: a change is recommended only
// when the cost of standing still clearly exceeds the cost of changing.
package stability

import (
	"fmt"
	"math"
	"strings"

	"github.com/stackscout/scout/internal/enrichment"
	"github.com/stackscout/scout/internal/prefilter"
	"github.com/stackscout/scout/internal/types"
)

// Cost-of-change weights
const (
	weightEffort        = 0.25
	weightRegression    = 0.25
	weightLearningCurve = 0.15
	weightDepsAffected  = 0.15
	weightReversibility = 0.20

	effortNormalizerDays = 10.0 // effort midpoint normalized against 10 days
	depsNormalizer       = 20.0 // affected-dependency count normalized against 20
)

// Cost-of-no-change weights
const (
	weightSecurity    = 0.30
	weightMaintenance = 0.20
	weightPerformance = 0.15
	weightDeprecation = 0.20
	weightCompliance  = 0.15
)

// Threshold policy
const (
	healthyScale      = 1.5 // healthy stacks scale both thresholds (stricter)
	painPointDiscount = 0.7 // pain-point match lowers both bars
	highHealthTier    = 0.8
	mediumHealthTier  = 0.5
)

// Thresholds holds the base verdict thresholds before health/pain scaling
type Thresholds struct {
	Recommend float64 `yaml:"recommend"` // delta at or above this recommends (default 0.15)
	Defer     float64 `yaml:"defer"`     // delta at or below this defers (default -0.10)
}

// DefaultThresholds returns the reference thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{Recommend: 0.15, Defer: -0.10}
}

// Validate fails fast on thresholds that would silently invalidate every
// verdict.
func (t Thresholds) Validate() error {
	if t.Recommend <= 0 {
		return fmt.Errorf("recommend threshold must be positive (got %.3f)", t.Recommend)
	}
	if t.Defer >= 0 {
		return fmt.Errorf("defer threshold must be negative (got %.3f)", t.Defer)
	}
	return nil
}

// Input carries everything the gate needs for one item
type Input struct {
	Item     *types.FeedItem
	Profile  *types.ProjectProfile
	Match    types.PreFilterMatch
	Maturity types.MaturityGateResult
	Analysis *enrichment.Analysis
	Action   types.Action
}

// Gate evaluates stability assessments with a fixed threshold set
type Gate struct {
	thresholds Thresholds
}

// NewGate creates a gate, rejecting invalid thresholds up front
func NewGate(t Thresholds) (*Gate, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stability thresholds: %w", err)
	}
	return &Gate{thresholds: t}, nil
}

// Evaluate produces the stability assessment for one analyzed item.
//
// Pure aside from mutating the passed-in analysis effort during
// calibration; identical inputs and thresholds reproduce byte-identical
// costs and verdicts.
func (g *Gate) Evaluate(in *Input) types.StabilityAssessment {
	var reasoning []types.ReasonEntry
	note := func(format string, args ...any) {
		reasoning = append(reasoning, types.ReasonEntry{Kind: types.ReasonNote, Text: fmt.Sprintf(format, args...)})
	}

	// 1. Calibrate effort against this project's estimation history.
	if calNote := CalibrateEffort(&in.Analysis.Effort, in.Profile.Calibration); calNote != "" {
		note("%s", calNote)
	}

	// 2. Cost of change.
	change := g.costOfChange(in.Analysis)
	reasoning = append(reasoning, types.ReasonEntry{
		Kind: types.ReasonFact,
		Text: fmt.Sprintf("cost of change %.3f (effort %.1f-%.1f days, regression %s, learning %s, deps %d, reversibility %s)",
			change.Score, change.Effort.MinDays, change.Effort.MaxDays,
			change.RegressionRisk, change.LearningCurve, change.DependenciesAffected, change.Reversibility),
	})

	// 3. Cost of no-change.
	noChange, floorNotes := g.costOfNoChange(in)
	for _, n := range floorNotes {
		note("%s", n)
	}
	reasoning = append(reasoning, types.ReasonEntry{
		Kind: types.ReasonFact,
		Text: fmt.Sprintf("cost of no-change %.3f (security %s, maintenance %s, performance %s, deprecation %s, compliance %s)",
			noChange.Score, noChange.SecurityExposure, noChange.MaintenanceRisk,
			noChange.PerformanceImpact, noChange.DeprecationRisk, noChange.ComplianceRisk),
	})

	// 4. Pain-point re-match on the item's own text.
	painMatch := matchesAnyPainPoint(in.Profile.Manifest.PainPoints, in.Item.Title+" "+in.Item.Description)
	if painMatch {
		note("item addresses a declared pain point; thresholds discounted x%.1f", painPointDiscount)
	}

	// 5. Stack-health influence.
	health := healthInfluence(in.Profile.Health.Overall)
	if health.ThresholdScale != 1.0 {
		note("stack health %.2f (%s tier); thresholds scaled x%.1f", health.Overall, health.Tier, health.ThresholdScale)
	}

	// 6. Verdict.
	delta := noChange.Score - change.Score
	reasoning = append(reasoning, types.ReasonEntry{
		Kind: types.ReasonInference,
		Text: fmt.Sprintf("delta %.3f = cost of no-change %.3f - cost of change %.3f", delta, noChange.Score, change.Score),
	})

	recommendAt := g.thresholds.Recommend * health.ThresholdScale
	deferAt := g.thresholds.Defer * health.ThresholdScale
	if painMatch {
		// Health scaling applies before the pain-point discount.
		recommendAt *= painPointDiscount
		deferAt *= painPointDiscount
	}

	var verdict types.Verdict
	var justification string
	switch {
	case !in.Maturity.Passed:
		// Maturity failure dominates the cost delta unconditionally.
		verdict = types.VerdictDefer
		justification = fmt.Sprintf("Deferred: %s does not meet the maturity bar for %s (effective %s, required %s).",
			in.Analysis.SubjectName, in.Action, in.Maturity.Effective, in.Maturity.Required)
	case delta >= recommendAt:
		verdict = types.VerdictRecommend
		justification = fmt.Sprintf("Recommended: the cost of standing still (%.2f) outweighs the cost of adopting %s (%.2f) by %.2f, above the %.2f bar.",
			noChange.Score, in.Analysis.SubjectName, change.Score, delta, recommendAt)
	case delta <= deferAt:
		verdict = types.VerdictDefer
		justification = fmt.Sprintf("Deferred: adopting %s costs more (%.2f) than standing still (%.2f); the stack is better left unchanged.",
			in.Analysis.SubjectName, change.Score, noChange.Score)
	default:
		verdict = types.VerdictMonitor
		justification = fmt.Sprintf("Monitoring: the costs are too close to call (delta %.2f within [%.2f, %.2f]); revisit when the signal strengthens.",
			delta, deferAt, recommendAt)
	}
	reasoning = append(reasoning, types.ReasonEntry{Kind: types.ReasonVerdict, Text: string(verdict)})

	return types.StabilityAssessment{
		ChangeCost:      change,
		NoChangeCost:    noChange,
		Delta:           delta,
		MaturityPassed:  in.Maturity.Passed,
		MaturitySummary: maturitySummary(in.Maturity),
		Health:          health,
		PainPointMatch:  painMatch,
		Verdict:         verdict,
		Reasoning:       reasoning,
		Justification:   justification,
	}
}

// costOfChange combines the five change-cost components with fixed weights
func (g *Gate) costOfChange(a *enrichment.Analysis) types.ChangeCost {
	effortNorm := clamp01(a.Effort.Mid() / effortNormalizerDays)
	depsNorm := clamp01(float64(a.DependenciesAffected) / depsNormalizer)

	regression := regressionRiskOf(a)
	learning := learningCurveOf(a)
	reversibility := reversibilityOf(a)

	score := effortNorm*weightEffort +
		regression.Score()*weightRegression +
		learning.Score()*weightLearningCurve +
		depsNorm*weightDepsAffected +
		reversibility.Score()*weightReversibility

	return types.ChangeCost{
		Score:                score,
		Effort:               a.Effort,
		RegressionRisk:       regression,
		LearningCurve:        learning,
		DependenciesAffected: a.DependenciesAffected,
		Reversibility:        reversibility,
	}
}

// costOfNoChange combines the five no-change risk components, raising
// security/maintenance to the severity of matching unresolved findings
// and flooring security/deprecation from the stack-health snapshot.
// The returned notes document every floor that fired.
func (g *Gate) costOfNoChange(in *Input) (types.NoChangeCost, []string) {
	a := in.Analysis
	var notes []string

	security := baseRiskFromDirection(a.Impact.Security.Direction)
	maintenance := baseRiskFromDirection(a.Impact.Maintainability.Direction)
	performance := baseRiskFromDirection(a.Impact.Performance.Direction)
	deprecation := deprecationRiskOf(in.Maturity)
	compliance := complianceRiskOf(in)

	// Unresolved findings that mention a matched technology raise both
	// security and maintenance to at least the finding's severity.
	// Critical/high findings raise security project-wide regardless.
	for _, f := range in.Profile.Findings {
		sev := f.Severity.RiskLevel()
		if findingMentionsAny(f.Description, in.Match.MatchedTechnologies) {
			if sev.Score() > security.Score() || sev.Score() > maintenance.Score() {
				notes = append(notes, fmt.Sprintf("unresolved %s finding matches %v; security/maintenance floored to %s",
					f.Severity, in.Match.MatchedTechnologies, sev))
			}
			security = security.AtLeast(sev)
			maintenance = maintenance.AtLeast(sev)
		} else if f.Severity == types.SeverityCritical || f.Severity == types.SeverityHigh {
			if sev.Score() > security.Score() {
				notes = append(notes, fmt.Sprintf("unresolved %s finding raises project-wide security exposure to %s", f.Severity, sev))
			}
			security = security.AtLeast(sev)
		}
	}

	// Stack-health floors.
	if floor, desc := healthFloor(in.Profile.Health.Score("security"), "security"); floor != "" {
		if floor.Score() > security.Score() {
			notes = append(notes, desc)
		}
		security = security.AtLeast(floor)
	}
	if floor, desc := healthFloor(in.Profile.Health.Score("freshness"), "freshness"); floor != "" {
		if floor.Score() > deprecation.Score() {
			notes = append(notes, desc+" (deprecation risk)")
		}
		deprecation = deprecation.AtLeast(floor)
	}

	score := security.Score()*weightSecurity +
		maintenance.Score()*weightMaintenance +
		performance.Score()*weightPerformance +
		deprecation.Score()*weightDeprecation +
		compliance.Score()*weightCompliance

	detail := ""
	if a.Impact.Security.Detail != "" {
		detail = a.Impact.Security.Detail
	} else if a.Impact.Maintainability.Detail != "" {
		detail = a.Impact.Maintainability.Detail
	}

	return types.NoChangeCost{
		Score:             score,
		SecurityExposure:  security,
		MaintenanceRisk:   maintenance,
		PerformanceImpact: performance,
		DeprecationRisk:   deprecation,
		ComplianceRisk:    compliance,
		Detail:            detail,
	}, notes
}

// regressionRiskOf returns the stated regression risk, inferring it from
// complexity and the breaking-change flag when the analysis omits it.
func regressionRiskOf(a *enrichment.Analysis) types.RiskLevel {
	if a.RegressionRisk != "" {
		return types.RiskLevel(a.RegressionRisk)
	}
	if a.BreakingChange {
		return types.RiskHigh
	}
	switch a.Complexity {
	case "high":
		return types.RiskHigh
	case "medium":
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// learningCurveOf maps the stated curve onto the risk scale, inferring
// from complexity when absent.
func learningCurveOf(a *enrichment.Analysis) types.RiskLevel {
	switch a.LearningCurve {
	case "gentle":
		return types.RiskLow
	case "moderate":
		return types.RiskMedium
	case "steep":
		return types.RiskHigh
	}
	switch a.Complexity {
	case "high":
		return types.RiskHigh
	case "medium":
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func reversibilityOf(a *enrichment.Analysis) types.RiskLevel {
	switch a.Reversibility {
	case "easy":
		return types.RiskLow
	case "hard":
		return types.RiskHigh
	default:
		return types.RiskMedium
	}
}

// baseRiskFromDirection converts an impact direction into the baseline
// no-change risk for that dimension: if adopting would improve it, not
// adopting carries at least a medium standing cost.
func baseRiskFromDirection(direction string) types.RiskLevel {
	if direction == "improves" {
		return types.RiskMedium
	}
	return types.RiskLow
}

func deprecationRiskOf(m types.MaturityGateResult) types.RiskLevel {
	switch m.Effective {
	case types.MaturityDeprecated:
		return types.RiskHigh
	case types.MaturityDeclining:
		return types.RiskMedium
	default:
		if len(m.DeprecationSignals) > 0 {
			return types.RiskMedium
		}
		return types.RiskLow
	}
}

// complianceRiskOf raises compliance risk when a project constraint
// keyword-matches the item text, using the shared pain-point rule.
func complianceRiskOf(in *Input) types.RiskLevel {
	text := in.Item.Text()
	for _, constraint := range in.Profile.Manifest.Constraints {
		if ok, _ := prefilter.MatchesPainPoint(constraint, text); ok {
			return types.RiskMedium
		}
	}
	return types.RiskLow
}

// healthFloor maps a health sub-score onto the risk floor it imposes
func healthFloor(score float64, component string) (types.RiskLevel, string) {
	switch {
	case score < 0.3:
		return types.RiskHigh, fmt.Sprintf("stack %s score %.2f floors risk to high", component, score)
	case score < 0.5:
		return types.RiskMedium, fmt.Sprintf("stack %s score %.2f floors risk to medium", component, score)
	default:
		return "", ""
	}
}

// healthInfluence computes the threshold scaling tier from overall health
func healthInfluence(overall float64) types.HealthInfluence {
	influence := types.HealthInfluence{Overall: overall, ThresholdScale: 1.0}
	switch {
	case overall > highHealthTier:
		influence.Tier = "high"
		influence.ThresholdScale = healthyScale
	case overall > mediumHealthTier:
		influence.Tier = "medium"
	default:
		influence.Tier = "low"
	}
	return influence
}

func matchesAnyPainPoint(painPoints []string, text string) bool {
	for _, pp := range painPoints {
		if ok, _ := prefilter.MatchesPainPoint(pp, text); ok {
			return true
		}
	}
	return false
}

// findingMentionsAny reports whether the finding text mentions any of the
// matched technologies, punctuation-insensitively.
func findingMentionsAny(description string, technologies []string) bool {
	norm := prefilter.Normalize(description)
	for _, tech := range technologies {
		if t := prefilter.Normalize(tech); len(t) > 2 && strings.Contains(norm, t) {
			return true
		}
	}
	return false
}

func maturitySummary(m types.MaturityGateResult) string {
	status := "passed"
	if !m.Passed {
		status = "failed"
	}
	return fmt.Sprintf("maturity gate %s: effective %s, required %s for %s", status, m.Effective, m.Required, m.Action)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
