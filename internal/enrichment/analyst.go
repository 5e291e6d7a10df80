// Package enrichment defines the boundary to the external analysis
// service that turns one surviving feed item into a structured technical
// and human-readable write-up, plus an Anthropic-backed implementation.
//
// The pipeline depends only on the Analyst interface; tests substitute a
// deterministic stub instead of a network client.
package enrichment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/stackscout/scout/internal/types"
)

// Analyst produces a structured analysis for one surviving item.
// Implementations must be safe for concurrent use; the pipeline may run
// bounded parallel calls.
type Analyst interface {
	Analyze(ctx context.Context, req *Request) (*Analysis, error)
}

// ProjectSummary is the trimmed project context sent to the analyst.
// It deliberately carries no source code.
type ProjectSummary struct {
	Name        string            `json:"name"`
	Stack       types.Stack       `json:"stack"`
	PainPoints  []string          `json:"pain_points,omitempty"`
	Constraints []string          `json:"constraints,omitempty"`
	Findings    []types.Finding   `json:"findings,omitempty"`
	Health      types.StackHealth `json:"health"`
}

// SummarizeProject trims a full profile down to what the analyst needs
func SummarizeProject(p *types.ProjectProfile) ProjectSummary {
	return ProjectSummary{
		Name:        p.Name,
		Stack:       p.Stack,
		PainPoints:  p.Manifest.PainPoints,
		Constraints: p.Manifest.Constraints,
		Findings:    p.Findings,
		Health:      p.Health,
	}
}

// Request is one enrichment call: item summary plus trimmed project
// context plus the match/maturity verdicts and the proposed action.
type Request struct {
	Item     types.FeedItem           `json:"item"`
	Project  ProjectSummary           `json:"project"`
	Match    types.PreFilterMatch     `json:"match"`
	Maturity types.MaturityGateResult `json:"maturity"`
	Action   types.Action             `json:"action"`
}

// Analysis is the structured output of one enrichment call. EffortRaw is
// the service's free-form day-range string; Effort is the numeric
// interval parsed once at this boundary.
type Analysis struct {
	Claims               []types.Claim       `json:"claims"`
	EffortRaw            string              `json:"effort"`
	Effort               types.EffortEstimate `json:"-"`
	Complexity           string              `json:"complexity"`                // low, medium, high
	BreakingChange       bool                `json:"breaking_change"`
	Reversibility        string              `json:"reversibility"`             // easy, moderate, hard
	RegressionRisk       string              `json:"regression_risk,omitempty"` // optional; inferred downstream when absent
	LearningCurve        string              `json:"learning_curve,omitempty"`  // optional; gentle, moderate, steep
	DependenciesAffected int                 `json:"dependencies_affected"`
	Steps                []string            `json:"steps,omitempty"`
	Impact               types.Impact        `json:"impact"`
	Gains                []string            `json:"gains,omitempty"`
	Losses               []string            `json:"losses,omitempty"`
	FailureModes         []types.FailureMode `json:"failure_modes,omitempty"`
	Limitations          []string            `json:"limitations,omitempty"`
	TechnicalSummary     string              `json:"technical_summary"`
	HumanSummary         string              `json:"human_summary"`
	SubjectName          string              `json:"subject_name"`
	SubjectType          string              `json:"subject_type,omitempty"`
	SubjectVersion       string              `json:"subject_version,omitempty"`
	SubjectEcosystem     string              `json:"subject_ecosystem,omitempty"`
}

// Validate checks the response shape before it enters the stability gate.
// A malformed response is treated like a failed call: logged, the item is
// skipped, and the batch continues.
func (a *Analysis) Validate() error {
	if a.SubjectName == "" {
		return fmt.Errorf("subject_name is required")
	}
	if a.TechnicalSummary == "" {
		return fmt.Errorf("technical_summary is required")
	}
	switch a.Complexity {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("invalid complexity %q", a.Complexity)
	}
	switch a.Reversibility {
	case "easy", "moderate", "hard":
	default:
		return fmt.Errorf("invalid reversibility %q", a.Reversibility)
	}
	if a.RegressionRisk != "" {
		switch a.RegressionRisk {
		case "low", "medium", "high":
		default:
			return fmt.Errorf("invalid regression_risk %q", a.RegressionRisk)
		}
	}
	if a.LearningCurve != "" {
		switch a.LearningCurve {
		case "gentle", "moderate", "steep":
		default:
			return fmt.Errorf("invalid learning_curve %q", a.LearningCurve)
		}
	}
	if a.DependenciesAffected < 0 {
		return fmt.Errorf("dependencies_affected cannot be negative")
	}
	if a.Impact.OverallRisk != "" && !a.Impact.OverallRisk.IsValid() {
		return fmt.Errorf("invalid impact overall_risk %q", a.Impact.OverallRisk)
	}
	for i := range a.Claims {
		if err := a.Claims[i].Validate(); err != nil {
			return fmt.Errorf("claim %d: %w", i, err)
		}
	}
	return nil
}

// Finalize parses the raw effort string into the numeric interval and
// canonicalizes the subject version. Called once after a successful parse;
// the rest of the pipeline never touches EffortRaw again.
func (a *Analysis) Finalize() error {
	effort, err := ParseEffort(a.EffortRaw)
	if err != nil {
		return fmt.Errorf("effort: %w", err)
	}
	a.Effort = effort
	a.SubjectVersion = canonicalVersion(a.SubjectVersion)
	return nil
}

var effortRangeRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(\d+(?:\.\d+)?)\s*(day|week|month)s?`)
var effortSingleRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(day|week|month)s?`)

// ParseEffort converts a free-form day-range string ("3-5 days",
// "2 weeks", "1 day") into an explicit interval. Weeks are 5 working
// days, months are 20.
func ParseEffort(raw string) (types.EffortEstimate, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return types.EffortEstimate{}, fmt.Errorf("empty effort string")
	}

	if m := effortRangeRegex.FindStringSubmatch(trimmed); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		unit := unitDays(m[3])
		if hi < lo {
			lo, hi = hi, lo
		}
		return types.EffortEstimate{MinDays: lo * unit, MaxDays: hi * unit, Raw: raw}, nil
	}

	if m := effortSingleRegex.FindStringSubmatch(trimmed); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		unit := unitDays(m[2])
		return types.EffortEstimate{MinDays: n * unit, MaxDays: n * unit, Raw: raw}, nil
	}

	return types.EffortEstimate{}, fmt.Errorf("unparseable effort string %q", raw)
}

func unitDays(unit string) float64 {
	switch strings.ToLower(unit) {
	case "week":
		return 5
	case "month":
		return 20
	default:
		return 1
	}
}

// canonicalVersion normalizes a subject version to canonical semver when
// possible ("1.2" -> "v1.2.0"); anything non-semver passes through as-is.
func canonicalVersion(version string) string {
	if version == "" {
		return ""
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if semver.IsValid(v) {
		return semver.Canonical(v)
	}
	return version
}
