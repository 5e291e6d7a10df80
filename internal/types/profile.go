package types

import (
	"fmt"
	"strings"
)

// Severity classifies an unresolved finding
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is one of the known values
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// RiskLevel maps a finding severity to the equivalent risk tier
func (s Severity) RiskLevel() RiskLevel {
	switch s {
	case SeverityCritical:
		return RiskCritical
	case SeverityHigh:
		return RiskHigh
	case SeverityMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// LanguageUsage describes one language in the project stack
type LanguageUsage struct {
	Name    string  `json:"name" yaml:"name"`
	Percent float64 `json:"percent" yaml:"percent"`
	Role    string  `json:"role,omitempty" yaml:"role,omitempty"` // primary, scripting, infra, ...
}

// Dependency is one key dependency of the project
type Dependency struct {
	Name      string `json:"name" yaml:"name"`
	Ecosystem string `json:"ecosystem,omitempty" yaml:"ecosystem,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Stack describes the project's technology stack
type Stack struct {
	Languages        []LanguageUsage `json:"languages,omitempty" yaml:"languages,omitempty"`
	Frameworks       []string        `json:"frameworks,omitempty" yaml:"frameworks,omitempty"`
	Databases        []string        `json:"databases,omitempty" yaml:"databases,omitempty"`
	KeyDependencies  []Dependency    `json:"key_dependencies,omitempty" yaml:"key_dependencies,omitempty"`
	DependencyCounts map[string]int  `json:"dependency_counts,omitempty" yaml:"dependency_counts,omitempty"` // per ecosystem
}

// Names returns every stack component name the prefilter matches
// technologies against: languages, frameworks, databases, key
// dependencies, and ecosystem names.
func (s *Stack) Names() []string {
	var names []string
	for _, l := range s.Languages {
		names = append(names, l.Name)
	}
	names = append(names, s.Frameworks...)
	names = append(names, s.Databases...)
	for _, d := range s.KeyDependencies {
		names = append(names, d.Name)
		if d.Ecosystem != "" {
			names = append(names, d.Ecosystem)
		}
	}
	for eco := range s.DependencyCounts {
		names = append(names, eco)
	}
	return names
}

// StackHealth is the health snapshot assembled by the persistence
// collaborator. Overall and every sub-score are in [0,1].
type StackHealth struct {
	Overall float64            `json:"overall" yaml:"overall"`
	Scores  map[string]float64 `json:"scores,omitempty" yaml:"scores,omitempty"` // e.g. security, freshness, maintenance
}

// Score returns the named sub-score, falling back to the overall score
// when the component was not measured.
func (h *StackHealth) Score(component string) float64 {
	if v, ok := h.Scores[component]; ok {
		return v
	}
	return h.Overall
}

// Manifest carries the human-authored project goals
type Manifest struct {
	Objectives []string `json:"objectives,omitempty" yaml:"objectives,omitempty"`
	PainPoints []string `json:"pain_points,omitempty" yaml:"pain_points,omitempty"`
	Constraints []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Finding is an unresolved, severity-tagged issue known about the project
type Finding struct {
	ID          string   `json:"id" yaml:"id"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Description string   `json:"description" yaml:"description"`
}

// ScoutingConfig is the per-project scouting configuration
type ScoutingConfig struct {
	FocusAreas         []string `json:"focus_areas,omitempty" yaml:"focus_areas,omitempty"`
	ExcludeCategories  []string `json:"exclude_categories,omitempty" yaml:"exclude_categories,omitempty"`
	MaxRecommendations int      `json:"max_recommendations" yaml:"max_recommendations"`
	MaturityPolicy     string   `json:"maturity_policy,omitempty" yaml:"maturity_policy,omitempty"`
}

// CalibrationStats summarizes how this project's past effort estimates
// compared to reality. Bias drives the asymmetric calibration in the
// stability gate.
type CalibrationStats struct {
	Adoptions     int     `json:"adoptions" yaml:"adoptions"`
	AccuracyRatio float64 `json:"accuracy_ratio" yaml:"accuracy_ratio"` // actual/estimated, averaged
	Bias          string  `json:"bias,omitempty" yaml:"bias,omitempty"` // underestimate, overestimate, balanced
}

// ProjectProfile is the full decision context for one project. It is
// supplied whole per invocation and never mutated by the core.
type ProjectProfile struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Stack       Stack            `json:"stack" yaml:"stack"`
	Health      StackHealth      `json:"health" yaml:"health"`
	Manifest    Manifest         `json:"manifest" yaml:"manifest"`
	Findings    []Finding        `json:"findings,omitempty" yaml:"findings,omitempty"`
	Scouting    ScoutingConfig   `json:"scouting" yaml:"scouting"`
	Calibration CalibrationStats `json:"calibration" yaml:"calibration"`
}

// Validate rejects malformed profiles at the collaborator boundary so the
// core never has to coerce fields inline. A profile that fails here must
// not reach the pipeline.
func (p *ProjectProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile id is required")
	}
	if p.Scouting.MaxRecommendations <= 0 {
		return fmt.Errorf("profile %s: scouting.max_recommendations must be positive (got %d)", p.ID, p.Scouting.MaxRecommendations)
	}
	if p.Health.Overall < 0 || p.Health.Overall > 1 {
		return fmt.Errorf("profile %s: health.overall must be in [0,1] (got %.2f)", p.ID, p.Health.Overall)
	}
	for name, score := range p.Health.Scores {
		if score < 0 || score > 1 {
			return fmt.Errorf("profile %s: health score %q must be in [0,1] (got %.2f)", p.ID, name, score)
		}
	}
	for _, l := range p.Stack.Languages {
		if l.Percent < 0 || l.Percent > 100 {
			return fmt.Errorf("profile %s: language %s percent must be in [0,100] (got %.1f)", p.ID, l.Name, l.Percent)
		}
	}
	for i, f := range p.Findings {
		if !f.Severity.IsValid() {
			return fmt.Errorf("profile %s: finding %d has invalid severity %q", p.ID, i, f.Severity)
		}
		if strings.TrimSpace(f.Description) == "" {
			return fmt.Errorf("profile %s: finding %d has empty description", p.ID, i)
		}
	}
	switch p.Calibration.Bias {
	case "", "underestimate", "overestimate", "balanced":
	default:
		return fmt.Errorf("profile %s: invalid calibration bias %q", p.ID, p.Calibration.Bias)
	}
	if p.Calibration.Adoptions > 0 && p.Calibration.AccuracyRatio <= 0 {
		return fmt.Errorf("profile %s: calibration accuracy_ratio must be positive when adoptions are recorded", p.ID)
	}
	return nil
}
