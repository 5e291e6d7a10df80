package types

import (
	"fmt"
	"time"
)

// ClaimKind tags a statement for auditability. Facts need a named source,
// inferences need their derivation and a confidence score, assumptions
// are explicitly unverified.
type ClaimKind string

const (
	ClaimFact       ClaimKind = "FACT"
	ClaimInference  ClaimKind = "INFERENCE"
	ClaimAssumption ClaimKind = "ASSUMPTION"
)

// Claim is one tagged statement from the enrichment analysis, preserved
// end-to-end so every decision can be audited back to its inputs.
type Claim struct {
	Kind        ClaimKind `json:"kind"`
	Text        string    `json:"text"`
	Source      string    `json:"source,omitempty"`       // FACT: named source
	Reliability float64   `json:"reliability,omitempty"`  // FACT: source reliability 0-1
	DerivedFrom []string  `json:"derived_from,omitempty"` // INFERENCE: derivation list
	Confidence  float64   `json:"confidence,omitempty"`   // INFERENCE: 0-1
}

// Validate checks the per-kind requirements on a claim
func (c *Claim) Validate() error {
	if c.Text == "" {
		return fmt.Errorf("claim text is required")
	}
	switch c.Kind {
	case ClaimFact:
		if c.Source == "" {
			return fmt.Errorf("FACT claim requires a named source: %q", c.Text)
		}
	case ClaimInference:
		if len(c.DerivedFrom) == 0 {
			return fmt.Errorf("INFERENCE claim requires a derivation list: %q", c.Text)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return fmt.Errorf("INFERENCE claim confidence must be in [0,1] (got %.2f)", c.Confidence)
		}
	case ClaimAssumption:
		// Unverified by definition; nothing else required.
	default:
		return fmt.Errorf("invalid claim kind %q", c.Kind)
	}
	return nil
}

// EffortEstimate is an explicit numeric day interval, parsed once at the
// enrichment boundary instead of re-parsing a free-form string throughout
// the stability gate.
type EffortEstimate struct {
	MinDays         float64 `json:"min_days"`
	MaxDays         float64 `json:"max_days"`
	Raw             string  `json:"raw,omitempty"`              // original day-range string
	CalibrationNote string  `json:"calibration_note,omitempty"` // set when historical stats adjusted the interval
}

// Mid returns the midpoint of the interval in days
func (e *EffortEstimate) Mid() float64 {
	return (e.MinDays + e.MaxDays) / 2
}

// Scale multiplies both ends of the interval in place
func (e *EffortEstimate) Scale(factor float64) {
	e.MinDays *= factor
	e.MaxDays *= factor
}

// ImpactDelta describes the expected movement of one impact dimension
type ImpactDelta struct {
	Direction string `json:"direction"` // improves, neutral, degrades
	Detail    string `json:"detail,omitempty"`
}

// Impact is the five-dimension impact estimate from enrichment
type Impact struct {
	Security        ImpactDelta `json:"security"`
	Performance     ImpactDelta `json:"performance"`
	Maintainability ImpactDelta `json:"maintainability"`
	Cost            ImpactDelta `json:"cost"`
	OverallRisk     RiskLevel   `json:"overall_risk"`
}

// FailureMode is one way the adoption could go wrong
type FailureMode struct {
	Mode        string `json:"mode"`
	Probability string `json:"probability"` // low, medium, high
	Mitigation  string `json:"mitigation,omitempty"`
}

// TechnicalAnalysis is the engineer-facing half of a recommendation
type TechnicalAnalysis struct {
	Claims       []Claim        `json:"claims,omitempty"`
	Effort       EffortEstimate `json:"effort"`
	Steps        []string       `json:"steps,omitempty"`
	Impact       Impact         `json:"impact"`
	Gains        []string       `json:"gains,omitempty"`
	Losses       []string       `json:"losses,omitempty"`
	FailureModes []FailureMode  `json:"failure_modes,omitempty"`
	Limitations  []string       `json:"limitations,omitempty"`
	Summary      string         `json:"summary,omitempty"`
}

// Subject identifies what a recommendation is about
type Subject struct {
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"` // library, framework, service, practice
	Version   string    `json:"version,omitempty"`
	Ecosystem string    `json:"ecosystem,omitempty"`
	Maturity  Maturity  `json:"maturity,omitempty"`
	Traction  *Traction `json:"traction,omitempty"`
}

// Classification is the action/priority/confidence triple on a recommendation
type Classification struct {
	Action     Action  `json:"action"`
	Priority   int     `json:"priority"` // 0 = highest, matching issue-tracker convention
	Confidence float64 `json:"confidence"`
}

// ReasonKind tags one line of the stability reasoning trail
type ReasonKind string

const (
	ReasonFact      ReasonKind = "FACT"
	ReasonInference ReasonKind = "INFERENCE"
	ReasonNote      ReasonKind = "NOTE"
	ReasonVerdict   ReasonKind = "VERDICT"
)

// ReasonEntry is one ordered, machine-auditable line of reasoning
type ReasonEntry struct {
	Kind ReasonKind `json:"kind"`
	Text string     `json:"text"`
}

// ChangeCost is the cost-of-change breakdown
type ChangeCost struct {
	Score                float64        `json:"score"`
	Effort               EffortEstimate `json:"effort"`
	RegressionRisk       RiskLevel      `json:"regression_risk"`
	LearningCurve        RiskLevel      `json:"learning_curve"` // gentle≈low, steep≈high
	DependenciesAffected int            `json:"dependencies_affected"`
	Reversibility        RiskLevel      `json:"reversibility"` // easy≈low, hard≈high
}

// NoChangeCost is the cost-of-no-change breakdown
type NoChangeCost struct {
	Score             float64   `json:"score"`
	SecurityExposure  RiskLevel `json:"security_exposure"`
	MaintenanceRisk   RiskLevel `json:"maintenance_risk"`
	PerformanceImpact RiskLevel `json:"performance_impact"`
	DeprecationRisk   RiskLevel `json:"deprecation_risk"`
	ComplianceRisk    RiskLevel `json:"compliance_risk"`
	Detail            string    `json:"detail,omitempty"`
}

// HealthInfluence records how the stack-health snapshot shifted the
// decision thresholds, so the strictness is auditable.
type HealthInfluence struct {
	Overall        float64 `json:"overall"`
	Tier           string  `json:"tier"` // high, medium, low
	ThresholdScale float64 `json:"threshold_scale"`
}

// StabilityAssessment is the policy-core output for one item
type StabilityAssessment struct {
	ChangeCost      ChangeCost      `json:"change_cost"`
	NoChangeCost    NoChangeCost    `json:"no_change_cost"`
	Delta           float64         `json:"delta"` // no-change minus change
	MaturityPassed  bool            `json:"maturity_passed"`
	MaturitySummary string          `json:"maturity_summary,omitempty"`
	Health          HealthInfluence `json:"health"`
	PainPointMatch  bool            `json:"pain_point_match"`
	Verdict         Verdict         `json:"verdict"`
	Reasoning       []ReasonEntry   `json:"reasoning"`
	Justification   string          `json:"justification,omitempty"`
}

// DeliveryState tracks whether a recommendation has left the system yet.
// The core always emits pending; delivery collaborators advance it.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryDismissed DeliveryState = "dismissed"
)

// Recommendation is the final entity produced by the ranker: one per
// surviving item, traceable to exactly one feed item and the profile
// active at generation. The core never mutates it after creation.
type Recommendation struct {
	ID             string              `json:"id"`
	TraceID        string              `json:"trace_id"`
	ProjectID      string              `json:"project_id"`
	ItemID         string              `json:"item_id"`
	Subject        Subject             `json:"subject"`
	Classification Classification     `json:"classification"`
	Technical      TechnicalAnalysis   `json:"technical"`
	HumanSummary   string              `json:"human_summary,omitempty"`
	Assessment     StabilityAssessment `json:"assessment"`
	VisibleToRoles []string            `json:"visible_to_roles,omitempty"`
	Delivery       DeliveryState       `json:"delivery"`
	CreatedAt      time.Time           `json:"created_at"`

	// rankScore is the internal ranking score. It is unexported so it is
	// dropped from every serialized form and never leaves the ranker.
	rankScore float64
}

// SetRankScore and RankScore expose the internal ranking score to the
// ranker without serializing it.
func (r *Recommendation) SetRankScore(s float64) { r.rankScore = s }

// RankScore returns the internal ranking score
func (r *Recommendation) RankScore() float64 { return r.rankScore }
