// Package types defines the core entities shared by every stage of the
// matching pipeline: feed items, project profiles, per-stage verdicts,
// and the final recommendation shape.
package types

import (
	"fmt"
	"time"
)

// Maturity is the ordinal adoption-readiness classification of a technology.
//
// The five levels form an order (experimental < growth < stable), but the
// last two are health overrides rather than "more mature": deprecated fails
// every proposed action, and declining satisfies requirements up to but
// excluding stable.
type Maturity string

const (
	MaturityExperimental Maturity = "experimental"
	MaturityGrowth       Maturity = "growth"
	MaturityStable       Maturity = "stable"
	MaturityDeclining    Maturity = "declining"
	MaturityDeprecated   Maturity = "deprecated"
)

// IsValid checks if the maturity level is one of the known values
func (m Maturity) IsValid() bool {
	switch m {
	case MaturityExperimental, MaturityGrowth, MaturityStable, MaturityDeclining, MaturityDeprecated:
		return true
	}
	return false
}

// Rank returns the position of the level on the adoption ladder.
// Declining and deprecated are not on the ladder; callers that need
// pass/fail semantics for them should use the maturity gate instead.
func (m Maturity) Rank() int {
	switch m {
	case MaturityExperimental:
		return 0
	case MaturityGrowth:
		return 1
	case MaturityStable:
		return 2
	case MaturityDeclining:
		return 3
	case MaturityDeprecated:
		return 4
	default:
		return -1
	}
}

// Action is the proposed adoption action for a matched technology
type Action string

const (
	ActionReplaceExisting Action = "REPLACE_EXISTING"
	ActionComplement      Action = "COMPLEMENT"
	ActionMonitor         Action = "MONITOR"
)

// IsValid checks if the action is one of the known values
func (a Action) IsValid() bool {
	switch a {
	case ActionReplaceExisting, ActionComplement, ActionMonitor:
		return true
	}
	return false
}

// Downgrade returns the next less invasive action in the chain
// REPLACE_EXISTING → COMPLEMENT → MONITOR. MONITOR has no downgrade
// and returns itself with ok=false.
func (a Action) Downgrade() (Action, bool) {
	switch a {
	case ActionReplaceExisting:
		return ActionComplement, true
	case ActionComplement:
		return ActionMonitor, true
	default:
		return a, false
	}
}

// Verdict is the per-item stability decision preceding ranking
type Verdict string

const (
	VerdictRecommend Verdict = "RECOMMEND"
	VerdictMonitor   Verdict = "MONITOR"
	VerdictDefer     Verdict = "DEFER"
)

// Weight returns the dominance weight used by the ranker.
// RECOMMEND outranks MONITOR outranks DEFER.
func (v Verdict) Weight() int {
	switch v {
	case VerdictRecommend:
		return 2
	case VerdictMonitor:
		return 1
	default:
		return 0
	}
}

// RiskLevel is a coarse ordinal risk tier used across cost scoring
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Score maps the ordinal tier onto [0,1] via a fixed table so that
// independently-tuned scoring rules compose deterministically.
func (r RiskLevel) Score() float64 {
	switch r {
	case RiskLow:
		return 0.2
	case RiskMedium:
		return 0.5
	case RiskHigh:
		return 0.8
	case RiskCritical:
		return 0.95
	default:
		return 0.0
	}
}

// IsValid checks if the risk level is one of the known values
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// AtLeast returns the higher of the two risk levels
func (r RiskLevel) AtLeast(floor RiskLevel) RiskLevel {
	if floor.Score() > r.Score() {
		return floor
	}
	return r
}

// Traction holds the optional popularity/activity numbers attached to a
// feed item. All fields are best-effort; absent values are zero.
type Traction struct {
	Stars            int        `json:"stars,omitempty"`
	StarsDelta30d    int        `json:"stars_delta_30d,omitempty"` // signed 30-day star change
	OpenIssues       int        `json:"open_issues,omitempty"`
	Downloads        int64      `json:"downloads,omitempty"`
	Upvotes          int        `json:"upvotes,omitempty"`
	DiscussionPoints float64    `json:"discussion_points,omitempty"`
	GenericPoints    float64    `json:"generic_points,omitempty"`
	Contributors     int        `json:"contributors,omitempty"`
	FirstReleaseAt   *time.Time `json:"first_release_at,omitempty"`
	LastReleaseAt    *time.Time `json:"last_release_at,omitempty"`
}

// AgeMonths returns the whole months since the first release, or 0 when unknown
func (t *Traction) AgeMonths(now time.Time) int {
	if t == nil || t.FirstReleaseAt == nil {
		return 0
	}
	months := int(now.Sub(*t.FirstReleaseAt).Hours() / (24 * 30))
	if months < 0 {
		return 0
	}
	return months
}

// MonthsSinceRelease returns the whole months since the last release,
// or -1 when the release date is unknown.
func (t *Traction) MonthsSinceRelease(now time.Time) int {
	if t == nil || t.LastReleaseAt == nil {
		return -1
	}
	months := int(now.Sub(*t.LastReleaseAt).Hours() / (24 * 30))
	if months < 0 {
		return 0
	}
	return months
}

// FeedItem is a normalized external technology signal. Items are
// pre-deduplicated by the ingestion collaborator and are read-only to
// the matching core.
type FeedItem struct {
	ID                string    `json:"id"`
	Source            string    `json:"source"`
	SourceTier        string    `json:"source_tier,omitempty"`
	SourceReliability float64   `json:"source_reliability,omitempty"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Summary           string    `json:"summary,omitempty"`
	PublishedAt       time.Time `json:"published_at"`
	FetchedAt         time.Time `json:"fetched_at"`
	Categories        []string  `json:"categories,omitempty"`
	Technologies      []string  `json:"technologies,omitempty"`
	Ecosystems        []string  `json:"ecosystems,omitempty"`
	Version           string    `json:"version,omitempty"`
	Maturity          Maturity  `json:"maturity,omitempty"` // optional explicit level; inferred when empty
	Traction          *Traction `json:"traction,omitempty"`
	Processed         bool      `json:"processed"`
}

// Validate checks the minimum shape an item must have to be scored at all.
// The prefilter never rejects malformed items loudly (they simply score
// low); this is for ingestion-boundary checks.
func (f *FeedItem) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if f.Title == "" {
		return fmt.Errorf("item %s: title is required", f.ID)
	}
	if f.Maturity != "" && !f.Maturity.IsValid() {
		return fmt.Errorf("item %s: invalid maturity %q", f.ID, f.Maturity)
	}
	return nil
}

// Text returns the concatenated searchable text of the item, used for
// pain-point keyword matching.
func (f *FeedItem) Text() string {
	return f.Title + " " + f.Description + " " + f.Summary
}

// PreFilterMatch is the stage-1 verdict for one item. Created once,
// never mutated afterwards.
type PreFilterMatch struct {
	ItemID              string   `json:"item_id"`
	Score               float64  `json:"score"`              // composite 0-1
	TechOverlap         float64  `json:"tech_overlap"`       // sub-score 0-1
	CategoryRelevance   float64  `json:"category_relevance"` // sub-score 0-1
	Reasons             []string `json:"reasons,omitempty"`
	MatchedTechnologies []string `json:"matched_technologies,omitempty"`
	MatchedCategories   []string `json:"matched_categories,omitempty"`
	RawTraction         float64  `json:"raw_traction"`
	PainPointMatch      bool     `json:"pain_point_match"`
	Passed              bool     `json:"passed"`
}

// MaturityGateResult is the stage-2 verdict for one item
type MaturityGateResult struct {
	Action             Action   `json:"action"`
	Effective          Maturity `json:"effective"` // possibly overridden by deprecation signals
	Required           Maturity `json:"required"`  // minimum maturity for the action
	Passed             bool     `json:"passed"`
	Warnings           []string `json:"warnings,omitempty"`
	DeprecationSignals []string `json:"deprecation_signals,omitempty"`
}

// Stage identifies one pipeline stage in timing and error telemetry
type Stage string

const (
	StagePreFilter  Stage = "prefilter"
	StageMaturity   Stage = "maturity"
	StageEnrichment Stage = "enrichment"
	StageStability  Stage = "stability"
	StageRanking    Stage = "ranking"
)

// MatchSummary counts how many items survived each stage
type MatchSummary struct {
	Evaluated       int `json:"evaluated"`
	PassedPreFilter int `json:"passed_prefilter"`
	PassedMaturity  int `json:"passed_maturity"`
	Analyzed        int `json:"analyzed"`
	Recommended     int `json:"recommended"`
	Delivered       int `json:"delivered"`
}

// MatchingResult is the single output of a pipeline invocation. It is
// always well-formed: on internal failure it carries a partial (possibly
// empty) recommendation list plus the errors, never a panic.
type MatchingResult struct {
	TraceID         string           `json:"trace_id"`
	ProjectID       string           `json:"project_id"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         MatchSummary     `json:"summary"`
	TimingMs        map[Stage]int64  `json:"timing_ms"`
	TotalMs         int64            `json:"total_ms"`
	Errors          []string         `json:"errors,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
}
