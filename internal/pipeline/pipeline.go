// Package pipeline sequences the five matching stages over a batch of
// feed items: PreFilter -> Maturity -> Enrichment -> Stability -> Ranking.
//
// The orchestrator is a linear state machine with no inter-stage
// branching beyond per-item filtering. Each stage fully completes its
// item loop before the next starts. One item's failure never corrupts or
// aborts the others, and the top-level entry point never lets an error
// escape as a panic: the result always arrives well-formed, carrying
// whatever recommendations survived plus the errors that occurred.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stackscout/scout/internal/config"
	"github.com/stackscout/scout/internal/enrichment"
	"github.com/stackscout/scout/internal/maturity"
	"github.com/stackscout/scout/internal/prefilter"
	"github.com/stackscout/scout/internal/ranker"
	"github.com/stackscout/scout/internal/stability"
	"github.com/stackscout/scout/internal/types"
)

// Matcher runs the matching pipeline for one project at a time. A single
// Matcher may serve concurrent invocations; every Match call owns its own
// run context.
type Matcher struct {
	analyst enrichment.Analyst
	gate    *stability.Gate
	opts    config.Options
	now     func() time.Time
}

// New creates a Matcher. The analyst is constructor-injected so tests
// substitute a deterministic stub; it may be nil only with SkipLLM set.
// Configuration is validated here, before any batch runs.
func New(analyst enrichment.Analyst, opts config.Options) (*Matcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if analyst == nil && !opts.SkipLLM {
		return nil, fmt.Errorf("analyst is required unless skip_llm is set")
	}
	gate, err := stability.NewGate(opts.Thresholds)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		analyst: analyst,
		gate:    gate,
		opts:    opts,
		now:     time.Now,
	}, nil
}

// analyzedItem keeps the per-item chain together between stages. The
// chain is strictly 1:1: one match, one gate result, one analysis.
type analyzedItem struct {
	item     *types.FeedItem
	match    types.PreFilterMatch
	gate     types.MaturityGateResult
	action   types.Action
	analysis *enrichment.Analysis
}

// Match runs the full pipeline over one batch against one profile.
// It always returns a well-formed result; partial failure shows up in
// result.Errors and as omitted items, never as a panic.
func (m *Matcher) Match(ctx context.Context, items []types.FeedItem, profile *types.ProjectProfile) *types.MatchingResult {
	rc := newRunContext()
	result := &types.MatchingResult{
		TraceID:   uuid.New().String(),
		StartedAt: rc.started,
		Summary:   types.MatchSummary{Evaluated: len(items)},
	}
	defer func() {
		if r := recover(); r != nil {
			rc.addError("pipeline panicked: %v", r)
		}
		result.TimingMs = rc.timing
		result.TotalMs = rc.totalMs()
		result.Errors = rc.errors
		if result.Recommendations == nil {
			result.Recommendations = []types.Recommendation{}
		}
	}()

	// A malformed profile invalidates every verdict; reject it before
	// touching a single item.
	if profile == nil {
		rc.addError("project profile is required")
		return result
	}
	result.ProjectID = profile.ID
	if err := profile.Validate(); err != nil {
		rc.addError("invalid project profile: %v", err)
		return result
	}

	if m.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.BatchTimeout)
		defer cancel()
	}

	now := m.now()

	// Stage 1: prefilter.
	var survivors []analyzedItem
	rc.runStage(types.StagePreFilter, func() {
		matches := prefilter.Filter(items, profile, prefilter.ConfigForHealth(profile.Health.Overall))
		byID := make(map[string]*types.FeedItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}
		for _, match := range matches {
			if m.opts.Debug {
				slog.Debug("prefilter", "item", match.ItemID, "score", match.Score, "passed", match.Passed, "reasons", match.Reasons)
			}
			if match.Passed {
				survivors = append(survivors, analyzedItem{item: byID[match.ItemID], match: match})
			}
		}
		result.Summary.PassedPreFilter = len(survivors)
	})

	// Stage 2: maturity gate, with action downgrade on failure.
	var matured []analyzedItem
	rc.runStage(types.StageMaturity, func() {
		for _, s := range survivors {
			action := proposeAction(&s, profile)
			gate := maturity.Evaluate(s.item.Maturity, action, s.item.Traction, now)
			if !gate.Passed {
				downgrade := maturity.Downgrade(action, gate.Effective)
				if downgrade.Passed {
					action = downgrade.Action
					gate = maturity.Evaluate(s.item.Maturity, action, s.item.Traction, now)
					gate.Warnings = append(gate.Warnings,
						fmt.Sprintf("action downgraded %d step(s) to %s", downgrade.Steps, action))
				}
			}
			if m.opts.Debug {
				slog.Debug("maturity gate", "item", s.item.ID, "effective", gate.Effective, "action", action, "passed", gate.Passed)
			}
			if !gate.Passed {
				continue
			}
			s.action = action
			s.gate = gate
			matured = append(matured, s)
		}
		result.Summary.PassedMaturity = len(matured)
	})

	// Stage 3: enrichment, capped and best-effort. The loop is
	// sequential by design; the analyst bounds its own concurrency and
	// rate, and one item's failure only omits that item.
	var analyzed []analyzedItem
	rc.runStage(types.StageEnrichment, func() {
		calls := 0
		for i := range matured {
			s := &matured[i]
			if ctx.Err() != nil {
				rc.addError("enrichment aborted: %v", ctx.Err())
				break
			}
			if m.opts.UseQuickCheck {
				if qc := stability.QuickCheck(profile, s.gate, s.match.Score); !qc.Proceed {
					if m.opts.Debug {
						slog.Debug("quick check skipped item", "item", s.item.ID, "reason", qc.Reason)
					}
					continue
				}
			}
			if !m.opts.SkipLLM && m.opts.MaxLLMItems > 0 && calls >= m.opts.MaxLLMItems {
				break
			}

			analysis, err := m.analyze(ctx, s, profile)
			if !m.opts.SkipLLM {
				calls++
			}
			if err != nil {
				slog.Warn("enrichment failed, skipping item", "item", s.item.ID, "error", err)
				rc.addError("item %s: enrichment failed: %v", s.item.ID, err)
				continue
			}
			s.analysis = analysis
			analyzed = append(analyzed, *s)
		}
		result.Summary.Analyzed = len(analyzed)
	})

	// Stage 4: stability gate.
	var candidates []types.Recommendation
	rc.runStage(types.StageStability, func() {
		for i := range analyzed {
			s := &analyzed[i]
			assessment := m.gate.Evaluate(&stability.Input{
				Item:     s.item,
				Profile:  profile,
				Match:    s.match,
				Maturity: s.gate,
				Analysis: s.analysis,
				Action:   s.action,
			})
			if m.opts.Debug {
				slog.Debug("stability verdict", "item", s.item.ID, "verdict", assessment.Verdict, "delta", assessment.Delta)
			}
			candidates = append(candidates, buildRecommendation(result.TraceID, profile, s, assessment, rc.started))
		}
	})

	// Stage 5: ranking.
	rc.runStage(types.StageRanking, func() {
		result.Recommendations = ranker.Rank(candidates, profile)
		result.Summary.Recommended = len(result.Recommendations)
		// Delivery belongs to the delivery collaborator; the core never
		// advances it past pending.
		result.Summary.Delivered = 0
	})

	return result
}

// analyze calls the external analyst, or fabricates the deterministic
// built-in analysis when SkipLLM is set.
func (m *Matcher) analyze(ctx context.Context, s *analyzedItem, profile *types.ProjectProfile) (*enrichment.Analysis, error) {
	if m.opts.SkipLLM {
		return offlineAnalysis(s), nil
	}
	req := &enrichment.Request{
		Item:     *s.item,
		Project:  enrichment.SummarizeProject(profile),
		Match:    s.match,
		Maturity: s.gate,
		Action:   s.action,
	}
	return m.analyst.Analyze(ctx, req)
}

// proposeAction picks the initial action for a matched item. A candidate
// that collides with a framework or key dependency already in the stack
// is proposed as a replacement; everything else starts as a complement.
func proposeAction(s *analyzedItem, profile *types.ProjectProfile) types.Action {
	for _, tech := range s.match.MatchedTechnologies {
		norm := prefilter.Normalize(tech)
		for _, fw := range profile.Stack.Frameworks {
			if prefilter.Normalize(fw) == norm {
				return types.ActionReplaceExisting
			}
		}
		for _, dep := range profile.Stack.KeyDependencies {
			if prefilter.Normalize(dep.Name) == norm {
				return types.ActionReplaceExisting
			}
		}
	}
	return types.ActionComplement
}

// offlineAnalysis is the SkipLLM substitute: a fixed-shape analysis
// derived only from the item, so offline runs are fully deterministic.
func offlineAnalysis(s *analyzedItem) *enrichment.Analysis {
	a := &enrichment.Analysis{
		EffortRaw:            "3-5 days",
		Complexity:           "medium",
		Reversibility:        "moderate",
		DependenciesAffected: len(s.match.MatchedTechnologies),
		Impact: types.Impact{
			Security:        types.ImpactDelta{Direction: "neutral"},
			Performance:     types.ImpactDelta{Direction: "neutral"},
			Maintainability: types.ImpactDelta{Direction: "improves", Detail: "offline placeholder analysis"},
			Cost:            types.ImpactDelta{Direction: "neutral"},
			OverallRisk:     types.RiskMedium,
		},
		TechnicalSummary: "Offline analysis: enrichment skipped by configuration.",
		HumanSummary:     "Generated without external analysis.",
		SubjectName:      s.item.Title,
		SubjectType:      "library",
		SubjectEcosystem: firstOrEmpty(s.item.Ecosystems),
	}
	a.Claims = []types.Claim{{
		Kind: types.ClaimAssumption,
		Text: "analysis skipped; cost components use neutral defaults",
	}}
	// Finalize cannot fail on the fixed effort string.
	_ = a.Finalize()
	return a
}

// buildRecommendation assembles the final entity for one assessed item
func buildRecommendation(traceID string, profile *types.ProjectProfile, s *analyzedItem, assessment types.StabilityAssessment, createdAt time.Time) types.Recommendation {
	a := s.analysis

	subject := types.Subject{
		Name:      a.SubjectName,
		Type:      a.SubjectType,
		Version:   a.SubjectVersion,
		Ecosystem: a.SubjectEcosystem,
		Maturity:  s.gate.Effective,
		Traction:  s.item.Traction,
	}
	if subject.Version == "" {
		subject.Version = s.item.Version
	}
	if subject.Ecosystem == "" {
		subject.Ecosystem = firstOrEmpty(s.item.Ecosystems)
	}

	roles := []string{"engineering"}
	if assessment.Verdict == types.VerdictRecommend {
		roles = append(roles, "management")
	}

	return types.Recommendation{
		ID:        uuid.New().String(),
		TraceID:   traceID,
		ProjectID: profile.ID,
		ItemID:    s.item.ID,
		Subject:   subject,
		Classification: types.Classification{
			Action:     s.action,
			Priority:   priorityFor(assessment),
			Confidence: confidenceFor(s.match, a),
		},
		Technical: types.TechnicalAnalysis{
			Claims:       a.Claims,
			Effort:       a.Effort,
			Steps:        a.Steps,
			Impact:       a.Impact,
			Gains:        a.Gains,
			Losses:       a.Losses,
			FailureModes: a.FailureModes,
			Limitations:  a.Limitations,
			Summary:      a.TechnicalSummary,
		},
		HumanSummary:   a.HumanSummary,
		Assessment:     assessment,
		VisibleToRoles: roles,
		Delivery:       types.DeliveryPending,
		CreatedAt:      createdAt,
	}
}

// priorityFor derives the issue-tracker-style priority from the verdict,
// with a pain-point bump for recommendations.
func priorityFor(assessment types.StabilityAssessment) int {
	switch assessment.Verdict {
	case types.VerdictRecommend:
		if assessment.PainPointMatch {
			return 0
		}
		return 1
	case types.VerdictMonitor:
		return 2
	default:
		return 3
	}
}

// confidenceFor blends the match score with the mean confidence of the
// analysis inferences. Assumption-only analyses settle near the middle.
func confidenceFor(match types.PreFilterMatch, a *enrichment.Analysis) float64 {
	sum, n := 0.0, 0
	for _, c := range a.Claims {
		if c.Kind == types.ClaimInference {
			sum += c.Confidence
			n++
		}
	}
	claimConfidence := 0.5
	if n > 0 {
		claimConfidence = sum / float64(n)
	}
	return match.Score*0.5 + claimConfidence*0.5
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
