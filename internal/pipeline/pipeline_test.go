package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackscout/scout/internal/config"
	"github.com/stackscout/scout/internal/enrichment"
	"github.com/stackscout/scout/internal/types"
)

// stubAnalyst returns canned analyses keyed by item ID. Unknown items get
// the default analysis; IDs in failures return an error instead.
type stubAnalyst struct {
	byItem   map[string]*enrichment.Analysis
	failures map[string]error
	calls    int
}

func (s *stubAnalyst) Analyze(ctx context.Context, req *enrichment.Request) (*enrichment.Analysis, error) {
	s.calls++
	if err, ok := s.failures[req.Item.ID]; ok {
		return nil, err
	}
	if a, ok := s.byItem[req.Item.ID]; ok {
		return a, nil
	}
	return favorableAnalysis(req.Item.Title), nil
}

// favorableAnalysis is cheap to adopt with all-improving impacts, so it
// lands a RECOMMEND against a mid-health profile.
func favorableAnalysis(subject string) *enrichment.Analysis {
	a := &enrichment.Analysis{
		EffortRaw:     "1 day",
		Complexity:    "low",
		Reversibility: "easy",
		LearningCurve: "gentle",
		Impact: types.Impact{
			Security:        types.ImpactDelta{Direction: "improves"},
			Performance:     types.ImpactDelta{Direction: "improves"},
			Maintainability: types.ImpactDelta{Direction: "improves"},
		},
		TechnicalSummary: "straightforward adoption",
		HumanSummary:     "worth adopting",
		SubjectName:      subject,
	}
	if err := a.Finalize(); err != nil {
		panic(err)
	}
	return a
}

func testProfile() *types.ProjectProfile {
	return &types.ProjectProfile{
		ID:   "proj-1",
		Name: "webapp",
		Stack: types.Stack{
			Languages:  []types.LanguageUsage{{Name: "TypeScript", Percent: 80}},
			Frameworks: []string{"React"},
		},
		Health:   types.StackHealth{Overall: 0.5},
		Scouting: types.ScoutingConfig{FocusAreas: []string{"frontend"}, MaxRecommendations: 5},
	}
}

func testItem(id, title string) types.FeedItem {
	return types.FeedItem{
		ID:           id,
		Source:       "github",
		Title:        title,
		Technologies: []string{"react"},
		Categories:   []string{"frontend"},
		Maturity:     types.MaturityStable,
		Traction:     &types.Traction{Stars: 8000},
	}
}

func testOptions() config.Options {
	opts := config.Default()
	opts.UseQuickCheck = false
	return opts
}

func newMatcher(t *testing.T, analyst enrichment.Analyst, opts config.Options) *Matcher {
	t.Helper()
	m, err := New(analyst, opts)
	require.NoError(t, err)
	return m
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, testOptions())
	assert.Error(t, err, "analyst required without skip_llm")

	opts := testOptions()
	opts.SkipLLM = true
	_, err = New(nil, opts)
	assert.NoError(t, err, "nil analyst fine with skip_llm")

	bad := testOptions()
	bad.MaxLLMItems = -1
	_, err = New(&stubAnalyst{}, bad)
	assert.Error(t, err)

	bad = testOptions()
	bad.Thresholds.Recommend = -1
	_, err = New(&stubAnalyst{}, bad)
	assert.Error(t, err)
}

func TestMatch_EndToEnd(t *testing.T) {
	analyst := &stubAnalyst{}
	m := newMatcher(t, analyst, testOptions())

	items := []types.FeedItem{testItem("i1", "New React toolkit")}
	result := m.Match(context.Background(), items, testProfile())

	require.NotNil(t, result)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.TraceID)
	assert.Equal(t, "proj-1", result.ProjectID)
	require.Len(t, result.Recommendations, 1)

	rec := result.Recommendations[0]
	assert.Equal(t, "i1", rec.ItemID)
	assert.Equal(t, result.TraceID, rec.TraceID)
	assert.Equal(t, types.VerdictRecommend, rec.Assessment.Verdict)
	assert.Equal(t, types.DeliveryPending, rec.Delivery)
	assert.Contains(t, rec.VisibleToRoles, "engineering")
	assert.Contains(t, rec.VisibleToRoles, "management")

	assert.Equal(t, 1, result.Summary.Evaluated)
	assert.Equal(t, 1, result.Summary.PassedPreFilter)
	assert.Equal(t, 1, result.Summary.PassedMaturity)
	assert.Equal(t, 1, result.Summary.Analyzed)
	assert.Equal(t, 1, result.Summary.Recommended)
	assert.Equal(t, 0, result.Summary.Delivered)

	for _, stage := range []types.Stage{
		types.StagePreFilter, types.StageMaturity, types.StageEnrichment,
		types.StageStability, types.StageRanking,
	} {
		_, ok := result.TimingMs[stage]
		assert.True(t, ok, "timing for stage %s", stage)
	}
}

// One item's enrichment failure omits that item and records the error;
// the rest of the batch is unaffected.
func TestMatch_PerItemFailureIsolation(t *testing.T) {
	analyst := &stubAnalyst{
		failures: map[string]error{"bad": errors.New("model returned garbage")},
	}
	m := newMatcher(t, analyst, testOptions())

	items := []types.FeedItem{
		testItem("good", "Solid React library"),
		testItem("bad", "Broken analysis item"),
	}
	result := m.Match(context.Background(), items, testProfile())

	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "good", result.Recommendations[0].ItemID)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad")
	assert.Equal(t, 1, result.Summary.Analyzed)
}

func TestMatch_NilProfile(t *testing.T) {
	m := newMatcher(t, &stubAnalyst{}, testOptions())
	result := m.Match(context.Background(), []types.FeedItem{testItem("i1", "x")}, nil)

	assert.Empty(t, result.Recommendations)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "profile")
}

func TestMatch_InvalidProfileRejectedBeforeProcessing(t *testing.T) {
	analyst := &stubAnalyst{}
	m := newMatcher(t, analyst, testOptions())

	profile := testProfile()
	profile.Scouting.MaxRecommendations = 0

	result := m.Match(context.Background(), []types.FeedItem{testItem("i1", "x")}, profile)
	assert.Empty(t, result.Recommendations)
	assert.NotEmpty(t, result.Errors)
	assert.Zero(t, analyst.calls, "no enrichment for a rejected profile")
}

func TestMatch_EmptyBatch(t *testing.T) {
	m := newMatcher(t, &stubAnalyst{}, testOptions())
	result := m.Match(context.Background(), nil, testProfile())

	assert.NotNil(t, result.Recommendations)
	assert.Empty(t, result.Recommendations)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.Summary.Evaluated)
}

func TestMatch_SkipLLMRunsOffline(t *testing.T) {
	opts := testOptions()
	opts.SkipLLM = true
	m := newMatcher(t, nil, opts)

	result := m.Match(context.Background(), []types.FeedItem{testItem("i1", "React helper")}, testProfile())

	assert.Empty(t, result.Errors)
	require.Len(t, result.Recommendations, 1)
	rec := result.Recommendations[0]
	require.NotEmpty(t, rec.Technical.Claims)
	assert.Equal(t, types.ClaimAssumption, rec.Technical.Claims[0].Kind)
	assert.Equal(t, 3.0, rec.Technical.Effort.MinDays)
	assert.Equal(t, 5.0, rec.Technical.Effort.MaxDays)
}

func TestMatch_MaxLLMItemsCapsCalls(t *testing.T) {
	analyst := &stubAnalyst{}
	opts := testOptions()
	opts.MaxLLMItems = 2
	m := newMatcher(t, analyst, opts)

	items := []types.FeedItem{
		testItem("i1", "First React lib"),
		testItem("i2", "Second React lib"),
		testItem("i3", "Third React lib"),
	}
	result := m.Match(context.Background(), items, testProfile())

	assert.Equal(t, 2, analyst.calls)
	assert.Equal(t, 2, result.Summary.Analyzed)
}

func TestMatch_QuickCheckSkipsWeakItems(t *testing.T) {
	analyst := &stubAnalyst{}
	opts := testOptions()
	opts.UseQuickCheck = true
	m := newMatcher(t, analyst, opts)

	// Quarter tech overlap, no category hit: composite ~0.13, above the
	// low-health prefilter floor but below the 0.2 quick-check floor.
	weak := testItem("weak", "Barely related tool")
	weak.Technologies = []string{"react", "fortran", "cobol", "ada"}
	weak.Categories = []string{"backend"}
	strong := testItem("strong", "Great React lib")

	// Lower the health so the weak item clears the prefilter but not the
	// quick check.
	profile := testProfile()
	profile.Health.Overall = 0.3

	result := m.Match(context.Background(), []types.FeedItem{weak, strong}, profile)
	assert.Equal(t, 1, analyst.calls, "weak item skipped before enrichment")
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "strong", result.Recommendations[0].ItemID)
}

func TestMatch_MaturityFailureDropsItem(t *testing.T) {
	m := newMatcher(t, &stubAnalyst{}, testOptions())

	deprecated := testItem("dead", "Abandoned React fork")
	deprecated.Maturity = types.MaturityDeprecated

	result := m.Match(context.Background(), []types.FeedItem{deprecated}, testProfile())
	assert.Equal(t, 1, result.Summary.PassedPreFilter)
	assert.Equal(t, 0, result.Summary.PassedMaturity)
	assert.Empty(t, result.Recommendations)
}

// An experimental item proposed as a replacement downgrades to COMPLEMENT
// instead of being dropped.
func TestMatch_ActionDowngrade(t *testing.T) {
	m := newMatcher(t, &stubAnalyst{}, testOptions())

	item := testItem("exp", "Experimental React replacement")
	item.Maturity = types.MaturityExperimental // REPLACE_EXISTING needs growth

	result := m.Match(context.Background(), []types.FeedItem{item}, testProfile())
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, types.ActionComplement, result.Recommendations[0].Classification.Action)
}

func TestMatch_ReplaceProposedForStackCollision(t *testing.T) {
	m := newMatcher(t, &stubAnalyst{}, testOptions())

	item := testItem("i1", "Next-gen React")
	item.Maturity = types.MaturityStable

	result := m.Match(context.Background(), []types.FeedItem{item}, testProfile())
	require.Len(t, result.Recommendations, 1)
	// "react" matches the React framework in the stack.
	assert.Equal(t, types.ActionReplaceExisting, result.Recommendations[0].Classification.Action)
}

func TestMatch_BatchTimeoutRecorded(t *testing.T) {
	slow := analystFunc(func(ctx context.Context, req *enrichment.Request) (*enrichment.Analysis, error) {
		select {
		case <-time.After(5 * time.Second):
			return favorableAnalysis(req.Item.Title), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	opts := testOptions()
	opts.BatchTimeout = 50 * time.Millisecond
	m := newMatcher(t, slow, opts)

	result := m.Match(context.Background(), []types.FeedItem{testItem("i1", "React lib")}, testProfile())
	assert.Empty(t, result.Recommendations)
	assert.NotEmpty(t, result.Errors)
}

type analystFunc func(ctx context.Context, req *enrichment.Request) (*enrichment.Analysis, error)

func (f analystFunc) Analyze(ctx context.Context, req *enrichment.Request) (*enrichment.Analysis, error) {
	return f(ctx, req)
}

func TestMatch_ResultAlwaysWellFormed(t *testing.T) {
	// An analyst that panics must surface as a recorded error, not escape.
	panicky := analystFunc(func(ctx context.Context, req *enrichment.Request) (*enrichment.Analysis, error) {
		panic("analyst blew up")
	})
	m := newMatcher(t, panicky, testOptions())

	result := m.Match(context.Background(), []types.FeedItem{testItem("i1", "React lib")}, testProfile())
	require.NotNil(t, result)
	assert.NotNil(t, result.Recommendations)
	assert.NotEmpty(t, result.Errors)
}
