package prefilter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackscout/scout/internal/types"
)

func frontendProfile() *types.ProjectProfile {
	return &types.ProjectProfile{
		ID:   "proj-1",
		Name: "webapp",
		Stack: types.Stack{
			Languages:  []types.LanguageUsage{{Name: "TypeScript", Percent: 80, Role: "primary"}},
			Frameworks: []string{"React"},
			Databases:  []string{"PostgreSQL"},
			KeyDependencies: []types.Dependency{
				{Name: "redux", Ecosystem: "npm"},
			},
		},
		Health:   types.StackHealth{Overall: 0.5},
		Scouting: types.ScoutingConfig{FocusAreas: []string{"frontend"}, MaxRecommendations: 3},
	}
}

func TestFilter_FullOverlapScenario(t *testing.T) {
	items := []types.FeedItem{{
		ID:           "item-1",
		Title:        "New React state library",
		Technologies: []string{"react", "typescript"},
		Categories:   []string{"frontend"},
		Traction:     &types.Traction{Stars: 8000},
	}}

	matches := Filter(items, frontendProfile(), ConfigForHealth(0.5))
	require.Len(t, matches, 1)

	m := matches[0]
	assert.True(t, m.Passed)
	assert.Equal(t, 1.0, m.TechOverlap)
	assert.Equal(t, 1.0, m.CategoryRelevance)
	assert.ElementsMatch(t, []string{"react", "typescript"}, m.MatchedTechnologies)
}

func TestFilter_ExcludedCategoryHardReject(t *testing.T) {
	profile := frontendProfile()
	profile.Scouting.ExcludeCategories = []string{"devops"}

	items := []types.FeedItem{{
		ID:           "item-1",
		Title:        "Kubernetes operator in React",
		Technologies: []string{"react", "typescript"}, // perfect overlap must not save it
		Categories:   []string{"devops"},
		Traction:     &types.Traction{Stars: 9000},
	}}

	matches := Filter(items, profile, ConfigForHealth(0.5))
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Passed)
	assert.Equal(t, 0.0, matches[0].Score)
	assert.Equal(t, []string{"Excluded category"}, matches[0].Reasons)
}

func TestFilter_NoFocusAreasDefaultsRelevance(t *testing.T) {
	profile := frontendProfile()
	profile.Scouting.FocusAreas = nil

	items := []types.FeedItem{{
		ID:           "item-1",
		Title:        "anything",
		Technologies: []string{"react"},
		Categories:   []string{"backend"},
		Traction:     &types.Traction{Stars: 5000},
	}}

	matches := Filter(items, profile, ConfigForHealth(0.5))
	require.Len(t, matches, 1)
	assert.Equal(t, 0.5, matches[0].CategoryRelevance)
}

func TestFilter_TractionThreshold(t *testing.T) {
	profile := frontendProfile()
	items := []types.FeedItem{{
		ID:           "item-1",
		Title:        "tiny repo",
		Technologies: []string{"react"},
		Categories:   []string{"frontend"},
		// Raw traction = 5*0.01 = 0.05, far below the health-0.5 floor of 10.
		Traction: &types.Traction{Stars: 5},
	}}

	matches := Filter(items, profile, ConfigForHealth(0.5))
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Passed)
}

func TestConfigForHealth_Tiers(t *testing.T) {
	tests := []struct {
		health       float64
		wantOverlap  float64
		wantTraction float64
		wantBar      float64 // effective composite floor: max of the two score floors
	}{
		{0.9, 0.15, 50, 0.15},
		{0.81, 0.15, 50, 0.15},
		{0.8, 0.10, 20, 0.10},
		{0.6, 0.10, 20, 0.10},
		{0.5, 0.05, 10, 0.05},
		{0.2, 0.05, 10, 0.05},
	}
	for _, tt := range tests {
		cfg := ConfigForHealth(tt.health)
		assert.Equal(t, tt.wantOverlap, cfg.MinTechOverlap, "health %.2f", tt.health)
		assert.Equal(t, tt.wantTraction, cfg.MinTraction, "health %.2f", tt.health)
		assert.Equal(t, tt.wantBar, math.Max(cfg.MinTechOverlap, cfg.MinCategoryRelevance), "health %.2f", tt.health)
	}
}

// An unhealthy stack lowers the composite bar to 0.05: a marginal match
// that would fail the medium tier must pass at low health.
func TestFilter_LowHealthLenientBar(t *testing.T) {
	profile := frontendProfile()
	profile.Health.Overall = 0.4

	items := []types.FeedItem{{
		ID:    "fringe",
		Title: "niche tool",
		// 1 of 10 tags matched: tech overlap 0.1.
		Technologies: []string{"react", "fortran", "cobol", "haskell", "erlang",
			"elixir", "ocaml", "scheme", "prolog", "racket"},
		Categories: []string{"backend"}, // outside the focus areas
		Traction:   &types.Traction{Stars: 5000},
	}}

	matches := Filter(items, profile, ConfigForHealth(0.4))
	require.Len(t, matches, 1)
	// 0.1*0.4 overlap + 0.1*0.2 traction = 0.06: above the 0.05 bar.
	assert.InDelta(t, 0.06, matches[0].Score, 0.001)
	assert.True(t, matches[0].Passed)
}

func TestRawTraction(t *testing.T) {
	tests := []struct {
		name     string
		traction *types.Traction
		want     float64
	}{
		{"nil traction", nil, 0},
		{"stars only", &types.Traction{Stars: 1000}, 10},
		{"stars capped at 10k", &types.Traction{Stars: 50000}, 100},
		{"upvotes", &types.Traction{Upvotes: 100}, 30},
		{"discussion points", &types.Traction{DiscussionPoints: 40}, 20},
		{"downloads log-scaled", &types.Traction{Downloads: 999}, 30}, // log10(1000)*10
		{"generic points", &types.Traction{GenericPoints: 50}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RawTraction(tt.traction), 0.01)
		})
	}
}

func TestMatchesPainPoint(t *testing.T) {
	tests := []struct {
		name      string
		painPoint string
		text      string
		want      bool
	}{
		{
			name:      "two keywords present",
			painPoint: "slow database queries under load",
			text:      "This tool speeds up database queries dramatically",
			want:      true,
		},
		{
			name:      "half of keywords present",
			painPoint: "flaky deployments",
			text:      "zero-downtime deployments for everyone",
			want:      true, // 1 of 2 keywords = ratio 0.5
		},
		{
			name:      "one of many keywords",
			painPoint: "slow database queries under heavy production load",
			text:      "a new programming language for queries",
			want:      false,
		},
		{
			name:      "short words ignored",
			painPoint: "the app is slow",
			text:      "the app",
			want:      false,
		},
		{
			name:      "punctuation insensitive",
			painPoint: "bundle-size regressions",
			text:      "cut your bundlesize in half, no regressions",
			want:      true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := MatchesPainPoint(tt.painPoint, tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilter_PainPointBoost(t *testing.T) {
	profile := frontendProfile()
	base := types.FeedItem{
		ID:           "item-1",
		Title:        "A library",
		Technologies: []string{"react"},
		Categories:   []string{"frontend"},
		Traction:     &types.Traction{Stars: 5000},
	}
	withPain := base
	withPain.ID = "item-2"
	withPain.Description = "fixes slow rendering performance in large lists"

	profile.Manifest.PainPoints = []string{"slow rendering performance"}

	matches := Filter([]types.FeedItem{base, withPain}, profile, ConfigForHealth(0.5))
	require.Len(t, matches, 2)

	// The pain-point item sorts first with a strictly higher score.
	assert.Equal(t, "item-2", matches[0].ItemID)
	assert.True(t, matches[0].PainPointMatch)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestFilter_VolumeCap(t *testing.T) {
	profile := frontendProfile()
	profile.Scouting.MaxRecommendations = 1 // cap = 6

	var items []types.FeedItem
	for i := 0; i < 10; i++ {
		items = append(items, types.FeedItem{
			ID:           string(rune('a' + i)),
			Title:        "lib",
			Technologies: []string{"react"},
			Categories:   []string{"frontend"},
			Traction:     &types.Traction{Stars: 4000 + i*100},
		})
	}

	matches := Filter(items, profile, ConfigForHealth(0.5))
	passed := 0
	for _, m := range matches {
		if m.Passed {
			passed++
		}
	}
	assert.Equal(t, 6, passed)
}

func TestFilter_Deterministic(t *testing.T) {
	profile := frontendProfile()
	items := []types.FeedItem{
		{ID: "a", Title: "x", Technologies: []string{"react"}, Categories: []string{"frontend"}, Traction: &types.Traction{Stars: 4000}},
		{ID: "b", Title: "y", Technologies: []string{"typescript"}, Categories: []string{"frontend"}, Traction: &types.Traction{Stars: 4000}},
	}

	first := Filter(items, profile, ConfigForHealth(0.5))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Filter(items, profile, ConfigForHealth(0.5)))
	}
}

func TestFilter_MalformedItemScoresLow(t *testing.T) {
	// No technologies, no categories, no traction: must not panic, must fail quietly.
	matches := Filter([]types.FeedItem{{ID: "empty"}}, frontendProfile(), ConfigForHealth(0.5))
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Passed)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "nodejs", Normalize("Node.js"))
	assert.Equal(t, "cplusplus", Normalize("C-Plus-Plus"))
	assert.Equal(t, "", Normalize("---"))
}
