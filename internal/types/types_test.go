package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaturityRank(t *testing.T) {
	assert.Less(t, MaturityExperimental.Rank(), MaturityGrowth.Rank())
	assert.Less(t, MaturityGrowth.Rank(), MaturityStable.Rank())
	assert.Equal(t, -1, Maturity("bogus").Rank())
}

func TestActionDowngrade(t *testing.T) {
	next, ok := ActionReplaceExisting.Downgrade()
	assert.True(t, ok)
	assert.Equal(t, ActionComplement, next)

	next, ok = ActionComplement.Downgrade()
	assert.True(t, ok)
	assert.Equal(t, ActionMonitor, next)

	next, ok = ActionMonitor.Downgrade()
	assert.False(t, ok)
	assert.Equal(t, ActionMonitor, next)
}

func TestVerdictWeight(t *testing.T) {
	assert.Greater(t, VerdictRecommend.Weight(), VerdictMonitor.Weight())
	assert.Greater(t, VerdictMonitor.Weight(), VerdictDefer.Weight())
}

func TestRiskLevelScore(t *testing.T) {
	assert.Equal(t, 0.2, RiskLow.Score())
	assert.Equal(t, 0.5, RiskMedium.Score())
	assert.Equal(t, 0.8, RiskHigh.Score())
	assert.Equal(t, 0.95, RiskCritical.Score())
	assert.Equal(t, 0.0, RiskLevel("").Score())
}

func TestRiskLevelAtLeast(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskLow.AtLeast(RiskHigh))
	assert.Equal(t, RiskHigh, RiskHigh.AtLeast(RiskLow))
	assert.Equal(t, RiskMedium, RiskMedium.AtLeast(RiskMedium))
}

func TestTractionAges(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	first := now.AddDate(-2, 0, 0)
	last := now.AddDate(0, -3, 0)

	tr := &Traction{FirstReleaseAt: &first, LastReleaseAt: &last}
	assert.InDelta(t, 24, tr.AgeMonths(now), 1)
	assert.InDelta(t, 3, tr.MonthsSinceRelease(now), 1)

	var missing *Traction
	assert.Equal(t, 0, missing.AgeMonths(now))
	assert.Equal(t, -1, missing.MonthsSinceRelease(now))
	assert.Equal(t, -1, (&Traction{}).MonthsSinceRelease(now))
}

func TestFeedItemValidate(t *testing.T) {
	valid := FeedItem{ID: "i1", Title: "thing"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&FeedItem{Title: "no id"}).Validate())
	assert.Error(t, (&FeedItem{ID: "i1"}).Validate())
	assert.Error(t, (&FeedItem{ID: "i1", Title: "x", Maturity: "shiny"}).Validate())

	withLevel := FeedItem{ID: "i1", Title: "x", Maturity: MaturityGrowth}
	assert.NoError(t, withLevel.Validate())
}

func TestFeedItemText(t *testing.T) {
	item := FeedItem{Title: "a", Description: "b", Summary: "c"}
	assert.Equal(t, "a b c", item.Text())
}

func TestClaimValidate(t *testing.T) {
	tests := []struct {
		name    string
		claim   Claim
		wantErr bool
	}{
		{"fact with source", Claim{Kind: ClaimFact, Text: "x", Source: "github"}, false},
		{"fact without source", Claim{Kind: ClaimFact, Text: "x"}, true},
		{"inference with provenance", Claim{Kind: ClaimInference, Text: "x", DerivedFrom: []string{"y"}, Confidence: 0.5}, false},
		{"inference without provenance", Claim{Kind: ClaimInference, Text: "x", Confidence: 0.5}, true},
		{"inference confidence out of range", Claim{Kind: ClaimInference, Text: "x", DerivedFrom: []string{"y"}, Confidence: 1.5}, true},
		{"assumption needs nothing", Claim{Kind: ClaimAssumption, Text: "x"}, false},
		{"empty text", Claim{Kind: ClaimAssumption}, true},
		{"unknown kind", Claim{Kind: "GUESS", Text: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.claim.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEffortEstimate(t *testing.T) {
	e := EffortEstimate{MinDays: 3, MaxDays: 5}
	assert.Equal(t, 4.0, e.Mid())
	e.Scale(2)
	assert.Equal(t, 6.0, e.MinDays)
	assert.Equal(t, 10.0, e.MaxDays)
}

// The internal ranking score must never appear in serialized output.
func TestRecommendationRankScoreNotSerialized(t *testing.T) {
	r := Recommendation{ID: "r1"}
	r.SetRankScore(123.4)

	data, err := json.Marshal(&r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "123.4")
	assert.NotContains(t, string(data), "rank")
}
