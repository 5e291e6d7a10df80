// Package ranker implements the final pipeline stage: deduplication by
// subject identity, deterministic ordering, and the hard cap to the
// project's configured maximum.
package ranker

import (
	"sort"

	"github.com/stackscout/scout/internal/prefilter"
	"github.com/stackscout/scout/internal/types"
)

// Rank deduplicates, orders, and caps the recommendation list.
//
// Subjects are compared by normalized name (case- and
// punctuation-insensitive); on conflict the entry with the higher
// internal ranking score wins. Ordering is verdict weight dominant
// (RECOMMEND > MONITOR > DEFER), then priority, then confidence, with
// ties broken by stable original ordering. The internal ranking score is
// dropped before returning, and re-ranking an already-ranked list is a
// no-op.
func Rank(recommendations []types.Recommendation, profile *types.ProjectProfile) []types.Recommendation {
	scored := make([]types.Recommendation, len(recommendations))
	copy(scored, recommendations)
	for i := range scored {
		scored[i].SetRankScore(rankScore(&scored[i]))
	}

	deduped := dedupeBySubject(scored)

	sort.SliceStable(deduped, func(a, b int) bool {
		return deduped[a].RankScore() > deduped[b].RankScore()
	})

	if max := profile.Scouting.MaxRecommendations; len(deduped) > max {
		deduped = deduped[:max]
	}

	// The internal score never leaves the ranker.
	for i := range deduped {
		deduped[i].SetRankScore(0)
	}
	return deduped
}

// rankScore folds verdict, priority, and confidence into one comparable
// value. Verdict dominates outright, then priority (0 is highest), then
// confidence; the bands are spaced so no lower field can cross a band.
func rankScore(r *types.Recommendation) float64 {
	priority := r.Classification.Priority
	if priority < 0 {
		priority = 0
	}
	if priority > 4 {
		priority = 4
	}
	confidence := r.Classification.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return float64(r.Assessment.Verdict.Weight())*100 + float64(4-priority)*10 + confidence
}

// dedupeBySubject collapses entries sharing a normalized subject name,
// keeping the higher-scoring entry. First occurrence order is preserved
// for the survivors so ties downstream stay stable.
func dedupeBySubject(recs []types.Recommendation) []types.Recommendation {
	byName := make(map[string]int, len(recs)) // normalized name -> index in out
	out := make([]types.Recommendation, 0, len(recs))

	for _, rec := range recs {
		key := prefilter.Normalize(rec.Subject.Name)
		if key == "" {
			key = prefilter.Normalize(rec.Subject.Ecosystem + "/" + rec.ItemID)
		}
		if at, seen := byName[key]; seen {
			if rec.RankScore() > out[at].RankScore() {
				out[at] = rec
			}
			continue
		}
		byName[key] = len(out)
		out = append(out, rec)
	}
	return out
}
