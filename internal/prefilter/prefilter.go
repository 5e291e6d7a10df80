// Package prefilter implements the first pipeline stage: a pure,
// side-effect-free relevance filter that scores technology, category,
// traction, and pain-point overlap between a feed item and a project
// profile, rejects irrelevant or excluded items, and caps batch volume
// before any paid enrichment happens.
package prefilter

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/stackscout/scout/internal/types"
)

// Fixed sub-score weights. The pain-point bonus is additive on top of the
// weighted sum so a strong pain-point hit can lift an otherwise mediocre
// composite score.
const (
	weightTechOverlap  = 0.4
	weightCategory     = 0.3
	weightTraction     = 0.2
	weightPainPoint    = 0.1
	painPointBonus     = 0.1
	tractionNormalizer = 500.0
	volumeCapFactor    = 6 // survivors capped at maxRecommendations * this
)

// Config holds the prefilter pass thresholds. Zero values are not valid;
// use ConfigForHealth to derive thresholds from the stack-health snapshot.
type Config struct {
	MinTechOverlap       float64 // composite score floor driven by tech overlap
	MinCategoryRelevance float64 // composite score floor driven by category relevance
	MinTraction          float64 // raw (un-normalized) traction floor
}

// ConfigForHealth derives pass thresholds from overall stack health.
// Healthy stacks earn stricter thresholds: the healthier the stack, the
// higher the bar for disturbing it. The composite bar is the max of the
// two score floors, so MinCategoryRelevance stays at or below the
// tier's MinTechOverlap to keep each tier's bar distinct.
func ConfigForHealth(health float64) Config {
	switch {
	case health > 0.8:
		return Config{MinTechOverlap: 0.15, MinCategoryRelevance: 0.10, MinTraction: 50}
	case health > 0.5:
		return Config{MinTechOverlap: 0.10, MinCategoryRelevance: 0.10, MinTraction: 20}
	default:
		return Config{MinTechOverlap: 0.05, MinCategoryRelevance: 0.05, MinTraction: 10}
	}
}

// Filter scores every item against the profile and returns one match per
// item, sorted by composite score descending (stable on ties). Passing
// matches beyond the volume cap (maxRecommendations x 6) are demoted with
// a reason so the chain stays strictly 1:1 per item.
//
// Pure: no I/O, no mutation of inputs, never panics. Malformed items
// simply score low.
func Filter(items []types.FeedItem, profile *types.ProjectProfile, cfg Config) []types.PreFilterMatch {
	matches := make([]types.PreFilterMatch, 0, len(items))
	for i := range items {
		matches = append(matches, scoreItem(&items[i], profile, cfg))
	}

	// Stable sort keeps original ordering on equal scores, which makes
	// downstream tie-breaking deterministic.
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	cap := profile.Scouting.MaxRecommendations * volumeCapFactor
	passed := 0
	for i := range matches {
		if !matches[i].Passed {
			continue
		}
		passed++
		if passed > cap {
			matches[i].Passed = false
			matches[i].Reasons = append(matches[i].Reasons, "Volume cap reached")
		}
	}
	return matches
}

func scoreItem(item *types.FeedItem, profile *types.ProjectProfile, cfg Config) types.PreFilterMatch {
	match := types.PreFilterMatch{ItemID: item.ID}

	// Excluded categories are a hard reject that overrides every other
	// score, including a perfect tech overlap.
	for _, cat := range item.Categories {
		for _, excluded := range profile.Scouting.ExcludeCategories {
			if Normalize(cat) == Normalize(excluded) {
				match.Reasons = []string{"Excluded category"}
				return match
			}
		}
	}

	techScore, matchedTech := techOverlap(item.Technologies, profile.Stack.Names())
	catScore, matchedCats := categoryRelevance(item.Categories, profile.Scouting.FocusAreas)
	rawTraction := RawTraction(item.Traction)
	tractionScore := math.Min(rawTraction/tractionNormalizer, 1.0)
	painScore, painMatched := painPointScore(profile.Manifest.PainPoints, item.Text())

	score := techScore*weightTechOverlap +
		catScore*weightCategory +
		tractionScore*weightTraction +
		painScore*weightPainPoint
	if painMatched {
		score += painPointBonus
	}
	if score > 1.0 {
		score = 1.0
	}

	match.Score = score
	match.TechOverlap = techScore
	match.CategoryRelevance = catScore
	match.MatchedTechnologies = matchedTech
	match.MatchedCategories = matchedCats
	match.RawTraction = rawTraction
	match.PainPointMatch = painMatched

	if len(matchedTech) > 0 {
		match.Reasons = append(match.Reasons, fmt.Sprintf("Matched technologies: %s", strings.Join(matchedTech, ", ")))
	}
	if len(matchedCats) > 0 {
		match.Reasons = append(match.Reasons, fmt.Sprintf("Matched focus areas: %s", strings.Join(matchedCats, ", ")))
	}
	if painMatched {
		match.Reasons = append(match.Reasons, "Addresses a known pain point")
	}

	minScore := math.Max(cfg.MinTechOverlap, cfg.MinCategoryRelevance)
	switch {
	case score < minScore:
		match.Reasons = append(match.Reasons, fmt.Sprintf("Score %.2f below threshold %.2f", score, minScore))
	case rawTraction < cfg.MinTraction:
		match.Reasons = append(match.Reasons, fmt.Sprintf("Traction %.0f below threshold %.0f", rawTraction, cfg.MinTraction))
	default:
		match.Passed = true
	}
	return match
}

// techOverlap returns the fraction of item technology tags found among the
// project stack names, plus the matched tags. Matching is exact on the
// normalized form or punctuation-insensitive substring in either direction.
func techOverlap(techs, stackNames []string) (float64, []string) {
	if len(techs) == 0 {
		return 0, nil
	}
	normalized := make([]string, 0, len(stackNames))
	for _, n := range stackNames {
		if norm := Normalize(n); norm != "" {
			normalized = append(normalized, norm)
		}
	}

	var matched []string
	for _, tech := range techs {
		normTech := Normalize(tech)
		if normTech == "" {
			continue
		}
		for _, name := range normalized {
			if normTech == name || strings.Contains(name, normTech) || strings.Contains(normTech, name) {
				matched = append(matched, tech)
				break
			}
		}
	}
	return float64(len(matched)) / float64(len(techs)), matched
}

// categoryRelevance returns the fraction of item categories present in
// the project focus-area set. A project with no focus areas gets a
// neutral 0.5 rather than zeroing out every candidate.
func categoryRelevance(categories, focusAreas []string) (float64, []string) {
	if len(focusAreas) == 0 {
		return 0.5, nil
	}
	if len(categories) == 0 {
		return 0, nil
	}
	focus := make(map[string]bool, len(focusAreas))
	for _, f := range focusAreas {
		focus[Normalize(f)] = true
	}
	var matched []string
	for _, cat := range categories {
		if focus[Normalize(cat)] {
			matched = append(matched, cat)
		}
	}
	return float64(len(matched)) / float64(len(categories)), matched
}

// painPointScore returns the best per-pain-point keyword ratio and
// whether any pain point counts as matched under the shared rule.
func painPointScore(painPoints []string, text string) (float64, bool) {
	best := 0.0
	matched := false
	for _, pp := range painPoints {
		ok, ratio := MatchesPainPoint(pp, text)
		if ratio > best {
			best = ratio
		}
		if ok {
			matched = true
		}
	}
	return best, matched
}

// MatchesPainPoint applies the shared pain-point keyword rule: keywords
// are words longer than 4 characters from the pain point; the pain point
// matches when at least two keywords appear in the text, or when at least
// half of them do. Returns the match decision and the keyword hit ratio.
//
// The stability gate re-applies this same rule to item title/description,
// so both stages stay in agreement about what "addresses a pain point"
// means.
func MatchesPainPoint(painPoint, text string) (bool, float64) {
	keywords := keywordsOf(painPoint)
	if len(keywords) == 0 {
		return false, 0
	}
	normText := Normalize(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(normText, kw) {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(keywords))
	return hits >= 2 || ratio >= 0.5, ratio
}

// RawTraction computes the un-normalized traction score. Star counts are
// capped at 10k so a single mega-repo cannot dominate, and downloads are
// log-scaled because they span many orders of magnitude.
func RawTraction(t *types.Traction) float64 {
	if t == nil {
		return 0
	}
	stars := t.Stars
	if stars > 10000 {
		stars = 10000
	}
	downloads := float64(t.Downloads)
	if downloads < 0 {
		downloads = 0
	}
	raw := t.DiscussionPoints*0.5 +
		float64(stars)*0.01 +
		float64(t.Upvotes)*0.3 +
		math.Log10(downloads+1)*10 +
		t.GenericPoints*0.2
	if raw < 0 {
		return 0
	}
	return raw
}

// Normalize lowercases a string and strips everything that is not a
// letter or digit, making matching punctuation-insensitive
// ("Node.js" == "nodejs").
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// keywordsOf extracts the pain-point keywords: lowercase words longer
// than 4 characters, normalized for punctuation.
func keywordsOf(s string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if norm := Normalize(word); len(norm) > 4 {
			keywords = append(keywords, norm)
		}
	}
	return keywords
}
