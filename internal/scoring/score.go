// Package scoring converts raw post data into a relevance score and triage
// category. Scoring is pure and deterministic so leads can be re-scored
// idempotently whenever metrics are re-supplied.
package scoring

import (
	"strings"

	"github.com/jonathan/leadscout/internal/types"
)

// Weights for the composite score. They sum to 1.0 and each component is
// clamped to its own ceiling before summation.
const (
	keywordRelevanceWeight = 0.4
	intentSignalWeight     = 0.3
	engagementWeight       = 0.2
	domainBonusWeight      = 0.1
)

// Category thresholds.
const (
	hotThreshold  = 0.6
	warmThreshold = 0.3
)

// Engagement tiers for the weighted engagement value (likes + 2*replies).
// Reposts are deliberately excluded from the formula; repost weighting is a
// future configurable extension.
const (
	engagementHighCutoff = 10
	engagementMidCutoff  = 5
	engagementMidScore   = 0.15
	engagementLowScore   = 0.1
)

// intentMarkers signal that the author is asking for something rather than
// announcing something.
var intentMarkers = []string{
	"recommend",
	"help",
	"need",
	"looking for",
	"suggest",
	"advice",
	"anyone know",
	"struggling",
}

// domainTerms is the fixed business-context vocabulary for the bonus term.
var domainTerms = []string{
	"automation",
	"workflow",
	"productivity",
	"business",
	"agency",
	"saas",
}

// Score computes the composite relevance score for a post against the job's
// keyword set and derives the triage category. The score is always in [0,1].
func Score(post types.RawPost, keywords []string) (float64, types.Category) {
	text := strings.ToLower(post.Text)

	score := relevanceScore(text, keywords) +
		intentScore(text) +
		engagementScore(post) +
		domainBonus(text)

	score = clamp(score)
	return score, CategoryFor(score)
}

// CategoryFor maps a score to its triage category. It is the only place the
// category thresholds are applied.
func CategoryFor(score float64) types.Category {
	switch {
	case score > hotThreshold:
		return types.CategoryHot
	case score > warmThreshold:
		return types.CategoryWarm
	default:
		return types.CategoryCold
	}
}

// relevanceScore is the fraction of keywords present in the text, weighted.
// Each keyword counts at most once regardless of how often it occurs.
func relevanceScore(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	matches := 0
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			matches++
		}
	}

	return float64(matches) / float64(len(keywords)) * keywordRelevanceWeight
}

// intentScore contributes the full intent weight when the text contains a
// question mark or one of the intent markers.
func intentScore(text string) float64 {
	if strings.Contains(text, "?") {
		return intentSignalWeight
	}
	for _, marker := range intentMarkers {
		if strings.Contains(text, marker) {
			return intentSignalWeight
		}
	}
	return 0
}

// engagementScore tiers the weighted engagement value. Absent counters are
// zero, so a post without metrics contributes nothing.
func engagementScore(post types.RawPost) float64 {
	engagement := post.Likes + 2*post.Replies

	switch {
	case engagement > engagementHighCutoff:
		return engagementWeight
	case engagement > engagementMidCutoff:
		return engagementMidScore
	case engagement > 0:
		return engagementLowScore
	default:
		return 0
	}
}

// domainBonus contributes the full bonus when any business-context term
// appears in the text.
func domainBonus(text string) float64 {
	for _, term := range domainTerms {
		if strings.Contains(text, term) {
			return domainBonusWeight
		}
	}
	return 0
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
