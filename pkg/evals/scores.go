// Package evals scores generated copy against deterministic rules and
// stored baselines to catch regressions, and supports pairwise comparison
// voting through an external judge.
package evals

import (
	"math"
	"regexp"
	"strings"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/review"
)

// DefaultRegressionThreshold is the minimum score delta against a baseline
// that still passes the regression gate.
const DefaultRegressionThreshold = -0.05

// safetyIssuePenalty is deducted from the safety sub-score per
// safety-tagged review issue.
const safetyIssuePenalty = 0.25

var scoreNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Scores holds the four sub-scores and their unweighted mean.
type Scores struct {
	// Factuality is the fraction of numbers in the drafts that trace back
	// to numbers in the brief. 1.0 when the drafts cite no numbers.
	Factuality float64 `json:"factuality"`

	// Denylist is the fraction of channels free of denylisted phrases.
	Denylist float64 `json:"denylist"`

	// Consistency is the fraction of channels that carry both the product
	// name and at least one keyword from the anchor value proposition.
	Consistency float64 `json:"consistency"`

	// Safety starts at 1.0 and loses a fixed deduction per safety-tagged
	// review issue, floored at zero.
	Safety float64 `json:"safety"`

	// Overall is the unweighted mean of the sub-scores, rounded to two
	// decimals.
	Overall float64 `json:"overall"`
}

// ScoreDrafts computes the sub-scores for one draft set. rev is the review
// verdict for the same drafts; only its safety-tagged and denylist-tagged
// issues feed the scores.
func ScoreDrafts(in brief.Inputs, drafts map[string]string, rev review.Result) Scores {
	s := Scores{
		Factuality:  factualityScore(in.Brief, drafts),
		Denylist:    denylistScore(in.Denylist, drafts),
		Consistency: consistencyScore(in.Brief, drafts),
		Safety:      safetyScore(rev),
	}
	s.Overall = round2((s.Factuality + s.Denylist + s.Consistency + s.Safety) / 4)
	return s
}

// factualityScore checks that every number in the drafts appears somewhere
// in the brief's source text.
func factualityScore(b brief.Brief, drafts map[string]string) float64 {
	provided := make(map[string]bool)
	for _, n := range scoreNumberPattern.FindAllString(b.Raw, -1) {
		provided[n] = true
	}
	for _, p := range b.ProofPoints {
		for _, n := range scoreNumberPattern.FindAllString(p, -1) {
			provided[n] = true
		}
	}

	cited := make(map[string]bool)
	for _, channel := range review.Channels {
		for _, n := range scoreNumberPattern.FindAllString(drafts[channel], -1) {
			cited[n] = true
		}
	}
	if len(cited) == 0 {
		return 1.0
	}

	grounded := 0
	for n := range cited {
		if provided[n] {
			grounded++
		}
	}
	return round2(float64(grounded) / float64(len(cited)))
}

// denylistScore is the fraction of channels containing no banned phrase.
func denylistScore(deny brief.Denylist, drafts map[string]string) float64 {
	if len(deny.Phrases) == 0 {
		return 1.0
	}
	clean := 0
	for _, channel := range review.Channels {
		lower := strings.ToLower(drafts[channel])
		hit := false
		for _, phrase := range deny.Phrases {
			if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
				hit = true
				break
			}
		}
		if !hit {
			clean++
		}
	}
	return round2(float64(clean) / float64(len(review.Channels)))
}

// consistencyScore checks that the product name and the anchor value
// proposition's keywords show up in every channel.
func consistencyScore(b brief.Brief, drafts map[string]string) float64 {
	product := strings.ToLower(strings.TrimSpace(b.Product))
	keywords := anchorKeywords(b)
	if product == "" && len(keywords) == 0 {
		return 1.0
	}

	consistent := 0
	for _, channel := range review.Channels {
		lower := strings.ToLower(drafts[channel])
		if product != "" && !strings.Contains(lower, product) {
			continue
		}
		if len(keywords) > 0 && !containsAny(lower, keywords) {
			continue
		}
		consistent++
	}
	return round2(float64(consistent) / float64(len(review.Channels)))
}

// anchorKeywords returns the significant words of the first value
// proposition, lowercased. Short filler words are skipped.
func anchorKeywords(b brief.Brief) []string {
	if len(b.ValueProps) == 0 {
		return nil
	}
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(b.ValueProps[0])) {
		word = strings.Trim(word, ".,;:!?\"'")
		if len(word) > 3 {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

func safetyScore(rev review.Result) float64 {
	score := 1.0
	for _, issue := range rev.Issues {
		if issue.Type == review.IssueSafety {
			score -= safetyIssuePenalty
		}
	}
	if score < 0 {
		score = 0
	}
	return round2(score)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Gate applies the regression gate: delta = score - baseline, passing iff
// delta is at or above the threshold.
func Gate(score, baseline, threshold float64) (delta float64, pass bool) {
	delta = round2(score - baseline)
	return delta, delta >= threshold
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
