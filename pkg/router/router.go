// Package router selects a writer capability tier when dynamic model
// selection is enabled.
//
// The heuristic scores plan complexity and brief richness, maps the score
// into the policy's configured tier range, honors an explicit planner
// recommendation, and escalates one tier per prior failed review so the
// pipeline tries harder after failure.
package router

import (
	"strings"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/policy"
)

// Tiers is the ordered capability ladder, low to high.
var Tiers = []string{"lite", "standard", "premium"}

// Summary length thresholds feeding the complexity score.
const (
	longSummaryChars     = 240
	veryLongSummaryChars = 480
)

// PlanShape is the slice of the channel plan the router scores: how many
// channels are planned and how many steps they carry in total.
type PlanShape struct {
	Channels int
	Steps    int

	// RecommendedTier is the planner's explicit tier suggestion, if any.
	// When set it takes precedence over the score-based pick (clamped
	// into range).
	RecommendedTier string
}

// ComplexityScore rates how demanding the writing task looks. Each
// contributing signal adds one point; the score is monotonic in plan size
// and brief richness.
func ComplexityScore(plan PlanShape, b brief.Brief) int {
	score := 0
	if plan.Channels > 2 {
		score++
	}
	if plan.Steps > 6 {
		score++
	}
	if len(b.ProofPoints) >= 3 {
		score++
	}
	if len(b.ValueProps) >= 3 {
		score++
	}
	if len(b.Audience) >= 3 {
		score++
	}
	if len(b.Summary) > longSummaryChars {
		score++
	}
	if len(b.Summary) > veryLongSummaryChars {
		score++
	}
	return score
}

// SelectWriterTier picks the writer tier for the next attempt.
// failedReviews is the count of failed review attempts so far; each one
// escalates the pick by one tier, bounded by the configured maximum.
func SelectWriterTier(plan PlanShape, b brief.Brief, pol policy.Policy, failedReviews int) string {
	minIdx := clampIndex(tierIndex(pol.ModelRange.Min), 0, len(Tiers)-1)
	maxIdx := clampIndex(tierIndex(pol.ModelRange.Max), 0, len(Tiers)-1)
	if minIdx > maxIdx {
		minIdx, maxIdx = maxIdx, minIdx
	}

	var idx int
	if rec := plan.RecommendedTier; rec != "" && tierIndex(rec) >= 0 {
		// Planner recommendation wins, clamped into range.
		idx = clampIndex(tierIndex(rec), minIdx, maxIdx)
	} else {
		idx = clampIndex(scoreToIndex(ComplexityScore(plan, b), minIdx, maxIdx), minIdx, maxIdx)
	}

	if failedReviews > 0 {
		idx = clampIndex(idx+failedReviews, minIdx, maxIdx)
	}

	return Tiers[idx]
}

// scoreToIndex maps a complexity score onto the allowed index interval:
// low scores stay at the bottom, mid scores land in the middle, and high
// scores reach the top.
func scoreToIndex(score, minIdx, maxIdx int) int {
	span := maxIdx - minIdx
	switch {
	case score <= 1:
		return minIdx
	case score <= 3:
		return minIdx + (span+1)/2
	default:
		return maxIdx
	}
}

func tierIndex(tier string) int {
	tier = strings.ToLower(strings.TrimSpace(tier))
	for i, t := range Tiers {
		if t == tier {
			return i
		}
	}
	return -1
}

func clampIndex(idx, min, max int) int {
	if idx < min {
		return min
	}
	if idx > max {
		return max
	}
	return idx
}
