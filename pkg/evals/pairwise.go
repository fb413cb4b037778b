package evals

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"briefline/copyforge/pkg/brief"
)

// Verdict is a pairwise judge's pick for one vote.
type Verdict string

const (
	VerdictA   Verdict = "a"
	VerdictB   Verdict = "b"
	VerdictTie Verdict = "tie"
)

// PairwiseJudge compares two draft sets for the same inputs and picks a
// winner with a confidence in [0, 1].
type PairwiseJudge interface {
	Compare(ctx context.Context, in brief.Inputs, a, b map[string]string) (Verdict, float64, error)
}

// PairwiseResult aggregates repeated comparison votes of a current draft
// set against a baseline draft set.
type PairwiseResult struct {
	// Votes is the number of votes that completed.
	Votes int `json:"votes"`

	// Wins counts votes where the current drafts won.
	Wins int `json:"wins"`

	// Ties counts tie votes.
	Ties int `json:"ties"`

	// WinRate is Wins/Votes, rounded to two decimals.
	WinRate float64 `json:"winRate"`

	// AvgConfidence is the mean judge confidence over completed votes,
	// rounded to two decimals.
	AvgConfidence float64 `json:"avgConfidence"`

	// Failures counts votes the judge failed to complete.
	Failures int `json:"failures,omitempty"`
}

// Pairwise runs votes repeated comparisons of current against baseline.
// The presentation order is randomized per vote to cancel positional bias
// in the judge. Failed votes are skipped with a warning; an error is
// returned only when no vote completes.
func Pairwise(ctx context.Context, judge PairwiseJudge, rng *rand.Rand, logger *slog.Logger, in brief.Inputs, current, baseline map[string]string, votes int) (PairwiseResult, error) {
	if judge == nil {
		return PairwiseResult{}, fmt.Errorf("no pairwise judge configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if votes <= 0 {
		votes = 1
	}

	var result PairwiseResult
	var confidenceSum float64

	for i := 0; i < votes; i++ {
		currentFirst := rng.Intn(2) == 0
		a, b := current, baseline
		if !currentFirst {
			a, b = baseline, current
		}

		verdict, confidence, err := judge.Compare(ctx, in, a, b)
		if err != nil {
			result.Failures++
			logger.Warn("pairwise vote failed", "vote", i, "error", err)
			continue
		}

		result.Votes++
		confidenceSum += confidence
		switch {
		case verdict == VerdictTie:
			result.Ties++
		case (verdict == VerdictA) == currentFirst:
			result.Wins++
		}
	}

	if result.Votes == 0 {
		return result, fmt.Errorf("all %d pairwise votes failed", votes)
	}
	result.WinRate = round2(float64(result.Wins) / float64(result.Votes))
	result.AvgConfidence = round2(confidenceSum / float64(result.Votes))
	return result, nil
}
