package evals

import (
	"context"
	"log/slog"
	"math/rand"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/review"
)

// Baseline is a stored historical result a case is compared against.
type Baseline struct {
	// Score is the baseline's overall score.
	Score float64 `json:"score"`

	// Drafts is the baseline's draft set, required only for pairwise
	// comparison.
	Drafts map[string]string `json:"drafts,omitempty"`
}

// Case is one eval case: the inputs a draft set was generated from, the
// drafts to score, and an optional baseline.
type Case struct {
	Name     string            `json:"name"`
	Inputs   brief.Inputs      `json:"inputs"`
	Drafts   map[string]string `json:"drafts"`
	Baseline *Baseline         `json:"baseline,omitempty"`
}

// CaseResult is the scored outcome for one case.
type CaseResult struct {
	Name   string `json:"name"`
	Scores Scores `json:"scores"`

	// Review is the full review verdict the scores were derived from.
	Review review.Result `json:"review"`

	// BaselineScore, Delta, and GatePass are set only when the case has a
	// baseline and regression checking is enabled.
	BaselineScore *float64 `json:"baselineScore,omitempty"`
	Delta         *float64 `json:"delta,omitempty"`
	GatePass      *bool    `json:"gatePass,omitempty"`

	// Pairwise is set when pairwise voting ran for this case.
	Pairwise *PairwiseResult `json:"pairwise,omitempty"`
}

// SuiteResult aggregates the case results.
type SuiteResult struct {
	Cases []CaseResult `json:"cases"`

	// AvgScore is the mean overall score across cases, rounded to two
	// decimals.
	AvgScore float64 `json:"avgScore"`

	// GatePass is true iff every gated case passed its regression gate.
	// Cases without a baseline do not gate.
	GatePass bool `json:"gatePass"`
}

// Options controls a suite run.
type Options struct {
	// UseJudge explicitly enables or disables the LLM judge during review
	// scoring. When nil the policy's alwaysUseLlmJudge default applies.
	UseJudge *bool

	// RegressionCheck enables the gate for cases carrying a baseline.
	RegressionCheck bool

	// Threshold overrides DefaultRegressionThreshold when non-nil.
	Threshold *float64

	// PairwiseVotes enables pairwise voting against baseline drafts when
	// positive.
	PairwiseVotes int
}

// Engine runs eval suites.
type Engine struct {
	reviewer *review.Engine
	pairwise PairwiseJudge
	seed     int64
	logger   *slog.Logger
}

// Config assembles an eval engine. Judge and Pairwise are optional; Seed
// fixes the pairwise presentation order for reproducible suites.
type Config struct {
	Judge    review.Judge
	Pairwise PairwiseJudge
	Seed     int64
	Logger   *slog.Logger
}

// NewEngine creates an eval engine from the given configuration.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		reviewer: review.NewEngine(cfg.Judge, logger),
		pairwise: cfg.Pairwise,
		seed:     cfg.Seed,
		logger:   logger.With("component", "evals"),
	}
}

// JudgeEnabled resolves whether the LLM judge runs during scoring: an
// explicit per-run override wins, then the policy default applies.
func JudgeEnabled(override *bool, pol policy.Policy) bool {
	if override != nil {
		return *override
	}
	return pol.AlwaysUseLLMJudge
}

// RunSuite scores every case under the given policy and applies the
// regression gate and optional pairwise voting.
func (e *Engine) RunSuite(ctx context.Context, cases []Case, pol policy.Policy, opts Options) SuiteResult {
	pol = policy.Normalize(pol)
	useJudge := JudgeEnabled(opts.UseJudge, pol)
	threshold := DefaultRegressionThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	// Each suite gets its own generator so concurrent suites never share
	// rand state and a fixed seed reproduces the same vote ordering.
	rng := rand.New(rand.NewSource(e.seed))

	result := SuiteResult{GatePass: true}
	var scoreSum float64

	for _, c := range cases {
		cr := e.runCase(ctx, c, pol, useJudge, threshold, opts, rng)
		scoreSum += cr.Scores.Overall
		if cr.GatePass != nil && !*cr.GatePass {
			result.GatePass = false
		}
		result.Cases = append(result.Cases, cr)
	}

	if len(result.Cases) > 0 {
		result.AvgScore = round2(scoreSum / float64(len(result.Cases)))
	}
	return result
}

func (e *Engine) runCase(ctx context.Context, c Case, pol policy.Policy, useJudge bool, threshold float64, opts Options, rng *rand.Rand) CaseResult {
	rev := e.reviewer.Review(ctx, c.Inputs, c.Drafts, pol, useJudge)
	cr := CaseResult{
		Name:   c.Name,
		Scores: ScoreDrafts(c.Inputs, c.Drafts, rev),
		Review: rev,
	}

	if c.Baseline != nil && opts.RegressionCheck {
		delta, pass := Gate(cr.Scores.Overall, c.Baseline.Score, threshold)
		baseline := c.Baseline.Score
		cr.BaselineScore = &baseline
		cr.Delta = &delta
		cr.GatePass = &pass
	}

	if c.Baseline != nil && len(c.Baseline.Drafts) > 0 && opts.PairwiseVotes > 0 && e.pairwise != nil {
		pw, err := Pairwise(ctx, e.pairwise, rng, e.logger, c.Inputs, c.Drafts, c.Baseline.Drafts, opts.PairwiseVotes)
		if err != nil {
			e.logger.Warn("pairwise comparison skipped", "case", c.Name, "error", err)
		} else {
			cr.Pairwise = &pw
		}
	}

	e.logger.Info("case scored", "case", c.Name, "overall", cr.Scores.Overall, "pass", rev.Pass)
	return cr
}
