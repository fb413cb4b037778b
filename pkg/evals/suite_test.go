package evals

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"briefline/copyforge/internal/pipelinetest"
	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/review"
)

// positionalJudge always prefers whichever drafts are shown first, and
// records which position the current drafts occupied per vote.
type positionalJudge struct {
	mu        sync.Mutex
	positions []bool // true when the marker drafts were shown first
	marker    string
	err       error
}

func (j *positionalJudge) Compare(_ context.Context, _ brief.Inputs, a, b map[string]string) (Verdict, float64, error) {
	if j.err != nil {
		return "", 0, j.err
	}
	j.mu.Lock()
	j.positions = append(j.positions, a[review.ChannelEmail] == j.marker)
	j.mu.Unlock()
	return VerdictA, 0.8, nil
}

func markedDrafts(marker string) map[string]string {
	return map[string]string{
		review.ChannelEmail:      marker,
		review.ChannelPaidSocial: marker,
		review.ChannelSearchAds:  marker,
	}
}

func TestPairwiseRandomizesOrder(t *testing.T) {
	judge := &positionalJudge{marker: "current"}
	rng := rand.New(rand.NewSource(1))

	result, err := Pairwise(context.Background(), judge, rng, slog.Default(),
		pipelinetest.SampleInputs(), markedDrafts("current"), markedDrafts("baseline"), 50)
	if err != nil {
		t.Fatalf("Pairwise error: %v", err)
	}
	if result.Votes != 50 {
		t.Fatalf("votes = %d, want 50", result.Votes)
	}

	// A first-position-biased judge must not hand the current drafts every
	// vote: both presentation orders have to occur.
	first, second := 0, 0
	for _, currentFirst := range judge.positions {
		if currentFirst {
			first++
		} else {
			second++
		}
	}
	if first == 0 || second == 0 {
		t.Errorf("presentation order never varied: first=%d second=%d", first, second)
	}

	// Wins must equal the votes where current was shown first, since the
	// judge always picks position A.
	if result.Wins != first {
		t.Errorf("wins = %d, want %d", result.Wins, first)
	}
	if result.AvgConfidence != 0.8 {
		t.Errorf("avgConfidence = %v, want 0.8", result.AvgConfidence)
	}
}

func TestPairwiseAllVotesFail(t *testing.T) {
	judge := &positionalJudge{err: fmt.Errorf("judge offline")}
	rng := rand.New(rand.NewSource(1))

	_, err := Pairwise(context.Background(), judge, rng, slog.Default(),
		pipelinetest.SampleInputs(), markedDrafts("current"), markedDrafts("baseline"), 3)
	if err == nil {
		t.Fatal("expected error when every vote fails")
	}
}

func TestJudgeEnabled(t *testing.T) {
	on, off := true, false

	tests := []struct {
		name     string
		override *bool
		policy   bool
		want     bool
	}{
		{name: "policy default off", want: false},
		{name: "policy default on", policy: true, want: true},
		{name: "override on beats policy off", override: &on, want: true},
		{name: "override off beats policy on", override: &off, policy: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pol := policy.Default()
			pol.AlwaysUseLLMJudge = tt.policy
			if got := JudgeEnabled(tt.override, pol); got != tt.want {
				t.Errorf("JudgeEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunSuite(t *testing.T) {
	in := pipelinetest.SampleInputs()
	e := NewEngine(Config{Seed: 1})

	cases := []Case{
		{
			Name:   "clean with healthy baseline",
			Inputs: in,
			Drafts: cleanDrafts(),
			Baseline: &Baseline{
				Score: 0.95,
			},
		},
		{
			Name:   "regressed",
			Inputs: in,
			Drafts: map[string]string{
				review.ChannelEmail:      "Act fast, this is guaranteed to work.",
				review.ChannelPaidSocial: "Act fast, this is guaranteed to work.",
				review.ChannelSearchAds:  "Act fast, this is guaranteed to work.",
			},
			Baseline: &Baseline{Score: 0.95},
		},
		{
			Name:   "ungated",
			Inputs: in,
			Drafts: cleanDrafts(),
		},
	}

	result := e.RunSuite(context.Background(), cases, policy.Default(), Options{RegressionCheck: true})

	if len(result.Cases) != 3 {
		t.Fatalf("cases = %d, want 3", len(result.Cases))
	}

	clean := result.Cases[0]
	if clean.Scores.Overall != 1.0 {
		t.Errorf("clean overall = %v, want 1.0", clean.Scores.Overall)
	}
	if clean.GatePass == nil || !*clean.GatePass {
		t.Errorf("clean gate = %v, want pass", clean.GatePass)
	}

	regressed := result.Cases[1]
	if regressed.GatePass == nil || *regressed.GatePass {
		t.Errorf("regressed gate = %v, want fail", regressed.GatePass)
	}
	if regressed.Delta == nil || *regressed.Delta >= DefaultRegressionThreshold {
		t.Errorf("regressed delta = %v, want below threshold", regressed.Delta)
	}

	ungated := result.Cases[2]
	if ungated.GatePass != nil {
		t.Errorf("ungated case has a gate verdict: %v", *ungated.GatePass)
	}

	if result.GatePass {
		t.Error("suite gate passed despite a regressed case")
	}
	if result.AvgScore <= 0 || result.AvgScore > 1.0 {
		t.Errorf("avgScore = %v out of range", result.AvgScore)
	}
}

func TestRunSuitePairwise(t *testing.T) {
	in := pipelinetest.SampleInputs()
	judge := &positionalJudge{marker: cleanDrafts()[review.ChannelEmail]}
	e := NewEngine(Config{Pairwise: judge, Seed: 1})

	cases := []Case{
		{
			Name:   "with baseline drafts",
			Inputs: in,
			Drafts: cleanDrafts(),
			Baseline: &Baseline{
				Score:  0.90,
				Drafts: markedDrafts("baseline"),
			},
		},
	}

	result := e.RunSuite(context.Background(), cases, policy.Default(), Options{PairwiseVotes: 10})
	pw := result.Cases[0].Pairwise
	if pw == nil {
		t.Fatal("pairwise result missing")
	}
	if pw.Votes != 10 {
		t.Errorf("votes = %d, want 10", pw.Votes)
	}

	// Pairwise without RegressionCheck must not gate.
	if result.Cases[0].GatePass != nil {
		t.Error("gate verdict set without regression checking")
	}
}

func TestRunSuiteConcurrentPairwise(t *testing.T) {
	in := pipelinetest.SampleInputs()
	judge := &positionalJudge{marker: cleanDrafts()[review.ChannelEmail]}
	e := NewEngine(Config{Pairwise: judge, Seed: 1})

	cases := []Case{
		{
			Name:   "concurrent",
			Inputs: in,
			Drafts: cleanDrafts(),
			Baseline: &Baseline{
				Score:  0.90,
				Drafts: markedDrafts("baseline"),
			},
		},
	}
	opts := Options{PairwiseVotes: 50}

	// One engine serves every API request, so suites run concurrently.
	// Each suite derives its own generator from the seed: the runs must
	// not share rand state, and a fixed seed must make them identical.
	const suites = 4
	results := make([]SuiteResult, suites)
	var wg sync.WaitGroup
	for i := 0; i < suites; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.RunSuite(context.Background(), cases, policy.Default(), opts)
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		pw := result.Cases[0].Pairwise
		if pw == nil {
			t.Fatalf("suite %d: pairwise result missing", i)
		}
		if pw.Votes != 50 {
			t.Errorf("suite %d: votes = %d, want 50", i, pw.Votes)
		}
		if *pw != *results[0].Cases[0].Pairwise {
			t.Errorf("suite %d: pairwise result %+v differs from suite 0 %+v",
				i, *pw, *results[0].Cases[0].Pairwise)
		}
	}
}
