package evals

import (
	"testing"

	"briefline/copyforge/internal/pipelinetest"
	"briefline/copyforge/pkg/review"
)

func cleanDrafts() map[string]string {
	return map[string]string{
		review.ChannelEmail:      "Subject: SignalShip: Automatic reorder points\n\nSignalShip cut stockouts by 22% in 60 days. Book a demo.",
		review.ChannelPaidSocial: "SignalShip: Automatic reorder points. Cut stockouts by 22% in 60 days. Book a demo.",
		review.ChannelSearchAds:  "SignalShip | Automatic reorder points\nCut stockouts by 22% in 60 days. Book a demo.",
	}
}

func TestScoreDraftsClean(t *testing.T) {
	in := pipelinetest.SampleInputs()
	s := ScoreDrafts(in, cleanDrafts(), review.Result{Pass: true})

	if s.Factuality != 1.0 {
		t.Errorf("factuality = %v, want 1.0", s.Factuality)
	}
	if s.Denylist != 1.0 {
		t.Errorf("denylist = %v, want 1.0", s.Denylist)
	}
	if s.Consistency != 1.0 {
		t.Errorf("consistency = %v, want 1.0", s.Consistency)
	}
	if s.Safety != 1.0 {
		t.Errorf("safety = %v, want 1.0", s.Safety)
	}
	if s.Overall != 1.0 {
		t.Errorf("overall = %v, want 1.0", s.Overall)
	}
}

func TestFactualityScore(t *testing.T) {
	in := pipelinetest.SampleInputs()

	tests := []struct {
		name   string
		mutate func(map[string]string)
		want   float64
	}{
		{
			name:   "all numbers traced",
			mutate: func(map[string]string) {},
			want:   1.0,
		},
		{
			name: "one invented number among grounded ones",
			mutate: func(d map[string]string) {
				d[review.ChannelPaidSocial] = "SignalShip: Automatic reorder points. Cut stockouts by 22% in 60 days for 9000 warehouses. Book a demo."
			},
			// 22 and 60 trace to the brief; 9000 does not.
			want: 0.67,
		},
		{
			name: "no numbers at all",
			mutate: func(d map[string]string) {
				for k := range d {
					d[k] = "SignalShip: Automatic reorder points. Book a demo."
				}
			},
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := cleanDrafts()
			tt.mutate(drafts)
			if got := factualityScore(in.Brief, drafts); got != tt.want {
				t.Errorf("factualityScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDenylistScore(t *testing.T) {
	in := pipelinetest.SampleInputs()
	drafts := cleanDrafts()
	drafts[review.ChannelSearchAds] = "SignalShip is best in class. Book a demo."

	if got := denylistScore(in.Denylist, drafts); got != 0.67 {
		t.Errorf("denylistScore() = %v, want 0.67 with one dirty channel", got)
	}
}

func TestConsistencyScore(t *testing.T) {
	in := pipelinetest.SampleInputs()

	drafts := cleanDrafts()
	// Drop the product name and the anchor value prop from one channel.
	drafts[review.ChannelSearchAds] = "Keep shelves stocked. Book a demo."
	if got := consistencyScore(in.Brief, drafts); got != 0.67 {
		t.Errorf("consistencyScore() = %v, want 0.67", got)
	}

	// Product present but anchor keywords absent still counts as
	// inconsistent.
	drafts[review.ChannelSearchAds] = "SignalShip keeps shelves stocked. Book a demo."
	if got := consistencyScore(in.Brief, drafts); got != 0.67 {
		t.Errorf("consistencyScore() = %v, want 0.67 without anchor keywords", got)
	}
}

func TestSafetyScore(t *testing.T) {
	safetyIssue := review.Issue{Channel: review.ChannelEmail, Type: review.IssueSafety, Message: "x"}
	toneIssue := review.Issue{Channel: review.ChannelEmail, Type: review.IssueTone, Message: "y"}

	tests := []struct {
		name   string
		issues []review.Issue
		want   float64
	}{
		{name: "no issues", want: 1.0},
		{name: "non-safety issues do not deduct", issues: []review.Issue{toneIssue}, want: 1.0},
		{name: "one safety issue", issues: []review.Issue{safetyIssue}, want: 0.75},
		{
			name:   "floor at zero",
			issues: []review.Issue{safetyIssue, safetyIssue, safetyIssue, safetyIssue, safetyIssue},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := safetyScore(review.Result{Issues: tt.issues}); got != tt.want {
				t.Errorf("safetyScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		baseline  float64
		threshold float64
		wantDelta float64
		wantPass  bool
	}{
		{name: "regression beyond threshold fails", score: 0.74, baseline: 0.80, threshold: DefaultRegressionThreshold, wantDelta: -0.06, wantPass: false},
		{name: "regression within threshold passes", score: 0.76, baseline: 0.80, threshold: DefaultRegressionThreshold, wantDelta: -0.04, wantPass: true},
		{name: "delta exactly at threshold passes", score: 0.75, baseline: 0.80, threshold: DefaultRegressionThreshold, wantDelta: -0.05, wantPass: true},
		{name: "improvement passes", score: 0.90, baseline: 0.80, threshold: DefaultRegressionThreshold, wantDelta: 0.10, wantPass: true},
		{name: "strict threshold", score: 0.79, baseline: 0.80, threshold: 0, wantDelta: -0.01, wantPass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, pass := Gate(tt.score, tt.baseline, tt.threshold)
			if delta != tt.wantDelta {
				t.Errorf("delta = %v, want %v", delta, tt.wantDelta)
			}
			if pass != tt.wantPass {
				t.Errorf("pass = %v, want %v", pass, tt.wantPass)
			}
		})
	}
}
