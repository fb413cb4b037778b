package review

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/policy"
)

func testInputs() brief.Inputs {
	return brief.ParseInputs(
		`Product: SignalShip
Summary: SignalShip predicts stock risk before it bites.
Value Props:
- Fewer stockouts without bigger buffers
Proof Points:
- Cut stockouts by 22% in 60 days
`,
		`Voice: Plain and direct.
Do not:
- revolutionary
`,
		"best in class\n",
	)
}

func cleanDrafts() map[string]string {
	return map[string]string{
		ChannelEmail:      "SignalShip predicts stock risk before it bites. Cut stockouts by 22% in 60 days. Start a free pilot.",
		ChannelPaidSocial: "Fewer stockouts without bigger buffers. SignalShip customers cut stockouts by 22% in 60 days.",
		ChannelSearchAds:  "SignalShip. Cut stockouts by 22% in 60 days. Fewer stockouts without bigger buffers.",
	}
}

type fakeJudge struct {
	issues []Issue
	err    error
	calls  int
}

func (f *fakeJudge) Review(ctx context.Context, in brief.Inputs, drafts map[string]string) ([]Issue, error) {
	f.calls++
	return f.issues, f.err
}

func TestReviewCleanDraftsPass(t *testing.T) {
	engine := NewEngine(nil, nil)
	r := engine.Review(context.Background(), testInputs(), cleanDrafts(), policy.Default(), false)

	if !r.Pass {
		t.Errorf("Pass = false, want true; issues: %+v", r.Issues)
	}
	if r.MissingFacts {
		t.Error("MissingFacts = true, want false")
	}
	if len(r.Issues) != 0 {
		t.Errorf("Issues = %+v, want none", r.Issues)
	}
}

func TestReviewUngroundedNumber(t *testing.T) {
	engine := NewEngine(nil, nil)
	drafts := cleanDrafts()
	drafts[ChannelPaidSocial] = "SignalShip cut stockouts by 23% in 60 days."

	r := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)

	if r.Pass {
		t.Error("Pass = true, want false")
	}
	var grounding []Issue
	for _, issue := range r.Issues {
		if issue.Type == IssueGrounding {
			grounding = append(grounding, issue)
		}
	}
	if len(grounding) != 1 {
		t.Fatalf("grounding issues = %+v, want exactly 1", grounding)
	}
	if !strings.Contains(grounding[0].Message, "23") {
		t.Errorf("grounding message %q should mention the offending number 23", grounding[0].Message)
	}
	if grounding[0].Channel != ChannelPaidSocial {
		t.Errorf("channel = %q, want paid_social", grounding[0].Channel)
	}
}

func TestReviewGroundingDedupAcrossChannels(t *testing.T) {
	engine := NewEngine(nil, nil)
	drafts := cleanDrafts()
	drafts[ChannelEmail] = "Save 37% with SignalShip. Cut stockouts by 22% in 60 days."
	drafts[ChannelPaidSocial] = "Save 37% with SignalShip. Cut stockouts by 22% in 60 days."

	r := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)

	count := 0
	for _, issue := range r.Issues {
		if issue.Type == IssueGrounding {
			count++
		}
	}
	if count != 1 {
		t.Errorf("grounding issues = %d, want 1 (deduplicated across channels)", count)
	}
}

func TestReviewOrdinalMarkersStripped(t *testing.T) {
	engine := NewEngine(nil, nil)
	drafts := cleanDrafts()
	drafts[ChannelEmail] = "Why SignalShip:\n1) Cut stockouts by 22% in 60 days\n2) Fewer stockouts without bigger buffers"

	r := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)
	for _, issue := range r.Issues {
		if issue.Type == IssueGrounding {
			t.Errorf("ordinal list markers should not need grounding: %+v", issue)
		}
	}
}

func TestReviewDenylist(t *testing.T) {
	engine := NewEngine(nil, nil)
	drafts := cleanDrafts()
	drafts[ChannelSearchAds] = "SignalShip is Best In Class. Cut stockouts by 22% in 60 days."

	r := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)

	found := false
	for _, issue := range r.Issues {
		if issue.Type == IssueDenylist && issue.Channel == ChannelSearchAds {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a denylist issue, got %+v", r.Issues)
	}
}

func TestReviewToneChecks(t *testing.T) {
	engine := NewEngine(nil, nil)

	t.Run("do-not phrase", func(t *testing.T) {
		drafts := cleanDrafts()
		drafts[ChannelEmail] = "SignalShip is a revolutionary way to cut stockouts by 22% in 60 days."
		r := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)
		found := false
		for _, issue := range r.Issues {
			if issue.Type == IssueTone {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a tone issue, got %+v", r.Issues)
		}
	})

	t.Run("overlong sentence flags once", func(t *testing.T) {
		long := "SignalShip " + strings.Repeat("really ", SentenceWordCeiling) + "works with 22 warehouses."
		drafts := cleanDrafts()
		drafts[ChannelEmail] = long + " " + long
		r := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)
		count := 0
		for _, issue := range r.Issues {
			if issue.Type == IssueFormat && issue.Channel == ChannelEmail {
				count++
			}
		}
		if count != 1 {
			t.Errorf("format issues = %d, want exactly 1", count)
		}
	})

	t.Run("digit-free draft against numeric proof", func(t *testing.T) {
		drafts := cleanDrafts()
		drafts[ChannelPaidSocial] = "SignalShip keeps shelves stocked without bigger buffers."
		r := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)
		found := false
		for _, issue := range r.Issues {
			if issue.Channel == ChannelPaidSocial && strings.Contains(issue.Message, "cites no numbers") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected missing-numeric-proof issue, got %+v", r.Issues)
		}
	})
}

func TestReviewSafetyStrictness(t *testing.T) {
	engine := NewEngine(nil, nil)
	urgent := map[string]string{
		ChannelEmail:      "Hurry, cut stockouts by 22% in 60 days with SignalShip.",
		ChannelPaidSocial: "Cut stockouts by 22% in 60 days.",
		ChannelSearchAds:  "Cut stockouts by 22% in 60 days.",
	}

	pol := policy.Default()

	t.Run("low disables safety checks", func(t *testing.T) {
		pol.ToneStrictness = policy.StrictnessLow
		r := engine.Review(context.Background(), testInputs(), urgent, pol, false)
		for _, issue := range r.Issues {
			if issue.Type == IssueSafety {
				t.Errorf("unexpected safety issue at low strictness: %+v", issue)
			}
		}
	})

	t.Run("medium flags hurry but not bare now", func(t *testing.T) {
		pol.ToneStrictness = policy.StrictnessMedium
		r := engine.Review(context.Background(), testInputs(), urgent, pol, false)
		found := false
		for _, issue := range r.Issues {
			if issue.Type == IssueSafety {
				found = true
			}
		}
		if !found {
			t.Error("expected a safety issue for \"hurry\" at medium strictness")
		}

		nowOnly := map[string]string{
			ChannelEmail:      "Start now: cut stockouts by 22% in 60 days.",
			ChannelPaidSocial: "Cut stockouts by 22% in 60 days.",
			ChannelSearchAds:  "Cut stockouts by 22% in 60 days.",
		}
		r = engine.Review(context.Background(), testInputs(), nowOnly, pol, false)
		for _, issue := range r.Issues {
			if issue.Type == IssueSafety {
				t.Errorf("medium strictness should not flag bare \"now\": %+v", issue)
			}
		}
	})

	t.Run("high flags bare now", func(t *testing.T) {
		pol.ToneStrictness = policy.StrictnessHigh
		nowOnly := map[string]string{
			ChannelEmail:      "Start now: cut stockouts by 22% in 60 days.",
			ChannelPaidSocial: "Cut stockouts by 22% in 60 days.",
			ChannelSearchAds:  "Cut stockouts by 22% in 60 days.",
		}
		r := engine.Review(context.Background(), testInputs(), nowOnly, pol, false)
		found := false
		for _, issue := range r.Issues {
			if issue.Type == IssueSafety {
				found = true
			}
		}
		if !found {
			t.Error("expected a safety issue for \"now\" at high strictness")
		}
	})

	t.Run("word boundary respected", func(t *testing.T) {
		pol.ToneStrictness = policy.StrictnessHigh
		knowledge := map[string]string{
			ChannelEmail:      "Knowledge of stock risk: cut stockouts by 22% in 60 days.",
			ChannelPaidSocial: "Cut stockouts by 22% in 60 days.",
			ChannelSearchAds:  "Cut stockouts by 22% in 60 days.",
		}
		r := engine.Review(context.Background(), testInputs(), knowledge, pol, false)
		for _, issue := range r.Issues {
			if issue.Type == IssueSafety {
				t.Errorf("\"knowledge\" must not match \"now\": %+v", issue)
			}
		}
	})
}

func TestReviewMissingFacts(t *testing.T) {
	engine := NewEngine(nil, nil)
	thin := brief.ParseInputs("Product: X\n", "", "")
	drafts := map[string]string{
		ChannelEmail:      "X is useful.",
		ChannelPaidSocial: "X is useful.",
		ChannelSearchAds:  "X is useful.",
	}

	r := engine.Review(context.Background(), thin, drafts, policy.Default(), false)
	if !r.MissingFacts {
		t.Error("MissingFacts = false, want true for brief without summary/value props")
	}
	if r.Pass {
		t.Error("Pass = true, want false when core facts are missing")
	}
}

func TestReviewJudgeMerge(t *testing.T) {
	t.Run("issues merged and untyped tagged llm", func(t *testing.T) {
		judge := &fakeJudge{issues: []Issue{
			{Channel: ChannelEmail, Message: "sounds stilted"},
			{Channel: ChannelEmail, Type: IssueTone, Message: "too formal"},
		}}
		engine := NewEngine(judge, nil)
		r := engine.Review(context.Background(), testInputs(), cleanDrafts(), policy.Default(), true)

		if judge.calls != 1 {
			t.Fatalf("judge calls = %d, want 1", judge.calls)
		}
		if r.Pass {
			t.Error("Pass = true, want false with judge issues present")
		}
		var types []IssueType
		for _, issue := range r.Issues {
			types = append(types, issue.Type)
		}
		if !reflect.DeepEqual(types, []IssueType{IssueLLM, IssueTone}) {
			t.Errorf("issue types = %v, want [llm tone]", types)
		}
	})

	t.Run("judge failure degrades to deterministic only", func(t *testing.T) {
		judge := &fakeJudge{err: errors.New("judge unavailable")}
		engine := NewEngine(judge, nil)
		r := engine.Review(context.Background(), testInputs(), cleanDrafts(), policy.Default(), true)
		if !r.Pass {
			t.Errorf("Pass = false, want true when judge fails on clean drafts; issues: %+v", r.Issues)
		}
	})

	t.Run("judge not called when disabled", func(t *testing.T) {
		judge := &fakeJudge{}
		engine := NewEngine(judge, nil)
		engine.Review(context.Background(), testInputs(), cleanDrafts(), policy.Default(), false)
		if judge.calls != 0 {
			t.Errorf("judge calls = %d, want 0", judge.calls)
		}
	})
}

func TestReviewIdempotent(t *testing.T) {
	engine := NewEngine(nil, nil)
	drafts := cleanDrafts()
	drafts[ChannelEmail] = "SignalShip saves 19 hours weekly. Cut stockouts by 22% in 60 days."

	first := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)
	second := engine.Review(context.Background(), testInputs(), drafts, policy.Default(), false)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("review is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDedupIssues(t *testing.T) {
	history := []Result{
		{Issues: []Issue{
			{Channel: ChannelEmail, Type: IssueGrounding, Message: "number \"23\" does not appear in any proof point"},
			{Channel: ChannelEmail, Type: IssueTone, Message: "draft uses brand do-not phrase \"revolutionary\""},
		}},
		{Issues: []Issue{
			{Channel: ChannelPaidSocial, Type: IssueGrounding, Message: "number \"23\" does not appear in any proof point"},
		}},
	}

	got := DedupIssues(history)
	want := []string{
		"number \"23\" does not appear in any proof point",
		"draft uses brand do-not phrase \"revolutionary\"",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupIssues() = %v, want %v", got, want)
	}
}
