package pipeline

import (
	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/review"
	"briefline/copyforge/pkg/router"
)

// ChannelDrafts holds generated copy keyed by channel. After a successful
// write stage it contains exactly the three fixed channels.
type ChannelDrafts map[string]string

// Validate returns a MissingDraftError for the first fixed channel absent
// from the draft set.
func (d ChannelDrafts) Validate() error {
	for _, ch := range review.Channels {
		if _, ok := d[ch]; !ok {
			return &MissingDraftError{Channel: ch}
		}
	}
	return nil
}

// Clone returns a copy so resumed runs never alias a stored draft set.
func (d ChannelDrafts) Clone() ChannelDrafts {
	if d == nil {
		return nil
	}
	out := make(ChannelDrafts, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// ChannelPlan is the planner's intent for one channel.
type ChannelPlan struct {
	// Channel names the output channel.
	Channel string `json:"channel"`

	// Angle is the chosen message angle, derived from brief facts.
	Angle string `json:"angle"`

	// Steps are the writing steps for the channel.
	Steps []string `json:"steps"`
}

// Plan is the channel plan plus the grounded research summary. The
// research summary is strictly derived from brief facts; planning never
// invents new claims.
type Plan struct {
	Channels []ChannelPlan `json:"channels"`

	// ResearchSummary restates the brief's facts for the writer.
	ResearchSummary string `json:"researchSummary"`

	// RecommendedTier is the planner's optional writer-tier suggestion,
	// honored by the model router when dynamic selection is enabled.
	RecommendedTier string `json:"recommendedTier,omitempty"`
}

// Shape projects the plan onto the slice the model router scores.
func (p *Plan) Shape() router.PlanShape {
	shape := router.PlanShape{
		Channels:        len(p.Channels),
		RecommendedTier: p.RecommendedTier,
	}
	for _, c := range p.Channels {
		shape.Steps += len(c.Steps)
	}
	return shape
}

// State is the in-flight run state, exclusively owned by the orchestrator
// for the duration of a run and handed off as an immutable bundle once the
// run reaches a terminal status.
type State struct {
	// Inputs is the normalized brief/brand/denylist bundle.
	Inputs brief.Inputs `json:"inputs"`

	// Policy is the per-run configuration. The model router may update
	// the writer tier in place during planning; nothing else mutates it.
	Policy policy.Policy `json:"policy"`

	// Plan is the current channel plan, nil before planning.
	Plan *Plan `json:"plan,omitempty"`

	// Drafts is the current draft set, nil before writing.
	Drafts ChannelDrafts `json:"drafts,omitempty"`

	// Reviews is the append-only review history, one entry per attempt.
	Reviews []review.Result `json:"reviews,omitempty"`

	// Report is the analyst's structural report, nil before analysis.
	Report *Report `json:"report,omitempty"`

	// Trace is the ordered list of visited node names.
	Trace []string `json:"trace"`

	// Log is the run log for this run.
	Log *RunLog `json:"log"`
}

// LastReview returns the most recent review result, if any.
func (st *State) LastReview() (review.Result, bool) {
	if len(st.Reviews) == 0 {
		return review.Result{}, false
	}
	return st.Reviews[len(st.Reviews)-1], true
}

// FailedReviews counts failed attempts in the review history. The retry
// budget is enforced against this count, not a separate counter.
func (st *State) FailedReviews() int {
	n := 0
	for _, r := range st.Reviews {
		if !r.Pass {
			n++
		}
	}
	return n
}

// MustFixFeedback returns the deduplicated issue messages from all failed
// attempts so far, in first-seen order.
func (st *State) MustFixFeedback() []string {
	return review.DedupIssues(st.Reviews)
}
