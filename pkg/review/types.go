// Package review decides whether a set of channel drafts is acceptable.
//
// The engine applies deterministic rule checks per channel (denylist,
// numeric grounding, tone, sentence length, urgency and misleading-claim
// detection) and can merge in issues from an optional external judge. The
// deterministic path is pure: identical inputs always produce identical
// verdicts.
package review

// The three fixed output channels. Every draft set must carry exactly
// these keys after the write stage.
const (
	ChannelEmail      = "email"
	ChannelPaidSocial = "paid_social"
	ChannelSearchAds  = "search_ads"
)

// Channels lists the fixed channels in canonical order. Checks iterate in
// this order so issue lists are deterministic.
var Channels = []string{ChannelEmail, ChannelPaidSocial, ChannelSearchAds}

// IssueType classifies a review issue.
type IssueType string

const (
	IssueDenylist  IssueType = "denylist"
	IssueTone      IssueType = "tone"
	IssueFormat    IssueType = "format"
	IssueGrounding IssueType = "grounding"
	IssueSafety    IssueType = "safety"
	IssueLLM       IssueType = "llm"
)

// Issue is a single problem found in one channel's draft.
type Issue struct {
	// Channel names the draft the issue was found in.
	Channel string `json:"channel"`

	// Type classifies the issue.
	Type IssueType `json:"type"`

	// Message describes the problem.
	Message string `json:"message"`
}

// Result is the verdict for one review attempt.
type Result struct {
	// Issues is the ordered merged issue list.
	Issues []Issue `json:"issues"`

	// Pass is true iff Issues is empty and no core brief fact is missing.
	Pass bool `json:"pass"`

	// MissingFacts reports whether a core brief fact (product, summary,
	// at least one value proposition) is absent. It is computed
	// independently of the checks and surfaces even when they all pass.
	MissingFacts bool `json:"missingFacts"`
}

// Failed reports whether the attempt failed.
func (r Result) Failed() bool {
	return !r.Pass
}

// DedupIssues returns the unique issue messages across a review history, in
// first-seen order. The orchestrator passes these forward as must-fix
// guidance for the next writing attempt.
func DedupIssues(history []Result) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range history {
		for _, issue := range r.Issues {
			if seen[issue.Message] {
				continue
			}
			seen[issue.Message] = true
			out = append(out, issue.Message)
		}
	}
	return out
}
