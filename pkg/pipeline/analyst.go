package pipeline

import (
	"math"
	"strings"
	"time"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/review"
)

// Structural check names reported per channel.
const (
	CheckMentionsProduct = "mentions_product"
	CheckHasCTA          = "has_call_to_action"
	CheckSentenceLength  = "sentence_length_ok"
	CheckSubjectLine     = "has_subject_line"
	CheckNonEmpty        = "non_empty"
)

// Score deductions applied per failed check and per review issue.
const (
	checkPenalty = 0.10
	issuePenalty = 0.05
)

// ChannelReport is the analyst's structural report for one channel.
type ChannelReport struct {
	WordCount     int `json:"wordCount"`
	SentenceCount int `json:"sentenceCount"`

	// Checks maps check names to pass/fail.
	Checks map[string]bool `json:"checks"`

	// IssueCount is the number of review issues attributed to the channel
	// in the final review.
	IssueCount int `json:"issueCount"`

	// Score starts at 1.0 and loses a fixed deduction per failed check and
	// per review issue, floored at zero and rounded to two decimals.
	Score float64 `json:"score"`

	// Pass is true iff every check passed and no review issue remains.
	Pass bool `json:"pass"`
}

// Report is the analyst's report over the whole draft set.
type Report struct {
	// Channels holds one report per fixed channel.
	Channels map[string]ChannelReport `json:"channels"`

	// OverallScore is the unweighted mean of the channel scores, rounded
	// to two decimals.
	OverallScore float64 `json:"overallScore"`

	// Pass is true iff every channel passed.
	Pass bool `json:"pass"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// Analyze computes the deterministic structural report for the drafts
// against the brief and the final review. It makes no external calls.
func Analyze(b brief.Brief, drafts ChannelDrafts, rev review.Result) *Report {
	issuesByChannel := make(map[string]int)
	for _, issue := range rev.Issues {
		issuesByChannel[issue.Channel]++
	}

	report := &Report{
		Channels:    make(map[string]ChannelReport, len(review.Channels)),
		Pass:        true,
		GeneratedAt: time.Now().UTC(),
	}

	var sum float64
	for _, channel := range review.Channels {
		cr := analyzeChannel(channel, drafts[channel], b, issuesByChannel[channel])
		report.Channels[channel] = cr
		sum += cr.Score
		if !cr.Pass {
			report.Pass = false
		}
	}
	report.OverallScore = round2(sum / float64(len(review.Channels)))
	return report
}

func analyzeChannel(channel, draft string, b brief.Brief, issueCount int) ChannelReport {
	words := strings.Fields(draft)
	sentences := countSentences(draft)

	checks := map[string]bool{
		CheckNonEmpty:       strings.TrimSpace(draft) != "",
		CheckSentenceLength: longestSentenceWords(draft) <= review.SentenceWordCeiling,
	}
	if b.Product != "" {
		checks[CheckMentionsProduct] = containsFold(draft, b.Product)
	}
	if b.PrimaryCTA != "" {
		checks[CheckHasCTA] = containsFold(draft, b.PrimaryCTA)
	}
	if channel == review.ChannelEmail {
		checks[CheckSubjectLine] = strings.HasPrefix(strings.TrimSpace(draft), "Subject:")
	}

	score := 1.0
	pass := issueCount == 0
	for _, ok := range checks {
		if !ok {
			score -= checkPenalty
			pass = false
		}
	}
	score -= float64(issueCount) * issuePenalty
	if score < 0 {
		score = 0
	}

	return ChannelReport{
		WordCount:     len(words),
		SentenceCount: sentences,
		Checks:        checks,
		IssueCount:    issueCount,
		Score:         round2(score),
		Pass:          pass,
	}
}

func countSentences(draft string) int {
	n := 0
	for _, s := range splitSentences(draft) {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}

func longestSentenceWords(draft string) int {
	longest := 0
	for _, s := range splitSentences(draft) {
		if n := len(strings.Fields(s)); n > longest {
			longest = n
		}
	}
	return longest
}

func splitSentences(draft string) []string {
	return strings.FieldsFunc(draft, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
