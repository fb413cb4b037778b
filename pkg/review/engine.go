package review

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/policy"
)

// SentenceWordCeiling is the maximum words allowed in a single sentence.
// One violation is flagged per channel that exceeds it, regardless of how
// many sentences do.
const SentenceWordCeiling = 30

// Urgency phrases checked by the safety rule, broadest first. Low
// strictness disables the whole list; medium drops the broadest term
// ("now" alone matches far too much ordinary copy); high enables all.
var urgencyPhrases = []string{
	"now",
	"act fast",
	"hurry",
	"limited time",
	"last chance",
	"don't wait",
	"before it's gone",
}

// Misleading-claim phrases checked by the safety rule. Low strictness
// disables the list; medium and high enable all of it.
var misleadingPhrases = []string{
	"guaranteed",
	"risk-free",
	"no risk",
	"100% effective",
	"instant results",
	"miracle",
	"never fails",
}

// numberPattern extracts bare numeric tokens (integers and decimals).
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ordinalMarker matches list markers like "1)" or "2." at line starts so
// they are not mistaken for claims needing grounding.
var ordinalMarker = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`)

// sentenceSplitter breaks a draft into sentences for the length check.
var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

// Judge is the optional external reviewer. It returns issues in the same
// shape as the deterministic checks; issues with an empty type are tagged
// IssueLLM on merge.
type Judge interface {
	Review(ctx context.Context, in brief.Inputs, drafts map[string]string) ([]Issue, error)
}

// Engine runs the review checks.
type Engine struct {
	judge  Judge
	logger *slog.Logger
}

// NewEngine creates a review engine. judge may be nil; the engine then runs
// deterministic checks only.
func NewEngine(judge Judge, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		judge:  judge,
		logger: logger.With("component", "review"),
	}
}

// Review checks the drafts against the brief, brand, and denylist and
// returns the merged verdict. When useJudge is true and a judge is
// configured, its issues are merged after the deterministic ones; a judge
// failure logs a warning and never fails the review.
func (e *Engine) Review(ctx context.Context, in brief.Inputs, drafts map[string]string, pol policy.Policy, useJudge bool) Result {
	var issues []Issue

	// Ungrounded numbers are deduplicated across the whole draft set: one
	// issue per unique offending number, attributed to the first channel
	// it appears in.
	seenNumbers := make(map[string]bool)

	for _, channel := range Channels {
		draft, ok := drafts[channel]
		if !ok {
			continue
		}
		issues = append(issues, e.checkDenylist(channel, draft, in.Denylist)...)
		issues = append(issues, e.checkGrounding(channel, draft, in.Brief, seenNumbers)...)
		issues = append(issues, e.checkTone(channel, draft, in.Brief, in.Brand)...)
		issues = append(issues, e.checkSafety(channel, draft, pol.ToneStrictness)...)
	}

	if useJudge && e.judge != nil {
		judgeIssues, err := e.judge.Review(ctx, in, drafts)
		if err != nil {
			e.logger.Warn("llm judge failed, using deterministic results only", "error", err)
		} else {
			for _, issue := range judgeIssues {
				if issue.Type == "" {
					issue.Type = IssueLLM
				}
				issues = append(issues, issue)
			}
		}
	}

	missingFacts := !in.Brief.CoreFactsPresent()

	return Result{
		Issues:       issues,
		Pass:         len(issues) == 0 && !missingFacts,
		MissingFacts: missingFacts,
	}
}

// checkDenylist flags any banned phrase occurring in the draft,
// case-insensitively.
func (e *Engine) checkDenylist(channel, draft string, deny brief.Denylist) []Issue {
	lower := strings.ToLower(draft)
	var issues []Issue
	for _, phrase := range deny.Phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			issues = append(issues, Issue{
				Channel: channel,
				Type:    IssueDenylist,
				Message: fmt.Sprintf("draft contains denylisted phrase %q", phrase),
			})
		}
	}
	return issues
}

// checkGrounding flags every unique bare number in the draft that does not
// trace back to a proof point. Ordinal list markers are stripped first.
// seen carries already-flagged numbers across channels.
func (e *Engine) checkGrounding(channel, draft string, b brief.Brief, seen map[string]bool) []Issue {
	stripped := ordinalMarker.ReplaceAllString(draft, "")
	draftNumbers := numberPattern.FindAllString(stripped, -1)
	if len(draftNumbers) == 0 {
		return nil
	}

	grounded := make(map[string]bool)
	for _, p := range b.ProofPoints {
		for _, n := range numberPattern.FindAllString(p, -1) {
			grounded[n] = true
		}
	}

	var issues []Issue
	for _, n := range draftNumbers {
		if grounded[n] || seen[n] {
			continue
		}
		seen[n] = true
		issues = append(issues, Issue{
			Channel: channel,
			Type:    IssueGrounding,
			Message: fmt.Sprintf("number %q does not appear in any proof point", n),
		})
	}
	return issues
}

// checkTone flags brand "do not" phrases, a single over-long sentence
// violation, and drafts that ignore available numeric evidence.
func (e *Engine) checkTone(channel, draft string, b brief.Brief, brand brief.Brand) []Issue {
	var issues []Issue

	lower := strings.ToLower(draft)
	for _, phrase := range brand.DoNot {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			issues = append(issues, Issue{
				Channel: channel,
				Type:    IssueTone,
				Message: fmt.Sprintf("draft uses brand do-not phrase %q", phrase),
			})
		}
	}

	// One violation per channel, checked not counted.
	for _, sentence := range sentenceSplitter.Split(draft, -1) {
		if len(strings.Fields(sentence)) > SentenceWordCeiling {
			issues = append(issues, Issue{
				Channel: channel,
				Type:    IssueFormat,
				Message: fmt.Sprintf("sentence exceeds %d words", SentenceWordCeiling),
			})
			break
		}
	}

	if b.HasNumericProof() && !strings.ContainsAny(draft, "0123456789") {
		issues = append(issues, Issue{
			Channel: channel,
			Type:    IssueGrounding,
			Message: "brief provides numeric proof points but draft cites no numbers",
		})
	}

	return issues
}

// checkSafety flags urgency and misleading-claim phrases, filtered by tone
// strictness.
func (e *Engine) checkSafety(channel, draft string, strictness policy.Strictness) []Issue {
	if strictness == policy.StrictnessLow {
		return nil
	}

	urgency := urgencyPhrases
	if strictness == policy.StrictnessMedium {
		// urgencyPhrases[0] is the broadest term.
		urgency = urgencyPhrases[1:]
	}

	lower := strings.ToLower(draft)
	var issues []Issue
	for _, phrase := range urgency {
		if containsPhrase(lower, phrase) {
			issues = append(issues, Issue{
				Channel: channel,
				Type:    IssueSafety,
				Message: fmt.Sprintf("draft uses urgency phrase %q", phrase),
			})
		}
	}
	for _, phrase := range misleadingPhrases {
		if containsPhrase(lower, phrase) {
			issues = append(issues, Issue{
				Channel: channel,
				Type:    IssueSafety,
				Message: fmt.Sprintf("draft makes misleading claim %q", phrase),
			})
		}
	}
	return issues
}

// containsPhrase matches a phrase on word boundaries so "now" does not
// fire inside "knowledge".
func containsPhrase(lower, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(lower[start-1])
		afterOK := end == len(lower) || !isWordChar(lower[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '\''
}
