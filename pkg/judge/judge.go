// Package judge adapts an LLM provider into the optional augmentation
// hooks the deterministic engines expose: the review judge, the input
// safety classifier, and the pairwise eval comparer. All three are
// advisory; their callers degrade gracefully when a call fails.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/evals"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/review"
)

const reviewerSystemPrompt = `You are a strict marketing copy reviewer. You receive a brief and a set of channel drafts. Flag concrete problems only: claims not supported by the brief, banned or off-brand phrasing, manipulative urgency, and formatting defects. Do not flag stylistic preferences.

Respond with a single JSON object:
{"issues":[{"channel":"email|paid_social|search_ads","type":"denylist|tone|format|grounding|safety","message":"..."}]}

An empty issues array means the drafts are acceptable.`

const classifierSystemPrompt = `You classify marketing input text for safety. Unsafe input solicits harmful, deceptive, or illegal content.

Respond with a single JSON object: {"safe":true} or {"safe":false,"reason":"..."}.`

const comparerSystemPrompt = `You compare two sets of marketing drafts, A and B, generated from the same brief. Pick the set that is more faithful to the brief and better written.

Respond with a single JSON object: {"winner":"a"|"b"|"tie","confidence":0.0-1.0}.`

// issueTypes are the classifications the reviewer may assign. Anything
// else is dropped so the review engine tags the issue as LLM-sourced.
var issueTypes = map[string]review.IssueType{
	"denylist":  review.IssueDenylist,
	"tone":      review.IssueTone,
	"format":    review.IssueFormat,
	"grounding": review.IssueGrounding,
	"safety":    review.IssueSafety,
}

// Reviewer is a provider-backed review judge.
type Reviewer struct {
	provider providers.Provider
	tier     string
	logger   *slog.Logger
}

// NewReviewer creates a review judge calling the given capability tier.
func NewReviewer(provider providers.Provider, tier string, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{
		provider: provider,
		tier:     tier,
		logger:   logger.With("component", "judge"),
	}
}

// Review asks the model for issues with the drafts.
func (j *Reviewer) Review(ctx context.Context, in brief.Inputs, drafts map[string]string) ([]review.Issue, error) {
	var prompt strings.Builder
	prompt.WriteString("BRIEF:\n")
	prompt.WriteString(in.Brief.Raw)
	if in.Brand.Raw != "" {
		prompt.WriteString("\n\nBRAND GUIDE:\n")
		prompt.WriteString(in.Brand.Raw)
	}
	if len(in.Denylist.Phrases) > 0 {
		prompt.WriteString("\n\nBANNED PHRASES:\n")
		prompt.WriteString(strings.Join(in.Denylist.Phrases, "\n"))
	}
	prompt.WriteString("\n\nDRAFTS:\n")
	prompt.WriteString(formatDrafts(drafts))

	content, err := complete(ctx, j.provider, j.tier, reviewerSystemPrompt, prompt.String())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Issues []struct {
			Channel string `json:"channel"`
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"issues"`
	}
	if err := json.Unmarshal([]byte(providers.ExtractJSON(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse judge response: %w", err)
	}

	var issues []review.Issue
	for _, i := range parsed.Issues {
		msg := strings.TrimSpace(i.Message)
		if msg == "" {
			continue
		}
		issues = append(issues, review.Issue{
			Channel: strings.ToLower(strings.TrimSpace(i.Channel)),
			Type:    issueTypes[strings.ToLower(strings.TrimSpace(i.Type))],
			Message: msg,
		})
	}
	return issues, nil
}

// Classifier is a provider-backed input safety classifier.
type Classifier struct {
	provider providers.Provider
	tier     string
	logger   *slog.Logger
}

// NewClassifier creates a safety classifier calling the given tier.
func NewClassifier(provider providers.Provider, tier string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		provider: provider,
		tier:     tier,
		logger:   logger.With("component", "classifier"),
	}
}

// Classify reports whether the input text is safe.
func (c *Classifier) Classify(ctx context.Context, text string) (bool, error) {
	content, err := complete(ctx, c.provider, c.tier, classifierSystemPrompt, "INPUT:\n"+text)
	if err != nil {
		return false, err
	}

	var parsed struct {
		Safe   bool   `json:"safe"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(providers.ExtractJSON(content)), &parsed); err != nil {
		return false, fmt.Errorf("parse classifier response: %w", err)
	}
	if !parsed.Safe && parsed.Reason != "" {
		c.logger.Info("input classified unsafe", "reason", parsed.Reason)
	}
	return parsed.Safe, nil
}

// Comparer is a provider-backed pairwise eval judge.
type Comparer struct {
	provider providers.Provider
	tier     string
	logger   *slog.Logger
}

// NewComparer creates a pairwise comparer calling the given tier.
func NewComparer(provider providers.Provider, tier string, logger *slog.Logger) *Comparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparer{
		provider: provider,
		tier:     tier,
		logger:   logger.With("component", "comparer"),
	}
}

// Compare asks the model which draft set better serves the brief. The
// caller randomizes which set is presented as A.
func (c *Comparer) Compare(ctx context.Context, in brief.Inputs, a, b map[string]string) (evals.Verdict, float64, error) {
	var prompt strings.Builder
	prompt.WriteString("BRIEF:\n")
	prompt.WriteString(in.Brief.Raw)
	prompt.WriteString("\n\nSET A:\n")
	prompt.WriteString(formatDrafts(a))
	prompt.WriteString("\n\nSET B:\n")
	prompt.WriteString(formatDrafts(b))

	content, err := complete(ctx, c.provider, c.tier, comparerSystemPrompt, prompt.String())
	if err != nil {
		return "", 0, err
	}

	var parsed struct {
		Winner     string  `json:"winner"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(providers.ExtractJSON(content)), &parsed); err != nil {
		return "", 0, fmt.Errorf("parse comparison response: %w", err)
	}

	var verdict evals.Verdict
	switch strings.ToLower(strings.TrimSpace(parsed.Winner)) {
	case "a":
		verdict = evals.VerdictA
	case "b":
		verdict = evals.VerdictB
	case "tie":
		verdict = evals.VerdictTie
	default:
		return "", 0, fmt.Errorf("unrecognized verdict %q", parsed.Winner)
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return verdict, confidence, nil
}

// complete issues one call against the provider's model for the tier.
func complete(ctx context.Context, p providers.Provider, tier, system, user string) (string, error) {
	resp, err := p.Complete(ctx, &providers.CompletionRequest{
		Model: p.Config().ModelForTier(tier),
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: system},
			{Role: providers.RoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// formatDrafts renders a draft set with stable channel ordering.
func formatDrafts(drafts map[string]string) string {
	channels := make([]string, 0, len(drafts))
	for ch := range drafts {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var sb strings.Builder
	for _, ch := range channels {
		sb.WriteString("[" + ch + "]\n")
		sb.WriteString(drafts[ch])
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
