package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/review"
)

// writerSystemPrompt instructs the model to draft grounded copy.
const writerSystemPrompt = `You are a marketing copywriter. Write copy for exactly three channels: email, paid_social, and search_ads. Ground every claim in the brief; quote numbers from the proof points verbatim and never invent figures. Avoid pressure language and absolute claims. The email draft must begin with a "Subject:" line.

Respond with a single JSON object:
{"email":"...","paid_social":"...","search_ads":"..."}`

// Writer produces the per-channel drafts for a run. When the policy
// enables LLM drafting and a provider is configured, the model's drafts
// are used; any failure falls back to the deterministic templates with a
// logged warning.
type Writer struct {
	provider providers.Provider
	logger   *slog.Logger
}

// NewWriter creates a writer. provider may be nil; the writer is then
// deterministic regardless of policy.
func NewWriter(provider providers.Provider, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		provider: provider,
		logger:   logger.With("component", "writer"),
	}
}

// Write produces drafts for all fixed channels and stores them on the
// state. Deduplicated feedback from failed reviews is passed to the model
// as must-fix guidance on retries. The draft set is validated before it
// replaces the previous one.
func (w *Writer) Write(ctx context.Context, st *State) error {
	drafts := deterministicDrafts(st.Inputs.Brief, st.Plan)

	if st.Policy.Stages.WriterLLM && w.provider != nil {
		if llmDrafts, err := w.completeDrafts(ctx, st); err != nil {
			w.logger.Warn("llm drafting failed, using deterministic drafts", "error", err)
			st.Log.Logf("writer: llm drafting failed (%v), using deterministic drafts", err)
		} else {
			for channel, draft := range llmDrafts {
				if draft != "" {
					drafts[channel] = draft
				}
			}
		}
	}

	if err := drafts.Validate(); err != nil {
		return err
	}
	st.Drafts = drafts
	return nil
}

// completeDrafts asks the provider for drafts and parses its JSON reply.
// Only the fixed channels are kept.
func (w *Writer) completeDrafts(ctx context.Context, st *State) (ChannelDrafts, error) {
	model := w.provider.Config().ModelForTier(st.Policy.Models.Writer)

	var prompt strings.Builder
	prompt.WriteString("RESEARCH SUMMARY:\n")
	prompt.WriteString(st.Plan.ResearchSummary)
	prompt.WriteString("\n\nCHANNEL PLAN:\n")
	for _, c := range st.Plan.Channels {
		prompt.WriteString(c.Channel + ": " + c.Angle + "\n")
		for _, step := range c.Steps {
			prompt.WriteString("  - " + step + "\n")
		}
	}
	prompt.WriteString("\nBRIEF:\n")
	prompt.WriteString(st.Inputs.Brief.Raw)
	if st.Inputs.Brand.Raw != "" {
		prompt.WriteString("\n\nBRAND GUIDE:\n")
		prompt.WriteString(st.Inputs.Brand.Raw)
	}
	if phrases := st.Inputs.Denylist.Phrases; len(phrases) > 0 {
		prompt.WriteString("\n\nBANNED PHRASES (never use):\n")
		prompt.WriteString(strings.Join(phrases, "; "))
	}
	if feedback := st.MustFixFeedback(); len(feedback) > 0 {
		prompt.WriteString("\n\nMUST FIX (previous drafts were rejected for these):\n")
		for _, line := range feedback {
			prompt.WriteString("- " + line + "\n")
		}
	}

	start := time.Now()
	resp, err := w.provider.Complete(ctx, &providers.CompletionRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: writerSystemPrompt},
			{Role: providers.RoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return nil, err
	}
	st.Log.RecordModelCall("writer", model, time.Since(start), resp.Usage)

	var parsed map[string]string
	if err := json.Unmarshal([]byte(providers.ExtractJSON(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse draft response: %w", err)
	}

	drafts := make(ChannelDrafts)
	for _, channel := range review.Channels {
		drafts[channel] = strings.TrimSpace(parsed[channel])
	}
	return drafts, nil
}

// deterministicDrafts renders template copy from brief facts alone. Proof
// points are quoted verbatim so every number traces back to the brief.
func deterministicDrafts(b brief.Brief, plan *Plan) ChannelDrafts {
	return ChannelDrafts{
		review.ChannelEmail:      emailDraft(b),
		review.ChannelPaidSocial: paidSocialDraft(b),
		review.ChannelSearchAds:  searchAdsDraft(b),
	}
}

func emailDraft(b brief.Brief) string {
	var sb strings.Builder
	subject := orProduct(b, "An update for you")
	if len(b.ValueProps) > 0 {
		subject += ": " + b.ValueProps[0]
	}
	sb.WriteString("Subject: " + subject + "\n\n")
	sb.WriteString("Hi there,\n\n")
	if b.Summary != "" {
		sb.WriteString(ensurePeriod(b.Summary) + "\n\n")
	}
	for _, prop := range b.ValueProps {
		sb.WriteString("- " + ensurePeriod(prop) + "\n")
	}
	if len(b.ProofPoints) > 0 {
		sb.WriteString("\n" + ensurePeriod(b.ProofPoints[0]) + "\n")
	}
	if b.PrimaryCTA != "" {
		sb.WriteString("\n" + ensurePeriod(b.PrimaryCTA) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func paidSocialDraft(b brief.Brief) string {
	var parts []string
	lead := orProduct(b, "Our latest release")
	if len(b.ValueProps) > 0 {
		lead += ": " + b.ValueProps[0]
	}
	parts = append(parts, ensurePeriod(lead))
	if len(b.ProofPoints) > 0 {
		parts = append(parts, ensurePeriod(b.ProofPoints[0]))
	}
	if b.PrimaryCTA != "" {
		parts = append(parts, ensurePeriod(b.PrimaryCTA))
	}
	return strings.Join(parts, " ")
}

func searchAdsDraft(b brief.Brief) string {
	headline := orProduct(b, "Learn more")
	if len(b.ValueProps) > 0 {
		headline += " | " + b.ValueProps[0]
	}
	var desc []string
	if len(b.ProofPoints) > 0 {
		desc = append(desc, ensurePeriod(b.ProofPoints[0]))
	} else if b.Summary != "" {
		desc = append(desc, ensurePeriod(b.Summary))
	}
	if b.PrimaryCTA != "" {
		desc = append(desc, ensurePeriod(b.PrimaryCTA))
	}
	return headline + "\n" + strings.Join(desc, " ")
}

// ensurePeriod terminates a fragment so the sentence-length check sees
// sentence boundaries where the source text had none.
func ensurePeriod(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}
