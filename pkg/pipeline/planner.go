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
	"briefline/copyforge/pkg/router"
)

// plannerSystemPrompt instructs the model to plan strictly from brief facts.
const plannerSystemPrompt = `You are a marketing campaign planner. Produce a channel plan for email, paid_social, and search_ads copy based strictly on the facts in the brief. Never invent claims, numbers, or product attributes that are not in the brief.

Respond with a single JSON object:
{"channels":[{"channel":"email","angle":"...","steps":["..."]},...],"research_summary":"...","recommended_tier":"lite|standard|premium"}

recommended_tier is optional; omit it unless the task clearly needs an unusually capable or unusually cheap writer.`

// Planner produces the channel plan for a run. When the policy enables
// LLM planning and a provider is configured, the model's plan is used;
// any failure falls back to the deterministic plan with a logged warning.
type Planner struct {
	provider providers.Provider
	logger   *slog.Logger
}

// NewPlanner creates a planner. provider may be nil; the planner is then
// deterministic regardless of policy.
func NewPlanner(provider providers.Provider, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		provider: provider,
		logger:   logger.With("component", "planner"),
	}
}

// Plan builds the channel plan for the current state and applies dynamic
// model selection. The resulting plan always covers exactly the fixed
// channels; a model-produced plan is merged onto the deterministic one so
// missing channels are filled in rather than failing the run.
func (p *Planner) Plan(ctx context.Context, st *State) error {
	plan := deterministicPlan(st.Inputs.Brief)

	if st.Policy.Stages.PlannerLLM && p.provider != nil {
		if llmPlan, err := p.completePlan(ctx, st); err != nil {
			p.logger.Warn("llm planning failed, using deterministic plan", "error", err)
			st.Log.Logf("planner: llm planning failed (%v), using deterministic plan", err)
		} else {
			mergePlan(plan, llmPlan)
		}
	}

	if st.Policy.DynamicModelSelection {
		tier := router.SelectWriterTier(plan.Shape(), st.Inputs.Brief, st.Policy, st.FailedReviews())
		if tier != st.Policy.Models.Writer {
			st.Log.Logf("planner: writer tier %s selected (was %s)", tier, st.Policy.Models.Writer)
		}
		st.Policy.Models.Writer = tier
	}

	st.Plan = plan
	st.Log.Plans = append(st.Log.Plans, *plan)
	return nil
}

// completePlan asks the provider for a plan and parses its JSON reply.
func (p *Planner) completePlan(ctx context.Context, st *State) (*Plan, error) {
	model := p.provider.Config().ModelForTier(st.Policy.Models.Planner)

	var prompt strings.Builder
	prompt.WriteString("BRIEF:\n")
	prompt.WriteString(st.Inputs.Brief.Raw)
	if st.Inputs.Brand.Raw != "" {
		prompt.WriteString("\n\nBRAND GUIDE:\n")
		prompt.WriteString(st.Inputs.Brand.Raw)
	}

	start := time.Now()
	resp, err := p.provider.Complete(ctx, &providers.CompletionRequest{
		Model: model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: plannerSystemPrompt},
			{Role: providers.RoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return nil, err
	}
	st.Log.RecordModelCall("planner", model, time.Since(start), resp.Usage)

	var parsed struct {
		Channels []struct {
			Channel string   `json:"channel"`
			Angle   string   `json:"angle"`
			Steps   []string `json:"steps"`
		} `json:"channels"`
		ResearchSummary string `json:"research_summary"`
		RecommendedTier string `json:"recommended_tier"`
	}
	if err := json.Unmarshal([]byte(providers.ExtractJSON(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse plan response: %w", err)
	}

	plan := &Plan{
		ResearchSummary: strings.TrimSpace(parsed.ResearchSummary),
		RecommendedTier: strings.ToLower(strings.TrimSpace(parsed.RecommendedTier)),
	}
	for _, c := range parsed.Channels {
		plan.Channels = append(plan.Channels, ChannelPlan{
			Channel: strings.ToLower(strings.TrimSpace(c.Channel)),
			Angle:   strings.TrimSpace(c.Angle),
			Steps:   c.Steps,
		})
	}
	return plan, nil
}

// deterministicPlan derives a plan from brief facts alone.
func deterministicPlan(b brief.Brief) *Plan {
	angle := b.Summary
	if len(b.ValueProps) > 0 {
		angle = b.ValueProps[0]
	}

	plan := &Plan{ResearchSummary: researchSummary(b)}
	for _, channel := range review.Channels {
		plan.Channels = append(plan.Channels, ChannelPlan{
			Channel: channel,
			Angle:   angle,
			Steps:   channelSteps(channel, b),
		})
	}
	return plan
}

// mergePlan overlays the model-produced plan onto the deterministic base:
// per-channel entries replace the base entry for the same channel, unknown
// channels are dropped, and missing channels keep the deterministic entry.
func mergePlan(base, llm *Plan) {
	if s := llm.ResearchSummary; s != "" {
		base.ResearchSummary = s
	}
	base.RecommendedTier = llm.RecommendedTier

	byChannel := make(map[string]ChannelPlan, len(llm.Channels))
	for _, c := range llm.Channels {
		byChannel[c.Channel] = c
	}
	for i, c := range base.Channels {
		if got, ok := byChannel[c.Channel]; ok && got.Angle != "" {
			if len(got.Steps) == 0 {
				got.Steps = c.Steps
			}
			base.Channels[i] = got
		}
	}
}

// researchSummary restates the brief's facts for the writer. Every claim
// in it traces back to the brief verbatim.
func researchSummary(b brief.Brief) string {
	var sb strings.Builder
	if b.Product != "" {
		sb.WriteString("Product: " + b.Product)
		if b.Category != "" {
			sb.WriteString(" (" + b.Category + ")")
		}
		sb.WriteString(". ")
	}
	if b.Summary != "" {
		sb.WriteString(b.Summary)
		sb.WriteString(" ")
	}
	if len(b.ValueProps) > 0 {
		sb.WriteString("Key value: " + strings.Join(b.ValueProps, "; ") + ". ")
	}
	if len(b.ProofPoints) > 0 {
		sb.WriteString("Evidence: " + strings.Join(b.ProofPoints, "; ") + ".")
	}
	return strings.TrimSpace(sb.String())
}

func channelSteps(channel string, b brief.Brief) []string {
	switch channel {
	case review.ChannelEmail:
		steps := []string{
			"write a subject line naming " + orProduct(b, "the product"),
			"open with the core value proposition",
		}
		if len(b.ProofPoints) > 0 {
			steps = append(steps, "support with a proof point quoted from the brief")
		}
		return append(steps, "close with the primary call to action")
	case review.ChannelPaidSocial:
		return []string{
			"lead with the strongest value proposition",
			"keep it to two or three short sentences",
			"end with the primary call to action",
		}
	case review.ChannelSearchAds:
		return []string{
			"headline: product name plus top value proposition",
			"description: one proof-backed sentence with the call to action",
		}
	}
	return nil
}

func orProduct(b brief.Brief, fallback string) string {
	if b.Product != "" {
		return b.Product
	}
	return fallback
}
