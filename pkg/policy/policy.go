// Package policy defines the per-run configuration record that controls
// retry budgets, tone strictness, guardrail modes, model selection, and
// human-in-the-loop gating for the copy pipeline.
//
// A Policy is immutable for the duration of a run. Loading is lenient:
// unknown fields are ignored, missing fields fall back to documented
// defaults, and values outside the enumerated sets are coerced back to
// defaults rather than being rejected or left invalid.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Strictness is a three-level knob used for tone checking and budget hints.
type Strictness string

const (
	StrictnessLow    Strictness = "low"
	StrictnessMedium Strictness = "medium"
	StrictnessHigh   Strictness = "high"
)

// GuardrailMode controls how a guardrail finding affects the run.
type GuardrailMode string

const (
	// ModeWarn records the finding but lets the run proceed.
	ModeWarn GuardrailMode = "warn"

	// ModeBlock stops the run before any generation occurs.
	ModeBlock GuardrailMode = "block"
)

// Default values applied when a field is missing or out of range.
const (
	DefaultMaxRetries = 2

	// MaxRetriesCeiling is the hard upper bound for the retry budget.
	MaxRetriesCeiling = 5

	DefaultToneStrictness = StrictnessMedium
	DefaultBudgetHint     = StrictnessMedium

	DefaultPIIMode    = ModeWarn
	DefaultSafetyMode = ModeBlock

	DefaultPlannerTier  = "standard"
	DefaultWriterTier   = "standard"
	DefaultReviewerTier = "standard"

	DefaultModelRangeMin = "lite"
	DefaultModelRangeMax = "premium"
)

// Policy is the immutable per-run configuration record.
type Policy struct {
	// MaxRetries is the number of failed reviews tolerated before the run
	// stops. Clamped to [0, MaxRetriesCeiling]. Default: 2.
	MaxRetries int `yaml:"max_retries" json:"maxRetries"`

	// ToneStrictness filters the urgency and misleading-claim phrase checks
	// in the review engine. Default: medium.
	ToneStrictness Strictness `yaml:"tone_strictness" json:"toneStrictness"`

	// BudgetHint is an advisory cost signal for model selection.
	// Default: medium.
	BudgetHint Strictness `yaml:"budget_hint" json:"budgetHint"`

	// Guardrails configures the pre-flight input checks.
	Guardrails Guardrails `yaml:"guardrails" json:"guardrails"`

	// Models holds the capability tier per pipeline stage.
	Models Models `yaml:"models" json:"models"`

	// DynamicModelSelection enables the model router for the writer stage.
	// Default: false.
	DynamicModelSelection bool `yaml:"dynamic_model_selection" json:"dynamicModelSelection"`

	// ModelRange bounds the tiers the router may select from.
	ModelRange ModelRange `yaml:"model_range" json:"modelRange"`

	// HITLEnabled suspends the run for human approval after every
	// reviewer step. Default: false.
	HITLEnabled bool `yaml:"hitl_enabled" json:"hitlEnabled"`

	// AlwaysUseLLMJudge enables the external judge during eval scoring
	// unless a per-run override says otherwise. Default: false.
	AlwaysUseLLMJudge bool `yaml:"always_use_llm_judge" json:"alwaysUseLlmJudge"`

	// Stages holds explicit per-stage generation flags. When a stage flag
	// is false the stage uses deterministic generation only.
	Stages Stages `yaml:"stages" json:"stages"`
}

// Guardrails configures the two pre-flight input checks.
type Guardrails struct {
	PII    GuardrailCheck `yaml:"pii" json:"pii"`
	Safety GuardrailCheck `yaml:"safety" json:"safety"`
}

// GuardrailCheck configures a single guardrail check.
type GuardrailCheck struct {
	// Mode is warn or block. Defaults: pii=warn, safety=block.
	Mode GuardrailMode `yaml:"mode" json:"mode"`
}

// Models holds the capability tier identifier per stage.
type Models struct {
	Planner  string `yaml:"planner" json:"planner"`
	Writer   string `yaml:"writer" json:"writer"`
	Reviewer string `yaml:"reviewer" json:"reviewer"`
}

// ModelRange bounds dynamic model selection to a tier interval.
type ModelRange struct {
	Min string `yaml:"min" json:"min"`
	Max string `yaml:"max" json:"max"`
}

// Stages holds explicit per-stage LLM flags. These replace the ambient
// environment-variable feature flags the system previously relied on.
type Stages struct {
	// PlannerLLM enables LLM-backed planning (deterministic fallback on failure).
	PlannerLLM bool `yaml:"planner_llm" json:"plannerLlm"`

	// WriterLLM enables LLM-backed drafting (deterministic fallback on failure).
	WriterLLM bool `yaml:"writer_llm" json:"writerLlm"`

	// ReviewerLLM enables the LLM judge augmentation during review.
	ReviewerLLM bool `yaml:"reviewer_llm" json:"reviewerLlm"`
}

// Default returns a Policy populated with the documented defaults.
func Default() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		ToneStrictness: DefaultToneStrictness,
		BudgetHint:     DefaultBudgetHint,
		Guardrails: Guardrails{
			PII:    GuardrailCheck{Mode: DefaultPIIMode},
			Safety: GuardrailCheck{Mode: DefaultSafetyMode},
		},
		Models: Models{
			Planner:  DefaultPlannerTier,
			Writer:   DefaultWriterTier,
			Reviewer: DefaultReviewerTier,
		},
		ModelRange: ModelRange{
			Min: DefaultModelRangeMin,
			Max: DefaultModelRangeMax,
		},
	}
}

// Normalize coerces invalid field values back to defaults and clamps the
// retry budget. It never returns an error: a Policy is always usable after
// normalization.
func Normalize(p Policy) Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.MaxRetries > MaxRetriesCeiling {
		p.MaxRetries = MaxRetriesCeiling
	}
	if !validStrictness(p.ToneStrictness) {
		p.ToneStrictness = DefaultToneStrictness
	}
	if !validStrictness(p.BudgetHint) {
		p.BudgetHint = DefaultBudgetHint
	}
	if !validMode(p.Guardrails.PII.Mode) {
		p.Guardrails.PII.Mode = DefaultPIIMode
	}
	if !validMode(p.Guardrails.Safety.Mode) {
		p.Guardrails.Safety.Mode = DefaultSafetyMode
	}
	if p.Models.Planner == "" {
		p.Models.Planner = DefaultPlannerTier
	}
	if p.Models.Writer == "" {
		p.Models.Writer = DefaultWriterTier
	}
	if p.Models.Reviewer == "" {
		p.Models.Reviewer = DefaultReviewerTier
	}
	if p.ModelRange.Min == "" {
		p.ModelRange.Min = DefaultModelRangeMin
	}
	if p.ModelRange.Max == "" {
		p.ModelRange.Max = DefaultModelRangeMax
	}
	return p
}

// Load reads a Policy from a YAML file, applies defaults for missing
// fields, and normalizes the result. A missing file is an error; a file
// with unknown or invalid values is not.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a Policy from YAML bytes, layering the documented defaults
// under the decoded values before normalizing.
func Parse(data []byte) (Policy, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	return Normalize(p), nil
}

func validStrictness(s Strictness) bool {
	switch s {
	case StrictnessLow, StrictnessMedium, StrictnessHigh:
		return true
	}
	return false
}

func validMode(m GuardrailMode) bool {
	switch m {
	case ModeWarn, ModeBlock:
		return true
	}
	return false
}
