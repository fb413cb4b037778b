package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	p := Default()

	if p.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", p.MaxRetries)
	}
	if p.ToneStrictness != StrictnessMedium {
		t.Errorf("ToneStrictness = %q, want medium", p.ToneStrictness)
	}
	if p.Guardrails.PII.Mode != ModeWarn {
		t.Errorf("PII mode = %q, want warn", p.Guardrails.PII.Mode)
	}
	if p.Guardrails.Safety.Mode != ModeBlock {
		t.Errorf("Safety mode = %q, want block", p.Guardrails.Safety.Mode)
	}
	if p.DynamicModelSelection || p.HITLEnabled || p.AlwaysUseLLMJudge {
		t.Error("boolean toggles should default to false")
	}
	if p.ModelRange.Min != "lite" || p.ModelRange.Max != "premium" {
		t.Errorf("ModelRange = %+v, want lite..premium", p.ModelRange)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    Policy
		check func(t *testing.T, p Policy)
	}{
		{
			name: "negative retries clamped to zero",
			in:   Policy{MaxRetries: -3},
			check: func(t *testing.T, p Policy) {
				if p.MaxRetries != 0 {
					t.Errorf("MaxRetries = %d, want 0", p.MaxRetries)
				}
			},
		},
		{
			name: "excessive retries clamped to ceiling",
			in:   Policy{MaxRetries: 99},
			check: func(t *testing.T, p Policy) {
				if p.MaxRetries != MaxRetriesCeiling {
					t.Errorf("MaxRetries = %d, want %d", p.MaxRetries, MaxRetriesCeiling)
				}
			},
		},
		{
			name: "invalid strictness coerced to default",
			in:   Policy{ToneStrictness: "extreme", BudgetHint: "free"},
			check: func(t *testing.T, p Policy) {
				if p.ToneStrictness != StrictnessMedium {
					t.Errorf("ToneStrictness = %q, want medium", p.ToneStrictness)
				}
				if p.BudgetHint != StrictnessMedium {
					t.Errorf("BudgetHint = %q, want medium", p.BudgetHint)
				}
			},
		},
		{
			name: "invalid guardrail modes coerced to defaults",
			in: Policy{Guardrails: Guardrails{
				PII:    GuardrailCheck{Mode: "ignore"},
				Safety: GuardrailCheck{Mode: "maybe"},
			}},
			check: func(t *testing.T, p Policy) {
				if p.Guardrails.PII.Mode != ModeWarn {
					t.Errorf("PII mode = %q, want warn", p.Guardrails.PII.Mode)
				}
				if p.Guardrails.Safety.Mode != ModeBlock {
					t.Errorf("Safety mode = %q, want block", p.Guardrails.Safety.Mode)
				}
			},
		},
		{
			name: "empty model tiers filled in",
			in:   Policy{},
			check: func(t *testing.T, p Policy) {
				if p.Models.Planner != "standard" || p.Models.Writer != "standard" || p.Models.Reviewer != "standard" {
					t.Errorf("Models = %+v, want all standard", p.Models)
				}
			},
		},
		{
			name: "valid values preserved",
			in: Policy{
				MaxRetries:     4,
				ToneStrictness: StrictnessHigh,
				Guardrails: Guardrails{
					PII:    GuardrailCheck{Mode: ModeBlock},
					Safety: GuardrailCheck{Mode: ModeWarn},
				},
			},
			check: func(t *testing.T, p Policy) {
				if p.MaxRetries != 4 {
					t.Errorf("MaxRetries = %d, want 4", p.MaxRetries)
				}
				if p.ToneStrictness != StrictnessHigh {
					t.Errorf("ToneStrictness = %q, want high", p.ToneStrictness)
				}
				if p.Guardrails.PII.Mode != ModeBlock {
					t.Errorf("PII mode = %q, want block", p.Guardrails.PII.Mode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Normalize(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("partial document keeps defaults", func(t *testing.T) {
		p, err := Parse([]byte("max_retries: 1\nhitl_enabled: true\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if p.MaxRetries != 1 {
			t.Errorf("MaxRetries = %d, want 1", p.MaxRetries)
		}
		if !p.HITLEnabled {
			t.Error("HITLEnabled = false, want true")
		}
		if p.ToneStrictness != StrictnessMedium {
			t.Errorf("ToneStrictness = %q, want medium default", p.ToneStrictness)
		}
	})

	t.Run("unknown fields ignored", func(t *testing.T) {
		if _, err := Parse([]byte("frobnicate: yes\n")); err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
	})

	t.Run("out-of-set values coerced", func(t *testing.T) {
		p, err := Parse([]byte("tone_strictness: brutal\nguardrails:\n  pii:\n    mode: shrug\n"))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if p.ToneStrictness != StrictnessMedium {
			t.Errorf("ToneStrictness = %q, want medium", p.ToneStrictness)
		}
		if p.Guardrails.PII.Mode != ModeWarn {
			t.Errorf("PII mode = %q, want warn", p.Guardrails.PII.Mode)
		}
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		if _, err := Parse([]byte("max_retries: [")); err == nil {
			t.Error("Parse() should fail on malformed yaml")
		}
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := "max_retries: 3\ndynamic_model_selection: true\nmodel_range:\n  min: standard\n  max: premium\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if !p.DynamicModelSelection {
		t.Error("DynamicModelSelection = false, want true")
	}
	if p.ModelRange.Min != "standard" {
		t.Errorf("ModelRange.Min = %q, want standard", p.ModelRange.Min)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}
