// Package pipelinetest provides scripted mocks and input builders shared by
// pipeline, eval, and server tests.
package pipelinetest

import (
	"context"
	"sync"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/review"
)

// ScriptedProvider is a Provider that replays canned responses in order.
// After the script is exhausted it keeps returning the last response, or
// Err if set.
type ScriptedProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error

	// Requests records every request received, in order.
	Requests []*providers.CompletionRequest
}

func (p *ScriptedProvider) Complete(_ context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Responses) == 0 {
		return &providers.CompletionResponse{Content: "", Model: req.Model}, nil
	}
	idx := len(p.Requests) - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	return &providers.CompletionResponse{
		Content: p.Responses[idx],
		Model:   req.Model,
		Usage:   providers.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (p *ScriptedProvider) Name() string { return "scripted" }
func (p *ScriptedProvider) Type() string { return "scripted" }
func (p *ScriptedProvider) Config() providers.ProviderConfig {
	return providers.ProviderConfig{Name: "scripted", Type: "scripted"}
}
func (p *ScriptedProvider) Close() error { return nil }

// CallCount returns the number of completion calls received.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// ScriptedJudge is a review.Judge that returns fixed issues or a fixed
// error.
type ScriptedJudge struct {
	Issues []review.Issue
	Err    error

	mu    sync.Mutex
	calls int
}

func (j *ScriptedJudge) Review(context.Context, brief.Inputs, map[string]string) ([]review.Issue, error) {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.Err != nil {
		return nil, j.Err
	}
	return j.Issues, nil
}

// CallCount returns the number of judge invocations.
func (j *ScriptedJudge) CallCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

// SampleInputs returns a grounded brief/brand/denylist bundle whose
// deterministic drafts pass every review check.
func SampleInputs() brief.Inputs {
	b := brief.Brief{
		Product:  "SignalShip",
		Category: "inventory software",
		Summary:  "SignalShip tracks warehouse stock levels and reorders before shelves run dry.",
		Audience: []string{"operations leads", "warehouse managers"},
		ValueProps: []string{
			"Automatic reorder points",
			"Live stock visibility",
		},
		ProofPoints: []string{
			"Cut stockouts by 22% in 60 days",
		},
		PrimaryCTA: "Book a demo",
		Raw: "Product: SignalShip\nCategory: inventory software\n" +
			"Summary: SignalShip tracks warehouse stock levels and reorders before shelves run dry.\n" +
			"Audience: operations leads; warehouse managers\n" +
			"Value props: Automatic reorder points; Live stock visibility\n" +
			"Proof points: Cut stockouts by 22% in 60 days\n" +
			"CTA: Book a demo\n",
	}
	brand := brief.Brand{
		Voice:     "plainspoken and confident",
		ToneWords: []string{"clear", "direct"},
		DoNot:     []string{"synergy"},
		Raw:       "Voice: plainspoken and confident\nDo not: synergy\n",
	}
	deny := brief.Denylist{
		Phrases: []string{"best in class"},
		Raw:     "best in class\n",
	}
	return brief.Inputs{Brief: b, Brand: brand, Denylist: deny}
}

// UngroundedInputs returns inputs whose brief summary carries a number
// absent from the proof points, so deterministic drafts always fail the
// grounding check.
func UngroundedInputs() brief.Inputs {
	in := SampleInputs()
	in.Brief.Summary = "SignalShip serves 9000 warehouses and reorders before shelves run dry."
	return in
}

// BlockedInputs returns inputs whose raw text carries a credit-card-shaped
// number, triggering the PII guardrail.
func BlockedInputs() brief.Inputs {
	in := SampleInputs()
	in.Brief.Raw += "Billing card: 4111 1111 1111 1111\n"
	return in
}
