// Package guardrails screens the combined raw input text (brief + brand +
// denylist) before any generation occurs.
//
// Two independent checks run once per fresh run: a deterministic PII pattern
// scan and an optional external safety classification. Each yields pass,
// warn, or block; the orchestrator stops the run on any block and records
// warns without halting.
package guardrails

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"briefline/copyforge/pkg/policy"
)

// Status is the outcome of one guardrail check.
type Status string

const (
	StatusPass  Status = "pass"
	StatusWarn  Status = "warn"
	StatusBlock Status = "block"
)

// Check names.
const (
	CheckPIIInput    = "pii_input"
	CheckSafetyInput = "safety_input"
)

// Result is the outcome of a single guardrail check.
type Result struct {
	// Name identifies the check: pii_input or safety_input.
	Name string `json:"name"`

	// Status is pass, warn, or block.
	Status Status `json:"status"`

	// Findings describes what the check matched, if anything.
	Findings []string `json:"findings,omitempty"`
}

// Blocked reports whether any result carries a block status.
func Blocked(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusBlock {
			return true
		}
	}
	return false
}

// SafetyClassifier is the optional external classifier consulted by the
// safety check. Classify returns whether the text is safe.
type SafetyClassifier interface {
	Classify(ctx context.Context, text string) (safe bool, err error)
}

// PII patterns. The card pattern targets long bare digit runs; digits
// separated by spaces or dashes are collapsed before matching so formatted
// card numbers are still caught.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	cardPattern  = regexp.MustCompile(`\d{13,16}`)

	digitSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// Engine runs the pre-flight input checks.
type Engine struct {
	classifier SafetyClassifier
	logger     *slog.Logger
}

// NewEngine creates a guardrail engine. classifier may be nil, in which
// case the safety check is skipped entirely.
func NewEngine(classifier SafetyClassifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: classifier,
		logger:     logger.With("component", "guardrails"),
	}
}

// Screen runs all input checks against the combined raw text and returns
// their results. It never returns an error: classifier failures degrade to
// skipping the safety check with a logged warning.
func (e *Engine) Screen(ctx context.Context, raw string, pol policy.Policy) []Result {
	results := []Result{e.checkPII(raw, pol.Guardrails.PII.Mode)}

	if safety, ok := e.checkSafety(ctx, raw, pol.Guardrails.Safety.Mode); ok {
		results = append(results, safety)
	}

	return results
}

// checkPII scans for email-like, phone-like, and credit-card-like
// substrings. Any match maps to the policy's configured PII mode.
func (e *Engine) checkPII(raw string, mode policy.GuardrailMode) Result {
	var findings []string

	for _, m := range emailPattern.FindAllString(raw, -1) {
		findings = append(findings, fmt.Sprintf("email-like pattern: %s", redactMiddle(m)))
	}
	for _, m := range phonePattern.FindAllString(raw, -1) {
		// Phone candidates need enough digits to be a real number;
		// short numeric ranges in prose match the loose pattern.
		if digitCount(m) >= 8 {
			findings = append(findings, fmt.Sprintf("phone-like pattern: %s", redactMiddle(m)))
		}
	}
	collapsed := digitSeparators.Replace(raw)
	for _, m := range cardPattern.FindAllString(collapsed, -1) {
		findings = append(findings, fmt.Sprintf("card-like digit run: %s", redactMiddle(m)))
	}

	if len(findings) == 0 {
		return Result{Name: CheckPIIInput, Status: StatusPass}
	}

	status := StatusWarn
	if mode == policy.ModeBlock {
		status = StatusBlock
	}

	e.logger.Warn("pii patterns detected in input",
		"findings", len(findings),
		"status", status,
	)

	return Result{Name: CheckPIIInput, Status: status, Findings: findings}
}

// checkSafety consults the external classifier. The check is skipped (ok ==
// false) when no classifier is configured or the call fails; a run is never
// failed by the absence of the classifier.
func (e *Engine) checkSafety(ctx context.Context, raw string, mode policy.GuardrailMode) (Result, bool) {
	if e.classifier == nil {
		e.logger.Debug("safety classifier not configured, skipping safety check")
		return Result{}, false
	}

	safe, err := e.classifier.Classify(ctx, raw)
	if err != nil {
		e.logger.Warn("safety classification failed, skipping safety check", "error", err)
		return Result{}, false
	}

	if safe {
		return Result{Name: CheckSafetyInput, Status: StatusPass}, true
	}

	status := StatusWarn
	if mode == policy.ModeBlock {
		status = StatusBlock
	}

	return Result{
		Name:     CheckSafetyInput,
		Status:   status,
		Findings: []string{"input classified as unsafe"},
	}, true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// redactMiddle keeps the first and last two characters of a finding so logs
// and run records do not replicate the PII they flagged.
func redactMiddle(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
