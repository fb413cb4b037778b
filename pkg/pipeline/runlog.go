package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"briefline/copyforge/pkg/guardrails"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/review"
)

// Status is the lifecycle status of a run.
type Status string

const (
	// StatusRunning is the in-flight status; never persisted as terminal.
	StatusRunning Status = "running"

	// StatusComplete means the run reached the done node.
	StatusComplete Status = "complete"

	// StatusStopped means the run terminated on a defined stop condition
	// (retry budget, guardrail block); see StopReason.
	StatusStopped Status = "stopped"

	// StatusError means the run aborted on a fatal error.
	StatusError Status = "error"

	// StatusNeedsApproval means the run is suspended awaiting a human
	// decision and can be resumed.
	StatusNeedsApproval Status = "needs_approval"
)

// Stop reasons recorded alongside StatusStopped.
const (
	StopMaxRetries       = "max_retries_exceeded"
	StopGuardrailBlocked = "guardrail_blocked"
	StopHumanRejected    = "human_rejected"
)

// ModelCall records one external model call.
type ModelCall struct {
	// Stage is the pipeline stage that made the call.
	Stage string `json:"stage"`

	// Model is the concrete model identifier used.
	Model string `json:"model"`

	// Duration is the wall-clock call duration.
	Duration time.Duration `json:"duration"`

	// Usage holds the provider-reported token counters.
	Usage providers.TokenUsage `json:"usage"`
}

// RunLog is the append-only record of one orchestration run. The
// orchestrator mutates it incrementally; once the run reaches a terminal
// status it is never mutated again, except that a HITL resume continues
// the same logical run with fresh entries.
type RunLog struct {
	// RunID identifies the run; also the on-disk output namespace key.
	RunID string `json:"runId"`

	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`

	// Status is the current lifecycle status.
	Status Status `json:"status"`

	// StopReason qualifies StatusStopped.
	StopReason string `json:"stopReason,omitempty"`

	// Policy is the policy the run executed under.
	Policy policy.Policy `json:"policy"`

	// Guardrails holds the pre-flight check results.
	Guardrails []guardrails.Result `json:"guardrails,omitempty"`

	// Steps is the ordered step trace (node names, one per transition).
	Steps []string `json:"steps"`

	// Plans holds one snapshot per planning attempt.
	Plans []Plan `json:"plans,omitempty"`

	// Reviews holds one snapshot per review attempt.
	Reviews []review.Result `json:"reviews,omitempty"`

	// ModelCalls records every external model call.
	ModelCalls []ModelCall `json:"modelCalls,omitempty"`

	// TotalUsage accumulates token usage across all model calls.
	TotalUsage providers.TokenUsage `json:"totalUsage"`

	// Lines holds free-text log lines.
	Lines []string `json:"lines,omitempty"`

	// RetryCount is the number of failed reviews so far.
	RetryCount int `json:"retryCount"`
}

// NewRunLog creates a run log for a fresh run.
func NewRunLog(pol policy.Policy) *RunLog {
	return &RunLog{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
		Policy:    pol,
	}
}

// AppendStep records a node transition in the step trace.
func (l *RunLog) AppendStep(node string) {
	l.Steps = append(l.Steps, node)
}

// RecordModelCall appends a model-call record and maintains the running
// usage totals.
func (l *RunLog) RecordModelCall(stage, model string, d time.Duration, usage providers.TokenUsage) {
	l.ModelCalls = append(l.ModelCalls, ModelCall{
		Stage:    stage,
		Model:    model,
		Duration: d,
		Usage:    usage,
	})
	l.TotalUsage.Add(usage)
}

// Logf appends a formatted free-text log line.
func (l *RunLog) Logf(format string, args ...any) {
	l.Lines = append(l.Lines, fmt.Sprintf(format, args...))
}

// Finish marks the run terminal with the given status and stop reason.
func (l *RunLog) Finish(status Status, stopReason string) {
	l.Status = status
	l.StopReason = stopReason
	l.EndedAt = time.Now().UTC()
}

// Terminal reports whether the run has reached a terminal status.
// NeedsApproval is terminal for the current pass but resumable.
func (l *RunLog) Terminal() bool {
	switch l.Status {
	case StatusComplete, StatusStopped, StatusError, StatusNeedsApproval:
		return true
	}
	return false
}
