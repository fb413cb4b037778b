package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/guardrails"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/review"
)

// Recorder receives pipeline metrics events. All methods must be safe for
// concurrent use.
type Recorder interface {
	RecordRunFinished(status string)
	RecordNodeStep(node string)
	RecordModelCall(stage, model string, duration time.Duration, totalTokens int)
	RecordGuardrailVerdict(check, status string)
	RecordReviewIssues(count int)
}

// Config assembles an orchestrator. Provider, Judge, Classifier, Metrics,
// and Logger are all optional; Graph defaults to the built-in topology.
type Config struct {
	Graph      *Graph
	Provider   providers.Provider
	Judge      review.Judge
	Classifier guardrails.SafetyClassifier
	Metrics    Recorder
	Logger     *slog.Logger
}

// RunOptions controls a single run.
type RunOptions struct {
	// RunID overrides the generated run identifier on fresh runs.
	RunID string

	// StartNode overrides the graph's start node. Used when resuming a
	// suspended run at a caller-chosen node.
	StartNode string

	// Resume seeds the run with a previously suspended state instead of
	// starting fresh. Guardrails are not re-run on resumed runs.
	Resume *State
}

// Orchestrator drives a run through the pipeline graph until a terminal
// status is reached.
type Orchestrator struct {
	graph      *Graph
	guardrails *guardrails.Engine
	reviewer   *review.Engine
	planner    *Planner
	writer     *Writer
	metrics    Recorder
	logger     *slog.Logger
	tracer     trace.Tracer
}

// New creates an orchestrator from the given configuration.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	graph := cfg.Graph
	if graph == nil {
		graph = DefaultGraph()
	}
	return &Orchestrator{
		graph:      graph,
		guardrails: guardrails.NewEngine(cfg.Classifier, logger),
		reviewer:   review.NewEngine(cfg.Judge, logger),
		planner:    NewPlanner(cfg.Provider, logger),
		writer:     NewWriter(cfg.Provider, logger),
		metrics:    cfg.Metrics,
		logger:     logger.With("component", "orchestrator"),
		tracer:     otel.Tracer("briefline/copyforge/pipeline"),
	}
}

// Run executes the pipeline for the given inputs under the given policy
// and returns the terminal state. Defined stop conditions (guardrail
// block, retry-budget exhaustion, HITL suspension) terminate with a nil
// error; only fatal conditions (unknown node, no matching edge, missing
// precondition, step-limit breach) return a non-nil error, with the state
// reflecting the failure.
func (o *Orchestrator) Run(ctx context.Context, in brief.Inputs, pol policy.Policy, opts RunOptions) (*State, error) {
	pol = policy.Normalize(pol)

	var st *State
	if opts.Resume != nil {
		st = opts.Resume
		st.Log.Status = StatusRunning
		st.Log.StopReason = ""
		st.Log.EndedAt = time.Time{}
		o.logger.Info("resuming run", "runId", st.Log.RunID, "startNode", opts.StartNode)
	} else {
		st = &State{Inputs: in, Policy: pol, Log: NewRunLog(pol)}
		if opts.RunID != "" {
			st.Log.RunID = opts.RunID
		}
		o.logger.Info("starting run", "runId", st.Log.RunID)

		if stopped := o.screenInputs(ctx, st); stopped {
			return st, nil
		}
	}

	node := opts.StartNode
	if node == "" {
		node = o.graph.Start
	}

	for steps := 0; ; steps++ {
		if steps >= o.graph.MaxSteps {
			err := &StepLimitError{MaxSteps: o.graph.MaxSteps}
			return st, o.fail(st, err)
		}
		nodeType, ok := o.graph.Nodes[node]
		if !ok {
			return st, o.fail(st, &UnknownNodeError{Node: node})
		}

		st.Trace = append(st.Trace, node)
		st.Log.AppendStep(node)
		o.recordNodeStep(node)
		o.logger.Debug("entering node", "runId", st.Log.RunID, "node", node, "type", nodeType)

		spanCtx, span := o.tracer.Start(ctx, "pipeline."+string(nodeType),
			trace.WithAttributes(
				attribute.String("run.id", st.Log.RunID),
				attribute.String("pipeline.node", node),
			))

		terminal, err := o.dispatch(spanCtx, nodeType, node, st)
		span.End()
		if err != nil {
			return st, o.fail(st, err)
		}
		if terminal {
			return st, nil
		}

		next, err := o.graph.NextNode(st, node)
		if err != nil {
			return st, o.fail(st, err)
		}
		node = next
	}
}

// dispatch runs one node and reports whether the run reached a terminal
// status.
func (o *Orchestrator) dispatch(ctx context.Context, nodeType NodeType, node string, st *State) (bool, error) {
	switch nodeType {
	case NodePlanner:
		return false, o.runPlanner(ctx, st)

	case NodeWriter:
		// A resumed or misconfigured run can reach the writer without a
		// plan; planning is re-invoked rather than failing the run.
		if st.Plan == nil {
			if err := o.runPlanner(ctx, st); err != nil {
				return false, err
			}
		}
		return false, o.runWriter(ctx, st)

	case NodeReviewer:
		return o.runReviewer(ctx, node, st)

	case NodeAnalyst:
		if st.Drafts == nil {
			return false, &PreconditionError{Node: node, Missing: "drafts"}
		}
		last, ok := st.LastReview()
		if !ok {
			return false, &PreconditionError{Node: node, Missing: "review"}
		}
		st.Report = Analyze(st.Inputs.Brief, st.Drafts, last)
		return false, nil

	case NodeDone:
		o.finish(st, StatusComplete, "")
		o.logger.Info("run complete", "runId", st.Log.RunID, "steps", len(st.Trace))
		return true, nil
	}
	return false, &UnknownNodeError{Node: node}
}

func (o *Orchestrator) runPlanner(ctx context.Context, st *State) error {
	before := len(st.Log.ModelCalls)
	if err := o.planner.Plan(ctx, st); err != nil {
		return err
	}
	o.recordNewModelCalls(st, before)
	return nil
}

func (o *Orchestrator) runWriter(ctx context.Context, st *State) error {
	before := len(st.Log.ModelCalls)
	if err := o.writer.Write(ctx, st); err != nil {
		return err
	}
	o.recordNewModelCalls(st, before)
	return nil
}

// runReviewer reviews the drafts and applies the post-review control
// flow: HITL suspension first, then the retry budget.
func (o *Orchestrator) runReviewer(ctx context.Context, node string, st *State) (bool, error) {
	if st.Drafts == nil {
		return false, &PreconditionError{Node: node, Missing: "drafts"}
	}

	result := o.reviewer.Review(ctx, st.Inputs, st.Drafts, st.Policy, st.Policy.Stages.ReviewerLLM)
	st.Reviews = append(st.Reviews, result)
	st.Log.Reviews = append(st.Log.Reviews, result)
	st.Log.RetryCount = st.FailedReviews()
	o.recordReviewIssues(len(result.Issues))
	o.logger.Info("review finished", "runId", st.Log.RunID,
		"pass", result.Pass, "issues", len(result.Issues), "attempt", len(st.Reviews))

	if st.Policy.HITLEnabled {
		o.finish(st, StatusNeedsApproval, "")
		o.logger.Info("run suspended for approval", "runId", st.Log.RunID)
		return true, nil
	}

	if result.Failed() && st.FailedReviews() > st.Policy.MaxRetries {
		// Best-effort report from the last drafts before stopping.
		st.Report = Analyze(st.Inputs.Brief, st.Drafts, result)
		o.finish(st, StatusStopped, StopMaxRetries)
		o.logger.Warn("retry budget exhausted", "runId", st.Log.RunID,
			"failedReviews", st.FailedReviews(), "maxRetries", st.Policy.MaxRetries)
		return true, nil
	}
	return false, nil
}

// screenInputs runs the guardrails on the combined raw input and reports
// whether a blocking finding stopped the run.
func (o *Orchestrator) screenInputs(ctx context.Context, st *State) bool {
	results := o.guardrails.Screen(ctx, st.Inputs.CombinedRaw(), st.Policy)
	st.Log.Guardrails = results
	for _, r := range results {
		o.recordGuardrailVerdict(r.Name, string(r.Status))
	}
	if guardrails.Blocked(results) {
		o.finish(st, StatusStopped, StopGuardrailBlocked)
		o.logger.Warn("input blocked by guardrails", "runId", st.Log.RunID)
		return true
	}
	return false
}

// fail marks the run errored and returns err unchanged.
func (o *Orchestrator) fail(st *State, err error) error {
	st.Log.Logf("fatal: %v", err)
	o.finish(st, StatusError, "")
	o.logger.Error("run failed", "runId", st.Log.RunID, "error", err)
	return err
}

func (o *Orchestrator) finish(st *State, status Status, stopReason string) {
	st.Log.Finish(status, stopReason)
	if o.metrics != nil {
		o.metrics.RecordRunFinished(string(status))
	}
}

func (o *Orchestrator) recordNodeStep(node string) {
	if o.metrics != nil {
		o.metrics.RecordNodeStep(node)
	}
}

func (o *Orchestrator) recordReviewIssues(n int) {
	if o.metrics != nil {
		o.metrics.RecordReviewIssues(n)
	}
}

func (o *Orchestrator) recordGuardrailVerdict(check, status string) {
	if o.metrics != nil {
		o.metrics.RecordGuardrailVerdict(check, status)
	}
}

func (o *Orchestrator) recordNewModelCalls(st *State, before int) {
	if o.metrics == nil {
		return
	}
	for _, call := range st.Log.ModelCalls[before:] {
		o.metrics.RecordModelCall(call.Stage, call.Model, call.Duration, call.Usage.TotalTokens)
	}
}
