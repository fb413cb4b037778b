package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/evals"
	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/review"
	"briefline/copyforge/pkg/store"
)

// Nodes a suspended run re-enters the graph at. Approval continues with
// analysis; rejection with feedback goes back to planning so the feedback
// flows through the retry mechanism.
const (
	approveEntryNode = "analyze"
	rejectEntryNode  = "plan"
)

const maxRequestBody = 1 << 20

// runRequest is the body of POST /api/runs.
type runRequest struct {
	// Brief, Brand, and Denylist are the raw input texts.
	Brief    string `json:"brief"`
	Brand    string `json:"brand"`
	Denylist string `json:"denylist"`

	// Policy overrides the server's default policy for this run.
	Policy *policy.Policy `json:"policy,omitempty"`

	// RunID overrides the generated run identifier.
	RunID string `json:"runId,omitempty"`
}

// runResponse summarizes a run for API consumers. The full bundle stays
// on disk; GET /api/runs/{id} returns it.
type runResponse struct {
	RunID      string                 `json:"runId"`
	Status     pipeline.Status        `json:"status"`
	StopReason string                 `json:"stopReason,omitempty"`
	Trace      []string               `json:"trace"`
	Retries    int                    `json:"retries"`
	Drafts     pipeline.ChannelDrafts `json:"drafts,omitempty"`
	Report     *pipeline.Report       `json:"report,omitempty"`
}

// rejectRequest is the body of POST /api/runs/{id}/reject. Feedback, when
// present, is injected as a failing review and the run re-plans; an empty
// body finalizes the run as rejected.
type rejectRequest struct {
	Feedback string `json:"feedback"`
}

// evalRequest is the body of POST /api/eval.
type evalRequest struct {
	Cases   []evalCase     `json:"cases"`
	Policy  *policy.Policy `json:"policy,omitempty"`
	Options evalOptions    `json:"options"`
}

// evalCase is one case in an eval request. Drafts may be omitted, in
// which case the pipeline generates them from the inputs first.
type evalCase struct {
	Name     string            `json:"name"`
	Brief    string            `json:"brief"`
	Brand    string            `json:"brand"`
	Denylist string            `json:"denylist"`
	Drafts   map[string]string `json:"drafts,omitempty"`
	Baseline *evals.Baseline   `json:"baseline,omitempty"`
}

type evalOptions struct {
	UseJudge        *bool    `json:"useJudge,omitempty"`
	RegressionCheck bool     `json:"regressionCheck"`
	Threshold       *float64 `json:"threshold,omitempty"`
	PairwiseVotes   int      `json:"pairwiseVotes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Brief == "" {
		writeError(w, http.StatusBadRequest, "brief is required")
		return
	}

	pol := s.currentPolicy()
	if req.Policy != nil {
		pol = policy.Normalize(*req.Policy)
	}
	in := brief.ParseInputs(req.Brief, req.Brand, req.Denylist)

	st, err := s.orchestrator.Run(r.Context(), in, pol, pipeline.RunOptions{RunID: req.RunID})
	if err != nil {
		s.persist(st)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.persist(st)

	writeJSON(w, http.StatusCreated, summarize(st))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.store.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []store.IndexEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.store.LoadRun(r.PathValue("id"))
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	paused, err := s.store.LoadPaused(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "no suspended run with id "+id)
		return
	}

	st := paused.Bundle.State()
	st.Log.Logf("human approved run")
	st, runErr := s.orchestrator.Run(r.Context(), st.Inputs, st.Policy, pipeline.RunOptions{
		Resume:    st,
		StartNode: approveEntryNode,
	})
	s.persist(st)
	if runErr != nil {
		writeError(w, http.StatusUnprocessableEntity, runErr.Error())
		return
	}
	writeJSON(w, http.StatusOK, summarize(st))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	paused, err := s.store.LoadPaused(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "no suspended run with id "+id)
		return
	}

	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	st := paused.Bundle.State()

	// No feedback: the run ends here as rejected.
	if req.Feedback == "" {
		st.Log.Logf("human rejected run")
		st.Log.Finish(pipeline.StatusStopped, pipeline.StopHumanRejected)
		s.persist(st)
		writeJSON(w, http.StatusOK, summarize(st))
		return
	}

	// Feedback present: inject it as a failing review so the next writing
	// attempt sees it as must-fix guidance, then re-plan.
	rejection := review.Result{
		Issues: []review.Issue{{Type: review.IssueLLM, Message: req.Feedback}},
	}
	st.Reviews = append(st.Reviews, rejection)
	st.Log.Reviews = append(st.Log.Reviews, rejection)
	st.Log.Logf("human rejected run with feedback: %s", req.Feedback)

	st, runErr := s.orchestrator.Run(r.Context(), st.Inputs, st.Policy, pipeline.RunOptions{
		Resume:    st,
		StartNode: rejectEntryNode,
	})
	s.persist(st)
	if runErr != nil {
		writeError(w, http.StatusUnprocessableEntity, runErr.Error())
		return
	}
	writeJSON(w, http.StatusOK, summarize(st))
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	if s.evals == nil {
		writeError(w, http.StatusServiceUnavailable, "eval engine not configured")
		return
	}
	var req evalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Cases) == 0 {
		writeError(w, http.StatusBadRequest, "at least one case is required")
		return
	}

	pol := s.currentPolicy()
	if req.Policy != nil {
		pol = policy.Normalize(*req.Policy)
	}

	cases := make([]evals.Case, 0, len(req.Cases))
	for _, c := range req.Cases {
		in := brief.ParseInputs(c.Brief, c.Brand, c.Denylist)
		drafts := c.Drafts
		if drafts == nil {
			st, err := s.orchestrator.Run(r.Context(), in, pol, pipeline.RunOptions{})
			if err != nil || st.Drafts == nil {
				writeError(w, http.StatusUnprocessableEntity, "case "+c.Name+": could not generate drafts")
				return
			}
			drafts = st.Drafts
		}
		cases = append(cases, evals.Case{
			Name:     c.Name,
			Inputs:   in,
			Drafts:   drafts,
			Baseline: c.Baseline,
		})
	}

	result := s.evals.RunSuite(r.Context(), cases, pol, evals.Options{
		UseJudge:        req.Options.UseJudge,
		RegressionCheck: req.Options.RegressionCheck,
		Threshold:       req.Options.Threshold,
		PairwiseVotes:   req.Options.PairwiseVotes,
	})

	if err := s.store.AppendEval(result); err != nil {
		s.logger.Warn("could not append eval record", "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

// persist saves the run outcome. Persistence failures are logged, not
// surfaced: the run itself already finished.
func (s *Server) persist(st *pipeline.State) {
	if st == nil || st.Log == nil {
		return
	}
	if err := s.store.SaveOutcome(st); err != nil {
		s.logger.Error("could not persist run", "runId", st.Log.RunID, "error", err)
	}
}

func summarize(st *pipeline.State) runResponse {
	return runResponse{
		RunID:      st.Log.RunID,
		Status:     st.Log.Status,
		StopReason: st.Log.StopReason,
		Trace:      st.Trace,
		Retries:    st.FailedReviews(),
		Drafts:     st.Drafts,
		Report:     st.Report,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
