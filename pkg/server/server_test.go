package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"briefline/copyforge/internal/pipelinetest"
	"briefline/copyforge/pkg/config"
	"briefline/copyforge/pkg/evals"
	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/store"
	"briefline/copyforge/pkg/telemetry/health"
)

type testServer struct {
	*Server
	store *store.Store
}

func newTestServer(t *testing.T, pol policy.Policy) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	s, err := New(Config{
		HTTP:         config.ServerConfig{ListenAddress: "127.0.0.1:0"},
		Orchestrator: pipeline.New(pipeline.Config{Logger: logger}),
		Store:        st,
		Evals:        evals.NewEngine(evals.Config{Logger: logger}),
		Policy:       pol,
		Checker:      health.New(0),
		Logger:       logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testServer{Server: s, store: st}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func sampleRunRequest() runRequest {
	in := pipelinetest.SampleInputs()
	return runRequest{
		Brief:    in.Brief.Raw,
		Brand:    in.Brand.Raw,
		Denylist: in.Denylist.Raw,
	}
}

func TestCreateRunCompletes(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	rec := ts.do(t, http.MethodPost, "/api/runs", sampleRunRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[runResponse](t, rec)
	if resp.Status != pipeline.StatusComplete {
		t.Errorf("run status = %q", resp.Status)
	}
	if len(resp.Drafts) != 3 {
		t.Errorf("drafts = %d channels", len(resp.Drafts))
	}
	if resp.Report == nil || !resp.Report.Pass {
		t.Errorf("report = %+v", resp.Report)
	}

	got := ts.do(t, http.MethodGet, "/api/runs/"+resp.RunID, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("GET run status = %d", got.Code)
	}
	bundle := decodeBody[store.Bundle](t, got)
	if bundle.Log.RunID != resp.RunID {
		t.Errorf("bundle run id = %q, want %q", bundle.Log.RunID, resp.RunID)
	}

	list := ts.do(t, http.MethodGet, "/api/runs", nil)
	entries := decodeBody[[]store.IndexEntry](t, list)
	if len(entries) != 1 || entries[0].RunID != resp.RunID {
		t.Errorf("index = %+v", entries)
	}
}

func TestCreateRunRequiresBrief(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	rec := ts.do(t, http.MethodPost, "/api/runs", runRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCreateRunGuardrailBlocked(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	pol := policy.Default()
	pol.Guardrails.PII.Mode = policy.ModeBlock
	req := sampleRunRequest()
	req.Brief += "Billing card: 4111 1111 1111 1111\n"
	req.Policy = &pol

	rec := ts.do(t, http.MethodPost, "/api/runs", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[runResponse](t, rec)
	if resp.Status != pipeline.StatusStopped || resp.StopReason != pipeline.StopGuardrailBlocked {
		t.Errorf("status = %q reason = %q", resp.Status, resp.StopReason)
	}
	if len(resp.Trace) != 0 {
		t.Errorf("trace = %v, want no nodes", resp.Trace)
	}
}

func TestGetRunNotFound(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	rec := ts.do(t, http.MethodGet, "/api/runs/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func hitlPolicy() policy.Policy {
	pol := policy.Default()
	pol.HITLEnabled = true
	return pol
}

func TestApproveResumesRun(t *testing.T) {
	ts := newTestServer(t, hitlPolicy())

	rec := ts.do(t, http.MethodPost, "/api/runs", sampleRunRequest())
	resp := decodeBody[runResponse](t, rec)
	if resp.Status != pipeline.StatusNeedsApproval {
		t.Fatalf("run status = %q", resp.Status)
	}
	if _, err := ts.store.LoadPaused(resp.RunID); err != nil {
		t.Fatalf("paused snapshot missing: %v", err)
	}

	approved := ts.do(t, http.MethodPost, "/api/runs/"+resp.RunID+"/approve", nil)
	if approved.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", approved.Code, approved.Body.String())
	}
	final := decodeBody[runResponse](t, approved)
	if final.Status != pipeline.StatusComplete {
		t.Errorf("final status = %q", final.Status)
	}
	if final.RunID != resp.RunID {
		t.Errorf("run id changed: %q -> %q", resp.RunID, final.RunID)
	}
	if final.Report == nil {
		t.Error("no report after approval")
	}

	if _, err := ts.store.LoadPaused(resp.RunID); err == nil {
		t.Error("paused snapshot still present after approval")
	}
}

func TestRejectFinalizesRun(t *testing.T) {
	ts := newTestServer(t, hitlPolicy())

	rec := ts.do(t, http.MethodPost, "/api/runs", sampleRunRequest())
	resp := decodeBody[runResponse](t, rec)
	if resp.Status != pipeline.StatusNeedsApproval {
		t.Fatalf("run status = %q", resp.Status)
	}

	rejected := ts.do(t, http.MethodPost, "/api/runs/"+resp.RunID+"/reject", nil)
	if rejected.Code != http.StatusOK {
		t.Fatalf("reject status = %d", rejected.Code)
	}
	final := decodeBody[runResponse](t, rejected)
	if final.Status != pipeline.StatusStopped || final.StopReason != pipeline.StopHumanRejected {
		t.Errorf("status = %q reason = %q", final.Status, final.StopReason)
	}

	if _, err := ts.store.LoadPaused(resp.RunID); err == nil {
		t.Error("paused snapshot still present after rejection")
	}
}

func TestRejectWithFeedbackReplans(t *testing.T) {
	ts := newTestServer(t, hitlPolicy())

	rec := ts.do(t, http.MethodPost, "/api/runs", sampleRunRequest())
	resp := decodeBody[runResponse](t, rec)
	if resp.Status != pipeline.StatusNeedsApproval {
		t.Fatalf("run status = %q", resp.Status)
	}

	rejected := ts.do(t, http.MethodPost, "/api/runs/"+resp.RunID+"/reject",
		rejectRequest{Feedback: "Mention the live dashboard"})
	if rejected.Code != http.StatusOK {
		t.Fatalf("reject status = %d, body %s", rejected.Code, rejected.Body.String())
	}

	// HITL is still enabled, so the rerun suspends at the next review.
	final := decodeBody[runResponse](t, rejected)
	if final.Status != pipeline.StatusNeedsApproval {
		t.Fatalf("rerun status = %q", final.Status)
	}

	paused, err := ts.store.LoadPaused(resp.RunID)
	if err != nil {
		t.Fatalf("paused snapshot missing after rerun: %v", err)
	}
	found := false
	for _, r := range paused.Bundle.Reviews {
		for _, issue := range r.Issues {
			if issue.Message == "Mention the live dashboard" {
				found = true
			}
		}
	}
	if !found {
		t.Error("human feedback not carried in review history")
	}
}

func TestApproveUnknownRun(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	rec := ts.do(t, http.MethodPost, "/api/runs/ghost/approve", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestEvalSuite(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	in := pipelinetest.SampleInputs()
	req := evalRequest{
		Cases: []evalCase{{
			Name:     "sample",
			Brief:    in.Brief.Raw,
			Brand:    in.Brand.Raw,
			Denylist: in.Denylist.Raw,
			Baseline: &evals.Baseline{Score: 0.9},
		}},
		Options: evalOptions{RegressionCheck: true},
	}

	rec := ts.do(t, http.MethodPost, "/api/eval", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[evals.SuiteResult](t, rec)
	if len(result.Cases) != 1 {
		t.Fatalf("cases = %d", len(result.Cases))
	}
	if !result.GatePass {
		t.Errorf("gate failed: %+v", result.Cases[0])
	}

	history, err := ts.store.EvalHistory(0)
	if err != nil || len(history) != 1 {
		t.Errorf("eval history = %d entries, err %v", len(history), err)
	}
}

func TestEvalRequiresCases(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	rec := ts.do(t, http.MethodPost, "/api/eval", evalRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	if rec := ts.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

func TestSetPolicySwapsDefault(t *testing.T) {
	ts := newTestServer(t, policy.Default())

	pol := hitlPolicy()
	ts.SetPolicy(pol)

	rec := ts.do(t, http.MethodPost, "/api/runs", sampleRunRequest())
	resp := decodeBody[runResponse](t, rec)
	if resp.Status != pipeline.StatusNeedsApproval {
		t.Errorf("status = %q, want suspension under swapped policy", resp.Status)
	}
}
