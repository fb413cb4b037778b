package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *Collector {
	return NewCollector(Config{Enabled: true}, prometheus.NewRegistry())
}

func TestRecordRunFinished(t *testing.T) {
	c := newTestCollector()
	c.RecordRunFinished("complete")
	c.RecordRunFinished("complete")
	c.RecordRunFinished("stopped")

	if got := testutil.ToFloat64(c.runsTotal.WithLabelValues("complete")); got != 2 {
		t.Errorf("complete runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runsTotal.WithLabelValues("stopped")); got != 1 {
		t.Errorf("stopped runs = %v, want 1", got)
	}
}

func TestRecordNodeStepAndGuardrails(t *testing.T) {
	c := newTestCollector()
	c.RecordNodeStep("plan")
	c.RecordNodeStep("write")
	c.RecordNodeStep("write")
	c.RecordGuardrailVerdict("pii_input", "warn")

	if got := testutil.ToFloat64(c.nodeSteps.WithLabelValues("write")); got != 2 {
		t.Errorf("write steps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.guardrailTotal.WithLabelValues("pii_input", "warn")); got != 1 {
		t.Errorf("guardrail verdicts = %v, want 1", got)
	}
}

func TestDisabledCollectorIsNoop(t *testing.T) {
	c := NewCollector(Config{}, prometheus.NewRegistry())
	c.RecordRunFinished("complete")
	c.RecordNodeStep("plan")
	c.RecordModelCall("writer", "premium", time.Second, 100)
	c.RecordGuardrailVerdict("pii_input", "block")
	c.RecordReviewIssues(3)

	if got := testutil.ToFloat64(c.runsTotal.WithLabelValues("complete")); got != 0 {
		t.Errorf("disabled collector recorded runs: %v", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	c := newTestCollector()
	c.RecordRunFinished("complete")
	c.RecordModelCall("planner", "standard", 500*time.Millisecond, 1200)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, metric := range []string{"copyforge_runs_total", "copyforge_model_call_duration_seconds", "copyforge_model_call_tokens"} {
		if !strings.Contains(body, metric) {
			t.Errorf("metric %s missing from scrape output", metric)
		}
	}
}
