package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/store"
)

// suspendRun executes a HITL run that stops for approval and returns the
// store root it was persisted under.
func suspendRun(t *testing.T, runID string) string {
	t.Helper()
	dir := t.TempDir()
	briefPath, brandPath, denyPath := writeInputFiles(t, dir)
	storeRoot := filepath.Join(dir, "store")

	policyPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte("hitl_enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resetRunFlags()
	runFlags.briefPath = briefPath
	runFlags.brandPath = brandPath
	runFlags.denylistPath = denyPath
	runFlags.policyPath = policyPath
	runFlags.storeRoot = storeRoot
	runFlags.runID = runID

	var out bytes.Buffer
	runCmd.SetOut(&out)
	defer runCmd.SetOut(nil)

	if err := runPipeline(runCmd, nil); err != nil {
		t.Fatalf("runPipeline() returned error: %v", err)
	}
	if !strings.Contains(out.String(), "needs_approval") {
		t.Fatalf("run did not suspend:\n%s", out.String())
	}
	return storeRoot
}

func loadBundle(t *testing.T, storeRoot, runID string) *store.Bundle {
	t.Helper()
	s, err := store.New(storeRoot, nil)
	if err != nil {
		t.Fatal(err)
	}
	bundle, err := s.LoadRun(runID)
	if err != nil {
		t.Fatal(err)
	}
	return bundle
}

func TestApproveResumesSuspendedRun(t *testing.T) {
	storeRoot := suspendRun(t, "cmd-approve-run")

	approveFlags.storeRoot = storeRoot
	approveFlags.list = false
	approveFlags.output = "text"

	var out bytes.Buffer
	approveCmd.SetOut(&out)
	defer approveCmd.SetOut(nil)

	if err := runApprove(approveCmd, []string{"cmd-approve-run"}); err != nil {
		t.Fatalf("runApprove() returned error: %v", err)
	}
	if !strings.Contains(out.String(), "complete") {
		t.Errorf("output missing completion status:\n%s", out.String())
	}

	bundle := loadBundle(t, storeRoot, "cmd-approve-run")
	if bundle.Log.Status != pipeline.StatusComplete {
		t.Errorf("status = %q, want %q", bundle.Log.Status, pipeline.StatusComplete)
	}

	s, err := store.New(storeRoot, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadPaused("cmd-approve-run"); err == nil {
		t.Error("paused record should be deleted after approval")
	}
}

func TestApproveListShowsPendingRuns(t *testing.T) {
	storeRoot := suspendRun(t, "cmd-list-run")

	approveFlags.storeRoot = storeRoot
	approveFlags.list = true
	approveFlags.output = "text"

	var out bytes.Buffer
	approveCmd.SetOut(&out)
	defer approveCmd.SetOut(nil)

	if err := runApprove(approveCmd, nil); err != nil {
		t.Fatalf("runApprove() returned error: %v", err)
	}
	if !strings.Contains(out.String(), "cmd-list-run") {
		t.Errorf("list output missing run id:\n%s", out.String())
	}
}

func TestApproveUnknownRunFails(t *testing.T) {
	approveFlags.storeRoot = t.TempDir()
	approveFlags.list = false

	if err := runApprove(approveCmd, []string{"no-such-run"}); err == nil {
		t.Error("runApprove() with unknown run should return error")
	}
}

func TestRejectStopsRun(t *testing.T) {
	storeRoot := suspendRun(t, "cmd-reject-run")

	rejectFlags.storeRoot = storeRoot
	rejectFlags.feedback = ""
	rejectFlags.output = "text"

	var out bytes.Buffer
	rejectCmd.SetOut(&out)
	defer rejectCmd.SetOut(nil)

	if err := runReject(rejectCmd, []string{"cmd-reject-run"}); err != nil {
		t.Fatalf("runReject() returned error: %v", err)
	}
	if !strings.Contains(out.String(), string(pipeline.StopHumanRejected)) {
		t.Errorf("output missing stop reason:\n%s", out.String())
	}

	bundle := loadBundle(t, storeRoot, "cmd-reject-run")
	if bundle.Log.Status != pipeline.StatusStopped {
		t.Errorf("status = %q, want %q", bundle.Log.Status, pipeline.StatusStopped)
	}
}

func TestRejectWithFeedbackReplans(t *testing.T) {
	storeRoot := suspendRun(t, "cmd-replan-run")

	rejectFlags.storeRoot = storeRoot
	rejectFlags.feedback = "lead with the proof point"
	rejectFlags.output = "text"

	var out bytes.Buffer
	rejectCmd.SetOut(&out)
	defer rejectCmd.SetOut(nil)

	if err := runReject(rejectCmd, []string{"cmd-replan-run"}); err != nil {
		t.Fatalf("runReject() returned error: %v", err)
	}

	// HITL is still enabled, so the rerun suspends again with the
	// feedback carried in its review history.
	bundle := loadBundle(t, storeRoot, "cmd-replan-run")
	if bundle.Log.Status != pipeline.StatusNeedsApproval {
		t.Fatalf("status = %q, want %q", bundle.Log.Status, pipeline.StatusNeedsApproval)
	}
	found := false
	for _, rev := range bundle.Reviews {
		for _, issue := range rev.Issues {
			if issue.Message == "lead with the proof point" {
				found = true
			}
		}
	}
	if !found {
		t.Error("feedback not carried into review history")
	}
}
