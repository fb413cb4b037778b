package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"briefline/copyforge/pkg/pipeline"
)

// PausedRun is the persisted record of a run suspended for human
// approval. Persisting it lets resumption survive process restarts.
type PausedRun struct {
	RunID  string  `json:"runId"`
	Reason string  `json:"reason"`
	Bundle *Bundle `json:"bundle"`
}

// SavePaused persists a suspended run for later approval or rejection.
func (s *Store) SavePaused(st *pipeline.State) error {
	if st.Log == nil || st.Log.RunID == "" {
		return fmt.Errorf("run has no id")
	}
	if st.Log.Status != pipeline.StatusNeedsApproval {
		return fmt.Errorf("run %q has status %q, only needs_approval runs can be paused", st.Log.RunID, st.Log.Status)
	}

	rec := PausedRun{
		RunID:  st.Log.RunID,
		Reason: "awaiting human approval",
		Bundle: BundleFromState(st),
	}
	path := filepath.Join(s.root, pausedDir, st.Log.RunID+".json")
	if err := writeJSON(path, rec); err != nil {
		return err
	}
	s.logger.Info("run paused", "runId", st.Log.RunID)
	return nil
}

// LoadPaused reads a suspended run record.
func (s *Store) LoadPaused(runID string) (*PausedRun, error) {
	var rec PausedRun
	path := filepath.Join(s.root, pausedDir, runID+".json")
	if err := readJSON(path, &rec); err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, err
	}
	return &rec, nil
}

// DeletePaused removes a suspended run record after it has been resumed.
func (s *Store) DeletePaused(runID string) error {
	path := filepath.Join(s.root, pausedDir, runID+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{RunID: runID}
		}
		return fmt.Errorf("failed to delete paused run %q: %w", runID, err)
	}
	return nil
}

// ListPaused returns the run ids of all suspended runs.
func (s *Store) ListPaused() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, pausedDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list paused runs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}
