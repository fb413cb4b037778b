// Package store persists run bundles, paused runs, and append-only history
// logs as flat files under a single root directory.
//
// Layout:
//
//	<root>/runs/<runId>/bundle.json   full run bundle
//	<root>/runs/<runId>/runlog.json   run log alone, for cheap inspection
//	<root>/paused/<runId>.json        suspended runs awaiting approval
//	<root>/runs.jsonl                 append-only run index
//	<root>/evals.jsonl                append-only eval history
//	<root>/bench.jsonl                append-only benchmark history
//
// Appends from concurrent processes are assumed serialized by the host I/O
// layer; the store does no cross-process locking.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"briefline/copyforge/pkg/brief"
	"briefline/copyforge/pkg/evals"
	"briefline/copyforge/pkg/pipeline"
	"briefline/copyforge/pkg/policy"
	"briefline/copyforge/pkg/providers"
	"briefline/copyforge/pkg/review"
)

const (
	runsDir    = "runs"
	pausedDir  = "paused"
	runIndex   = "runs.jsonl"
	evalIndex  = "evals.jsonl"
	benchIndex = "bench.jsonl"

	bundleFile = "bundle.json"
	runlogFile = "runlog.json"
)

// NotFoundError indicates no stored record exists for the given run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no stored run %q", e.RunID)
}

// Bundle is the persistable form of a finished or suspended run: inputs,
// policy, outputs, and the run log.
type Bundle struct {
	Inputs  brief.Inputs           `json:"inputs"`
	Policy  policy.Policy          `json:"policy"`
	Plan    *pipeline.Plan         `json:"plan,omitempty"`
	Drafts  pipeline.ChannelDrafts `json:"drafts,omitempty"`
	Reviews []review.Result        `json:"reviews,omitempty"`
	Report  *pipeline.Report       `json:"report,omitempty"`
	Trace   []string               `json:"trace"`
	Log     *pipeline.RunLog       `json:"log"`
}

// BundleFromState snapshots a run state into a bundle.
func BundleFromState(st *pipeline.State) *Bundle {
	return &Bundle{
		Inputs:  st.Inputs,
		Policy:  st.Policy,
		Plan:    st.Plan,
		Drafts:  st.Drafts.Clone(),
		Reviews: st.Reviews,
		Report:  st.Report,
		Trace:   st.Trace,
		Log:     st.Log,
	}
}

// State rebuilds a run state from the bundle, for resuming suspended runs.
func (b *Bundle) State() *pipeline.State {
	return &pipeline.State{
		Inputs:  b.Inputs,
		Policy:  b.Policy,
		Plan:    b.Plan,
		Drafts:  b.Drafts.Clone(),
		Reviews: b.Reviews,
		Report:  b.Report,
		Trace:   b.Trace,
		Log:     b.Log,
	}
}

// IndexEntry is one line of the append-only run index.
type IndexEntry struct {
	RunID      string          `json:"runId"`
	Status     pipeline.Status `json:"status"`
	StopReason string          `json:"stopReason,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	EndedAt    time.Time       `json:"endedAt"`
	Retries    int             `json:"retries"`
}

// EvalRecord is one line of the append-only eval history.
type EvalRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Result    evals.SuiteResult `json:"result"`
}

// BenchRecord is one line of the append-only benchmark history: token
// usage and per-stage timing for one run.
type BenchRecord struct {
	RunID     string               `json:"runId"`
	Timestamp time.Time            `json:"timestamp"`
	Duration  time.Duration        `json:"duration"`
	Usage     providers.TokenUsage `json:"usage"`

	// StageDurations sums model-call wall time per stage.
	StageDurations map[string]time.Duration `json:"stageDurations,omitempty"`
}

// BenchFromLog derives a benchmark record from a run log.
func BenchFromLog(l *pipeline.RunLog) BenchRecord {
	rec := BenchRecord{
		RunID:     l.RunID,
		Timestamp: time.Now().UTC(),
		Duration:  l.EndedAt.Sub(l.StartedAt),
		Usage:     l.TotalUsage,
	}
	if len(l.ModelCalls) > 0 {
		rec.StageDurations = make(map[string]time.Duration)
		for _, call := range l.ModelCalls {
			rec.StageDurations[call.Stage] += call.Duration
		}
	}
	return rec
}

// Store reads and writes run artifacts under a root directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates a store rooted at root, creating the directory tree as
// needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{root, filepath.Join(root, runsDir), filepath.Join(root, pausedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %q: %w", dir, err)
		}
	}
	return &Store{root: root, logger: logger.With("component", "store")}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// SaveRun persists a terminal run: the bundle and run log under the run's
// own directory, plus an index line.
func (s *Store) SaveRun(st *pipeline.State) error {
	if st.Log == nil || st.Log.RunID == "" {
		return fmt.Errorf("run has no id")
	}
	dir := filepath.Join(s.root, runsDir, st.Log.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	bundle := BundleFromState(st)
	if err := writeJSON(filepath.Join(dir, bundleFile), bundle); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, runlogFile), st.Log); err != nil {
		return err
	}

	entry := IndexEntry{
		RunID:      st.Log.RunID,
		Status:     st.Log.Status,
		StopReason: st.Log.StopReason,
		StartedAt:  st.Log.StartedAt,
		EndedAt:    st.Log.EndedAt,
		Retries:    st.Log.RetryCount,
	}
	if err := s.appendLine(runIndex, entry); err != nil {
		return err
	}
	s.logger.Info("run saved", "runId", st.Log.RunID, "status", st.Log.Status)
	return nil
}

// SaveOutcome persists a run that left the orchestrator: the bundle
// always, plus a paused snapshot for suspended runs. Terminal runs drop
// any stale paused snapshot and gain a benchmark record.
func (s *Store) SaveOutcome(st *pipeline.State) error {
	if err := s.SaveRun(st); err != nil {
		return err
	}
	switch st.Log.Status {
	case pipeline.StatusNeedsApproval:
		return s.SavePaused(st)
	case pipeline.StatusComplete, pipeline.StatusStopped:
		if err := s.DeletePaused(st.Log.RunID); err != nil {
			var nf *NotFoundError
			if !errors.As(err, &nf) {
				return err
			}
		}
		return s.AppendBench(BenchFromLog(st.Log))
	}
	return nil
}

// LoadRun reads a stored run bundle.
func (s *Store) LoadRun(runID string) (*Bundle, error) {
	var bundle Bundle
	path := filepath.Join(s.root, runsDir, runID, bundleFile)
	if err := readJSON(path, &bundle); err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, err
	}
	return &bundle, nil
}

// ListRuns returns the most recent index entries, newest last. limit <= 0
// returns all.
func (s *Store) ListRuns(limit int) ([]IndexEntry, error) {
	return readLines[IndexEntry](filepath.Join(s.root, runIndex), limit)
}

// AppendEval appends a suite result to the eval history.
func (s *Store) AppendEval(result evals.SuiteResult) error {
	return s.appendLine(evalIndex, EvalRecord{Timestamp: time.Now().UTC(), Result: result})
}

// EvalHistory returns the most recent eval records, newest last. limit <= 0
// returns all.
func (s *Store) EvalHistory(limit int) ([]EvalRecord, error) {
	return readLines[EvalRecord](filepath.Join(s.root, evalIndex), limit)
}

// AppendBench appends a benchmark record to the benchmark history.
func (s *Store) AppendBench(rec BenchRecord) error {
	return s.appendLine(benchIndex, rec)
}

// BenchHistory returns the most recent benchmark records, newest last.
// limit <= 0 returns all.
func (s *Store) BenchHistory(limit int) ([]BenchRecord, error) {
	return readLines[BenchRecord](filepath.Join(s.root, benchIndex), limit)
}

func (s *Store) appendLine(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", name, err)
	}
	path := filepath.Join(s.root, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to %q: %w", path, err)
	}
	return nil
}

func readLines[T any](path string, limit int) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return nil, fmt.Errorf("failed to parse %q: %w", path, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// writeJSON writes to a temp file in the target directory and renames it
// into place, so a crash mid-write never leaves a torn record behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %q: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %q: %w", path, err)
	}
	return nil
}
