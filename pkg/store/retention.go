package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls automatic pruning of stored runs.
type RetentionConfig struct {
	// RetentionDays is the number of days to keep run directories.
	// 0 means keep runs forever.
	RetentionDays int `yaml:"retention_days"`

	// MaxRuns is the maximum number of run directories to keep.
	// 0 means unlimited.
	MaxRuns int `yaml:"max_runs"`

	// PruneSchedule is a cron expression, e.g. "0 3 * * *" for daily at
	// 3 AM. Empty disables scheduled pruning.
	PruneSchedule string `yaml:"prune_schedule"`
}

// DefaultRetentionConfig returns the default retention settings.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces the retention policy on stored run directories. Paused
// runs are never pruned; a suspended run waits for its human however long
// that takes.
type Pruner struct {
	store  *Store
	config RetentionConfig
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a retention pruner over the store.
func NewPruner(s *Store, config RetentionConfig) *Pruner {
	return &Pruner{
		store:  s,
		config: config,
		logger: s.logger.With("component", "store.retention"),
		cron:   cron.New(),
	}
}

// Prune deletes run directories first by age, then by count, and returns
// the number of runs removed.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	runs, err := p.listRunDirs()
	if err != nil {
		return 0, err
	}
	paused, err := p.pausedSet()
	if err != nil {
		return 0, err
	}

	deleted := 0
	var kept []runDir

	if p.config.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(p.config.RetentionDays) * 24 * time.Hour)
		for _, r := range runs {
			if ctx.Err() != nil {
				return deleted, ctx.Err()
			}
			if r.modTime.Before(cutoff) && !paused[r.id] {
				if err := p.remove(r); err != nil {
					return deleted, err
				}
				deleted++
				continue
			}
			kept = append(kept, r)
		}
		runs = kept
	}

	if p.config.MaxRuns > 0 && len(runs) > p.config.MaxRuns {
		// Oldest first.
		sort.Slice(runs, func(i, j int) bool { return runs[i].modTime.Before(runs[j].modTime) })
		excess := len(runs) - p.config.MaxRuns
		for _, r := range runs[:excess] {
			if ctx.Err() != nil {
				return deleted, ctx.Err()
			}
			if paused[r.id] {
				continue
			}
			if err := p.remove(r); err != nil {
				return deleted, err
			}
			deleted++
		}
	}

	if deleted > 0 {
		p.logger.Info("retention pruning completed", "deleted", deleted)
	}
	return deleted, nil
}

// Start schedules pruning per the configured cron expression and stops
// when the context is cancelled. It does nothing when no schedule is set.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.PruneSchedule == "" {
		p.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(p.config.PruneSchedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.PruneSchedule, err)
	}

	if _, err := p.cron.AddFunc(p.config.PruneSchedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("retention scheduler started",
		"schedule", p.config.PruneSchedule,
		"retention_days", p.config.RetentionDays,
		"max_runs", p.config.MaxRuns,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("retention scheduler stopped")
	}
}

type runDir struct {
	id      string
	path    string
	modTime time.Time
}

func (p *Pruner) listRunDirs() ([]runDir, error) {
	root := filepath.Join(p.store.root, runsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list run directories: %w", err)
	}

	var runs []runDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		runs = append(runs, runDir{
			id:      e.Name(),
			path:    filepath.Join(root, e.Name()),
			modTime: info.ModTime(),
		})
	}
	return runs, nil
}

func (p *Pruner) pausedSet() (map[string]bool, error) {
	ids, err := p.store.ListPaused()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (p *Pruner) remove(r runDir) error {
	if err := os.RemoveAll(r.path); err != nil {
		return fmt.Errorf("failed to prune run %q: %w", r.id, err)
	}
	p.logger.Debug("pruned run", "runId", r.id)
	return nil
}
