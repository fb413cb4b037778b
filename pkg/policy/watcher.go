package policy

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a policy file for changes and delivers reloaded policies
// to a callback. Rapid successive writes are debounced so editors that
// write-then-rename do not trigger reload storms.
type Watcher struct {
	path     string
	interval time.Duration
	onReload func(Policy)
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	timer   *time.Timer
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// DefaultDebounceInterval is the delay between the last observed file event
// and the reload attempt.
const DefaultDebounceInterval = 250 * time.Millisecond

// NewWatcher creates a watcher for the given policy file. onReload is
// invoked with the freshly loaded policy after each successful reload;
// reload failures are logged and the previous policy stays in effect.
func NewWatcher(path string, onReload func(Policy), logger *slog.Logger) (*Watcher, error) {
	if onReload == nil {
		return nil, fmt.Errorf("policy watcher requires a reload callback")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		interval: DefaultDebounceInterval,
		onReload: onReload,
		logger:   logger.With("component", "policy.watcher"),
		watcher:  fw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Watching the parent directory rather than the file
// itself keeps the watch alive across atomic rename-based saves.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("policy watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	go w.loop()

	w.logger.Info("policy watcher started", "path", w.path)
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) loop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("policy watcher error", "error", err)
		}
	}
}

// scheduleReload arms (or re-arms) the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, w.reload)
}

func (w *Watcher) reload() {
	p, err := Load(w.path)
	if err != nil {
		w.logger.Warn("policy reload failed, keeping previous policy",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.logger.Info("policy reloaded", "path", w.path)
	w.onReload(p)
}
