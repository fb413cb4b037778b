package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for multi-case operations such as
// eval suites.
type ProgressReporter interface {
	Start(total int)
	Step(label string)
	Finish()
}

// barProgress is a single-line text progress bar.
type barProgress struct {
	mu      sync.Mutex
	total   int
	current int
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a progress reporter writing to w, or
// os.Stderr when w is nil so it never mixes with formatted output.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &barProgress{writer: w}
}

// Start initializes the bar with the total number of steps.
func (p *barProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.current = 0
	p.started = time.Now()
	p.render("")
}

// Step advances the bar by one completed step.
func (p *barProgress) Step(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	p.render(label)
}

// Finish completes the bar and terminates the line.
func (p *barProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.render("")
	fmt.Fprintln(p.writer)
}

func (p *barProgress) render(label string) {
	if p.total == 0 {
		return
	}
	const width = 30
	filled := width * p.current / p.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	elapsed := time.Since(p.started).Round(100 * time.Millisecond)
	fmt.Fprintf(p.writer, "\r[%s] %d/%d %s %s", bar, p.current, p.total, elapsed, label)
}

// noProgress is the reporter used when progress output is disabled.
type noProgress struct{}

func (noProgress) Start(int)   {}
func (noProgress) Step(string) {}
func (noProgress) Finish()     {}

// NoProgress returns a reporter that outputs nothing.
func NoProgress() ProgressReporter { return noProgress{} }
