// Package health provides liveness and readiness checks for the HTTP
// server: the store must be writable and the configured provider usable
// before the server accepts run requests.
package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc checks one component, returning nil when healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one component check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message carries the failure detail for unhealthy components.
	Message string `json:"message,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration,omitempty"`
}

// Status aggregates component checks.
type Status struct {
	// Status is "ok", "ready", or "degraded".
	Status string `json:"status"`

	// Checks holds the per-component results for readiness.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Checker runs registered component checks with a per-check timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a checker. timeout bounds each component check; zero means
// 5 seconds.
func New(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds or replaces a named component check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Liveness reports process liveness. It never runs component checks.
func (c *Checker) Liveness(context.Context) Status {
	return Status{Status: "ok", Timestamp: time.Now().UTC()}
}

// Readiness runs every registered check and aggregates the results. Any
// unhealthy component degrades the overall status.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	status := Status{
		Status:    "ready",
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().UTC(),
	}
	for name, fn := range checks {
		status.Checks[name] = c.run(ctx, fn)
		if status.Checks[name].Status != "ok" {
			status.Status = "degraded"
		}
	}
	return status
}

func (c *Checker) run(ctx context.Context, fn CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	result := CheckResult{Status: "ok", Duration: time.Since(start)}
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
	}
	return result
}
