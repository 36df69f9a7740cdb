// Package health aggregates readiness information from the service's
// dependencies.
package health

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Status is one subsystem's health check result.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes a single subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named checkers and runs them on demand. Registering a name
// twice replaces the earlier checker; registration order is preserved in
// CheckAll's output.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	checks map[string]Checker
}

// NewRegistry creates an empty health check registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Checker)}
}

// Register adds a named checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.checks[name]; !seen {
		r.order = append(r.order, name)
	}
	r.checks[name] = check
}

// CheckAll runs every registered checker and reports the aggregate: healthy
// only if every subsystem is.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checks := make([]Checker, 0, len(r.order))
	for _, name := range r.order {
		checks = append(checks, r.checks[name])
	}
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, 0, len(checks))
	for _, check := range checks {
		st := check(ctx)
		if !st.Healthy {
			healthy = false
		}
		statuses = append(statuses, st)
	}
	return healthy, statuses
}

// DBChecker returns a Checker that pings the database with a short timeout.
func DBChecker(db *sql.DB) Checker {
	return func(ctx context.Context) Status {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: "database", Healthy: false, Detail: err.Error()}
		}
		return Status{Name: "database", Healthy: true}
	}
}
