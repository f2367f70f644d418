package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Check reports the current status of a component on demand.
type Check func() Status

// Monitor tracks the health of named components. It is safe for
// concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checks   map[string]Check
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checks:   make(map[string]Check),
	}
}

// Update stores status for name, replacing any check registered under it.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
	m.statuses[name] = status
}

// UpdateHealthy marks name as healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy marks name as unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded marks name as degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// AddCheck registers check under name, replacing any pushed status.
func (m *Monitor) AddCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	m.checks[name] = check
}

// Get returns the current status for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	status, ok := m.statuses[name]
	check, hasCheck := m.checks[name]
	m.mu.RUnlock()

	if hasCheck {
		return evaluate(name, check), true
	}
	return status, ok
}

// Remove stops tracking name
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	delete(m.checks, name)
}

// Names returns the tracked component names in sorted order.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.statuses)+len(m.checks))
	for name := range m.statuses {
		names = append(names, name)
	}
	for name := range m.checks {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sort.Strings(names)
	return names
}

// AggregateHealth evaluates every component and combines the results
// under systemName. Sub-statuses are ordered by component name.
func (m *Monitor) AggregateHealth(systemName string) Status {
	names := m.Names()
	subs := make([]Status, 0, len(names))
	for _, name := range names {
		if status, ok := m.Get(name); ok {
			subs = append(subs, status)
		}
	}
	return Aggregate(systemName, subs)
}

// Handler serves AggregateHealth(systemName) as JSON. Unhealthy answers
// 503 Service Unavailable.
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := m.AggregateHealth(systemName)
		code := http.StatusOK
		if status.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}

func evaluate(name string, check Check) Status {
	status := check()
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	return status
}
