package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"grimm.is/opnwatch/internal/clock"
)

// Status is the aggregated health of all instances.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusPending   Status = "pending"
)

// Check is the latest evaluation of one instance.
type Check struct {
	Instance    string    `json:"instance"`
	Report      Report    `json:"report"`
	LastChecked time.Time `json:"last_checked"`
}

// Summary is the document served by Handler.
type Summary struct {
	Status    Status    `json:"status"`
	Checks    []Check   `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker keeps the latest Report per instance. It is written by the
// polling loop and read by the HTTP listener.
type Tracker struct {
	mu     sync.RWMutex
	checks map[string]Check
	clock  clock.Clock
}

// NewTracker creates an empty tracker.
func NewTracker(clk clock.Clock) *Tracker {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	return &Tracker{
		checks: make(map[string]Check),
		clock:  clk,
	}
}

// Record stores the report for an instance.
func (t *Tracker) Record(instance string, r Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checks[instance] = Check{Instance: instance, Report: r, LastChecked: t.clock.Now()}
}

// AllClear reports whether at least one instance was checked and none
// has a problem.
func (t *Tracker) AllClear() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.checks) == 0 {
		return false
	}
	for _, c := range t.checks {
		if c.Report.HasProblem {
			return false
		}
	}
	return true
}

// Summary returns the current aggregated state, instances sorted by name.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{Status: StatusHealthy, Timestamp: t.clock.Now()}
	if len(t.checks) == 0 {
		s.Status = StatusPending
	}
	for _, c := range t.checks {
		s.Checks = append(s.Checks, c)
		if c.Report.HasProblem {
			s.Status = StatusUnhealthy
		}
	}
	sort.Slice(s.Checks, func(i, j int) bool { return s.Checks[i].Instance < s.Checks[j].Instance })
	return s
}

// Handler serves the summary as JSON, 503 when any instance has a problem.
func (t *Tracker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := t.Summary()

		w.Header().Set("Content-Type", "application/json")
		if summary.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(summary)
	}
}

// LivenessHandler returns a simple liveness probe handler.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
