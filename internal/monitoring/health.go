package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker tracks liveness facts for the `health` CLI command and an
// optional HTTP endpoint: last successful cycle, kill-switch state, and
// recent errors.
type HealthChecker struct {
	mu           sync.RWMutex
	lastCycle    time.Time
	lastBarClose time.Time
	killSwitchOn bool
	errors       []string
	startTime    time.Time
}

// HealthStatus is the JSON body returned by ServeHTTP and the value
// returned by Status.
type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastCycle    time.Time `json:"last_cycle"`
	LastBarClose time.Time `json:"last_bar_close"`
	KillSwitchOn bool      `json:"kill_switch_on"`
	Uptime       string    `json:"uptime"`
	Errors       []string  `json:"errors,omitempty"`
}

// NewHealthChecker returns a HealthChecker with its uptime clock started now.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors:    make([]string, 0),
		startTime: time.Now(),
	}
}

// ServeHTTP writes the current health status as JSON. The HTTP status is
// 200 when healthy, 503 when halted or degraded, and 500 when errors have
// been recorded and no 503 was already written. The `health` CLI
// command's exit code does not depend on this status.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.killSwitchOn {
		status = "halted"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else if time.Since(h.lastCycle) > time.Hour {
		status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if len(h.errors) > 0 {
		status = "unhealthy"
		w.WriteHeader(http.StatusInternalServerError)
	}

	health := HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		LastCycle:    h.lastCycle,
		LastBarClose: h.lastBarClose,
		KillSwitchOn: h.killSwitchOn,
		Uptime:       time.Since(h.startTime).String(),
		Errors:       h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// Status returns the current health status without an HTTP round-trip, for
// the `health` CLI command.
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	switch {
	case h.killSwitchOn:
		status = "halted"
	case len(h.errors) > 0:
		status = "unhealthy"
	case time.Since(h.lastCycle) > time.Hour:
		status = "degraded"
	}

	return HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		LastCycle:    h.lastCycle,
		LastBarClose: h.lastBarClose,
		KillSwitchOn: h.killSwitchOn,
		Uptime:       time.Since(h.startTime).String(),
		Errors:       h.errors,
	}
}

// RecordCycle marks a completed pipeline cycle at barClose.
func (h *HealthChecker) RecordCycle(barClose time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.lastBarClose = barClose
}

// SetKillSwitch mirrors the safety guard's kill-switch state.
func (h *HealthChecker) SetKillSwitch(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killSwitchOn = on
}

// AddError appends an error to the rolling error list, keeping the last 10.
func (h *HealthChecker) AddError(err string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, err)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}
