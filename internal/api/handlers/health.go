package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"
)

// HealthCheck represents the readiness report of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name     string
	fn       CheckFunc
	optional bool
}

// HealthChecker runs readiness probes against the server's dependencies.
type HealthChecker struct {
	checks    []namedCheck
	version   string
	gitCommit string
	timeout   time.Duration
}

func NewHealthChecker(version, gitCommit string) *HealthChecker {
	return &HealthChecker{version: version, gitCommit: gitCommit, timeout: 2 * time.Second}
}

// AddCheck registers a probe whose failure makes the server unready.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) *HealthChecker {
	h.checks = append(h.checks, namedCheck{name: name, fn: fn})
	return h
}

// AddOptionalCheck registers a probe whose failure only degrades the report.
func (h *HealthChecker) AddOptionalCheck(name string, fn CheckFunc) *HealthChecker {
	h.checks = append(h.checks, namedCheck{name: name, fn: fn, optional: true})
	return h
}

// Readyz answers 200 while every required check passes and 503 otherwise.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Context already cancelled: the server is shutting down.
		if r.Context().Err() != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "shutting_down"})
			return
		}

		checks := make(map[string]CheckResult, len(h.checks))
		overall := "ready"
		status := http.StatusOK

		sorted := append([]namedCheck(nil), h.checks...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

		for _, c := range sorted {
			result := h.run(r.Context(), c.fn)
			switch {
			case result.Status == "pass":
			case c.optional:
				result.Status = "warn"
				if overall == "ready" {
					overall = "degraded"
				}
			default:
				overall = "unavailable"
				status = http.StatusServiceUnavailable
			}
			checks[c.name] = result
		}

		if status != http.StatusOK {
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, status, HealthCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func (h *HealthChecker) run(ctx context.Context, fn CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	result := CheckResult{Status: "pass", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = "fail"
		result.Message = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			result.Message = "timed out after " + h.timeout.String()
		}
	}
	return result
}

// Healthz is the liveness probe; it never touches dependencies.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
}

type healthResponse struct {
	Status string `json:"status"`
}
