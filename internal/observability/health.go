package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// checkTimeout bounds each dependency probe individually, so one hung
// database ping cannot eat the whole readiness budget.
const checkTimeout = 3 * time.Second

// HealthChecker aggregates readiness from the gateway's dependencies
// (database, LLM provider). Checks run concurrently; a slow one delays
// the response by at most checkTimeout.
type HealthChecker struct {
	mu      sync.RWMutex
	names   []string // Registration order, kept for stable JSON output.
	checks  map[string]func(ctx context.Context) error
	started time.Time
	logger  *slog.Logger
}

// HealthStatus is the JSON response for health/readiness endpoints.
type HealthStatus struct {
	Status string                 `json:"status"` // "ok" or "degraded"
	Uptime string                 `json:"uptime,omitempty"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of a single dependency probe.
type CheckResult struct {
	Status    string `json:"status"` // "ok" or "fail"
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// NewHealthChecker creates a HealthChecker with no checks registered.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{
		checks:  make(map[string]func(ctx context.Context) error),
		started: time.Now(),
		logger:  logger,
	}
}

// AddCheck registers a named dependency probe. Registering the same name
// again replaces the previous probe.
func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.checks[name]; !exists {
		h.names = append(h.names, name)
	}
	h.checks[name] = check
}

// CheckHealth is the liveness answer: the process is up, with its uptime.
func (h *HealthChecker) CheckHealth() HealthStatus {
	return HealthStatus{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
}

// CheckReady probes every registered dependency concurrently and returns
// aggregate readiness: "ok" only when every probe passes, "degraded"
// otherwise. Each probe gets its own timeout and reports its latency.
func (h *HealthChecker) CheckReady(ctx context.Context) HealthStatus {
	h.mu.RLock()
	names := append([]string(nil), h.names...)
	checks := make(map[string]func(ctx context.Context) error, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	status := HealthStatus{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
	if len(names) == 0 {
		return status
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(names))
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, check func(ctx context.Context) error) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			res := CheckResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "fail"
				res.Message = err.Error()
				if h.logger != nil {
					h.logger.Warn("readiness check failed",
						slog.String("check", name),
						slog.String("error", err.Error()),
					)
				}
			}

			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, checks[name])
	}
	wg.Wait()

	status.Checks = results
	for _, res := range results {
		if res.Status != "ok" {
			status.Status = "degraded"
			break
		}
	}
	return status
}
