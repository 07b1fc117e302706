package handlers

import (
	"net/http"
	"time"

	domain "github.com/uplay-sg/api/internal/domain"
	"github.com/uplay-sg/api/internal/repositories"
)

// BuildInfo describes the running binary for health reporting.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build  BuildInfo
	report repositories.HealthRepository
	now    func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo attaches build metadata to health responses.
func WithHealthBuildInfo(build BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthRepository wires the dependency probes evaluated by /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.report = repo
	}
}

// NewHealthHandlers constructs health handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.now().UTC()
	}
	return h
}

type healthResponse struct {
	Status      string                      `json:"status"`
	Version     string                      `json:"version,omitempty"`
	CommitSHA   string                      `json:"commitSha,omitempty"`
	Environment string                      `json:"environment,omitempty"`
	Uptime      string                      `json:"uptime"`
	Timestamp   string                      `json:"timestamp"`
	Checks      map[string]healthCheckEntry `json:"checks,omitempty"`
}

type healthCheckEntry struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Healthz reports process liveness without probing dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	writeJSONResponse(w, http.StatusOK, healthResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).String(),
		Timestamp:   now.Format(time.RFC3339),
	})
}

// Readyz probes dependencies and reports aggregated readiness. A degraded or
// erroring dependency set maps to 503 so load balancers stop routing.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	resp := healthResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).String(),
		Timestamp:   now.Format(time.RFC3339),
	}

	status := http.StatusOK
	if h.report != nil {
		report, err := h.report.Collect(r.Context())
		if err != nil {
			resp.Status = domain.HealthStatusError
			writeJSONResponse(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Status = report.Status
		if len(report.Checks) > 0 {
			resp.Checks = make(map[string]healthCheckEntry, len(report.Checks))
			for name, check := range report.Checks {
				resp.Checks[name] = healthCheckEntry{
					Status:  check.Status,
					Detail:  check.Detail,
					Error:   check.Error,
					Latency: check.Latency.String(),
				}
			}
		}
		if report.Status != domain.HealthStatusOK {
			status = http.StatusServiceUnavailable
		}
	}

	writeJSONResponse(w, status, resp)
}
