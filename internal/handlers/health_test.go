package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/uplay-sg/api/internal/domain"
)

type stubHealthRepo struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepo) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthzReportsLiveness(t *testing.T) {
	started := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	handler := NewHealthHandlers(WithHealthBuildInfo(BuildInfo{
		Version:     "1.4.0",
		CommitSHA:   "abc1234",
		Environment: "production",
		StartedAt:   started,
	}))
	handler.now = func() time.Time { return started.Add(90 * time.Second) }

	rr := httptest.NewRecorder()
	handler.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %q", resp.Status)
	}
	if resp.Version != "1.4.0" || resp.CommitSHA != "abc1234" {
		t.Fatalf("unexpected build info %+v", resp)
	}
	if resp.Uptime != "1m30s" {
		t.Fatalf("expected uptime 1m30s, got %q", resp.Uptime)
	}
}

func TestReadyzHealthyDependencies(t *testing.T) {
	repo := &stubHealthRepo{
		report: domain.SystemHealthReport{
			Status: domain.HealthStatusOK,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
			},
		},
	}

	handler := NewHealthHandlers(WithHealthRepository(repo))

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Checks["firestore"].Status != domain.HealthStatusOK {
		t.Fatalf("expected firestore check ok, got %+v", resp.Checks)
	}
}

func TestReadyzDegradedDependencyMapsTo503(t *testing.T) {
	repo := &stubHealthRepo{
		report: domain.SystemHealthReport{
			Status: domain.HealthStatusDegraded,
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusError, Error: "deadline exceeded"},
			},
		},
	}

	handler := NewHealthHandlers(WithHealthRepository(repo))

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestReadyzCollectFailure(t *testing.T) {
	repo := &stubHealthRepo{err: errors.New("collector broken")}

	handler := NewHealthHandlers(WithHealthRepository(repo))

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestReadyzWithoutRepository(t *testing.T) {
	handler := NewHealthHandlers()

	rr := httptest.NewRecorder()
	handler.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
