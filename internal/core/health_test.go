package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mailroom/internal/config"
)

// --- Mock Health Probe ---

// mockHealthProbe implements HealthProbe for testing.
type mockHealthProbe struct {
	name     string
	checkErr error
	// delay simulates slow subsystems; Check blocks for this duration.
	delay time.Duration
	// panicValue, when set, makes Check panic.
	panicValue any
}

func (m *mockHealthProbe) Name() string { return m.name }

func (m *mockHealthProbe) Check(ctx context.Context) error {
	if m.panicValue != nil {
		panic(m.panicValue)
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.checkErr
}

// --- Helper ---

func newTestServerForHealth(t *testing.T, probes []HealthProbe) *Server {
	t.Helper()
	cfg := &config.Config{Environment: "local"}
	srv, err := NewServer(cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.HealthProbes = probes
	return srv
}

func doHealthRequest(srv *Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, req)
	return rec
}

// --- Tests ---

func TestHandleHealth_AllHealthy(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "blacklist"},
		&mockHealthProbe{name: "templates"},
	}

	rec := doHealthRequest(newTestServerForHealth(t, probes))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Components["blacklist"].Status != "healthy" {
		t.Errorf("blacklist component = %+v", resp.Components["blacklist"])
	}
	if resp.Components["templates"].Status != "healthy" {
		t.Errorf("templates component = %+v", resp.Components["templates"])
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "blacklist"},
		&mockHealthProbe{name: "templates", checkErr: errors.New("bucket unreachable")},
	}

	rec := doHealthRequest(newTestServerForHealth(t, probes))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
	if resp.Components["blacklist"].Status != "healthy" {
		t.Errorf("healthy component misreported: %+v", resp.Components["blacklist"])
	}
	if resp.Components["templates"].Status != "unhealthy" {
		t.Errorf("unhealthy component misreported: %+v", resp.Components["templates"])
	}
	if resp.Components["templates"].Message == "" {
		t.Error("unhealthy component should carry a message")
	}
}

func TestHandleHealth_NoProbes(t *testing.T) {
	rec := doHealthRequest(newTestServerForHealth(t, nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "fast"},
		&mockHealthProbe{name: "slow", delay: 5 * time.Second},
	}

	start := time.Now()
	rec := doHealthRequest(newTestServerForHealth(t, probes))
	elapsed := time.Since(start)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if elapsed > 4*time.Second {
		t.Errorf("health check took %v; must be bounded by the probe timeout", elapsed)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Components["slow"].Status != "unhealthy" {
		t.Errorf("slow component = %+v", resp.Components["slow"])
	}
}

func TestHandleHealth_PanickingProbeIsolated(t *testing.T) {
	probes := []HealthProbe{
		&mockHealthProbe{name: "ok"},
		&mockHealthProbe{name: "broken", panicValue: "probe exploded"},
	}

	rec := doHealthRequest(newTestServerForHealth(t, probes))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Components["ok"].Status != "healthy" {
		t.Errorf("ok component = %+v", resp.Components["ok"])
	}
	if resp.Components["broken"].Status != "unhealthy" {
		t.Errorf("broken component = %+v", resp.Components["broken"])
	}
}
