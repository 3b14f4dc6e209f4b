package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/autonexops/autonex-console/internal/approval"
	"github.com/autonexops/autonex-console/internal/config"
	"github.com/autonexops/autonex-console/internal/models"
	"github.com/autonexops/autonex-console/internal/orchestrator"
	"github.com/autonexops/autonex-console/internal/repo"
	"github.com/autonexops/autonex-console/internal/store"
)

// newBackend serves just enough of the platform API for the facade's pollers
// and request paths.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/metrics/services", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"services": []string{"api-gateway", "database"}})
	})
	mux.HandleFunc("/api/metrics/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"metrics": []models.MetricSample{}})
	})
	mux.HandleFunc("/api/metrics/timeseries", func(w http.ResponseWriter, r *http.Request) {
		service := r.URL.Query().Get("service")
		writeJSON(w, map[string]any{"metrics": []models.MetricSample{{Service: service}}})
	})
	mux.HandleFunc("/api/anomalies", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"anomalies": []models.Anomaly{}})
	})
	mux.HandleFunc("/api/incidents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"incidents": []models.Incident{{ID: "inc-1", Status: models.IncidentOpen}}})
	})
	mux.HandleFunc("/api/incidents/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("/api/actions", func(w http.ResponseWriter, r *http.Request) {
		incidentID := r.URL.Query().Get("incident_id")
		writeJSON(w, map[string]any{"actions": []models.Action{
			{ID: "act-1", IncidentID: incidentID, Status: models.ActionPending},
		}})
	})
	mux.HandleFunc("/api/demo/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.DemoStatus{})
	})
	mux.HandleFunc("/api/stats/dashboard", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.DashboardStats{TotalIncidents: 2})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newConsole(t *testing.T, baseURL string) (*ConsoleService, *store.SessionStore) {
	t.Helper()
	client := repo.NewTelemetryClient(repo.TelemetryConfig{BaseURL: baseURL, Timeout: 2 * time.Second})
	sessionStore := store.New()
	approver := approval.New(nil, client, sessionStore)
	demo := orchestrator.New(nil, client, orchestrator.Config{
		DetectionDwell:      time.Millisecond,
		AnomalyPollInterval: time.Millisecond,
		AnomalyPollDeadline: 10 * time.Millisecond,
	})
	polling := config.PollingConfig{
		Dashboard:  10 * time.Millisecond,
		Metrics:    10 * time.Millisecond,
		Anomalies:  10 * time.Millisecond,
		Incidents:  10 * time.Millisecond,
		DemoStatus: 10 * time.Millisecond,
	}
	return New(nil, client, sessionStore, approver, demo, polling), sessionStore
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPollersPopulateSnapshot(t *testing.T) {
	srv := newBackend(t)
	console, _ := newConsole(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)
	defer console.Stop()

	waitFor(t, "snapshot population", func() bool {
		snap := console.Overview()
		return snap.Stats.TotalIncidents == 2 && len(snap.Incidents) == 1
	})
}

func TestSelectServiceValidatesTarget(t *testing.T) {
	srv := newBackend(t)
	console, _ := newConsole(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)
	defer console.Stop()

	if err := console.SelectService(ctx, "ghost-service"); err == nil {
		t.Fatalf("expected an error for an unknown service")
	}
	if err := console.SelectService(ctx, "api-gateway"); err != nil {
		t.Fatalf("select known service: %v", err)
	}
}

func TestSelectServiceSwitchesTimeseriesTarget(t *testing.T) {
	srv := newBackend(t)
	console, sessionStore := newConsole(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)
	defer console.Stop()

	if err := console.SelectService(ctx, "api-gateway"); err != nil {
		t.Fatalf("select api-gateway: %v", err)
	}
	waitFor(t, "api-gateway samples", func() bool {
		ts := sessionStore.Timeseries()
		return len(ts) > 0 && ts[0].Service == "api-gateway"
	})

	if err := console.SelectService(ctx, "database"); err != nil {
		t.Fatalf("select database: %v", err)
	}
	waitFor(t, "database samples", func() bool {
		ts := sessionStore.Timeseries()
		return len(ts) > 0 && ts[0].Service == "database"
	})
	// Late results for the previous target must never reappear.
	for i := 0; i < 5; i++ {
		if ts := sessionStore.Timeseries(); len(ts) > 0 && ts[0].Service != "database" {
			t.Fatalf("stale samples surfaced for %q", ts[0].Service)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSelectIncidentLoadsActions(t *testing.T) {
	srv := newBackend(t)
	console, sessionStore := newConsole(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)
	defer console.Stop()

	waitFor(t, "incident snapshot", func() bool {
		return len(sessionStore.Incidents()) == 1
	})

	if err := console.SelectIncident(ctx, "inc-1"); err != nil {
		t.Fatalf("select incident: %v", err)
	}
	actions := sessionStore.Actions()
	if len(actions) != 1 || actions[0].IncidentID != "inc-1" {
		t.Fatalf("actions not loaded for the selection: %+v", actions)
	}

	if err := console.SelectIncident(ctx, "inc-404"); err == nil {
		t.Fatalf("expected an error for an unknown incident")
	}
}

func TestStartDemoRequiresStartedConsole(t *testing.T) {
	srv := newBackend(t)
	console, _ := newConsole(t, srv.URL)
	if _, err := console.StartDemo(); err == nil || !strings.Contains(err.Error(), "not started") {
		t.Fatalf("expected a not-started error, got %v", err)
	}
}

func TestHealthyProbesBackend(t *testing.T) {
	srv := newBackend(t)
	console, _ := newConsole(t, srv.URL)
	if err := console.Healthy(context.Background()); err != nil {
		t.Fatalf("healthy backend: %v", err)
	}

	srv.Close()
	if err := console.Healthy(context.Background()); err == nil {
		t.Fatalf("expected an error once the backend is gone")
	}
}
