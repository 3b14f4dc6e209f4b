package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/autonexops/autonex-console/internal/approval"
	"github.com/autonexops/autonex-console/internal/config"
	"github.com/autonexops/autonex-console/internal/models"
	"github.com/autonexops/autonex-console/internal/orchestrator"
	"github.com/autonexops/autonex-console/internal/poller"
	"github.com/autonexops/autonex-console/internal/repo"
	"github.com/autonexops/autonex-console/internal/store"
)

// ConsoleService ties the session store, the view pollers, the approval gate
// and the demo workflow together behind one facade consumed by the operator
// HTTP surface.
//
// Each view owns one poller with its own interval; pollers run independently
// with no cross-ordering guarantee. Switching the metrics target stops the
// old poller and starts a new one, and the store's selection fencing discards
// any result that arrives for a stale target.
type ConsoleService struct {
	logger   *slog.Logger
	client   *repo.TelemetryClient
	store    *store.SessionStore
	approver *approval.Approver
	demo     *orchestrator.Orchestrator
	polling  config.PollingConfig

	mu         sync.Mutex
	baseCtx    context.Context
	static     []stopper
	timeseries *poller.Poller[[]models.MetricSample]
}

type stopper interface{ Stop() }

// New constructs the console facade.
func New(
	logger *slog.Logger,
	client *repo.TelemetryClient,
	sessionStore *store.SessionStore,
	approver *approval.Approver,
	demo *orchestrator.Orchestrator,
	polling config.PollingConfig,
) *ConsoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleService{
		logger:   logger,
		client:   client,
		store:    sessionStore,
		approver: approver,
		demo:     demo,
		polling:  polling,
	}
}

// Start launches the background pollers. ctx bounds their lifetime and also
// anchors demo runs, which must outlive the HTTP request that starts them.
func (s *ConsoleService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return
	}
	s.baseCtx = ctx

	dashboard := poller.New("dashboard", s.polling.Dashboard,
		s.client.DashboardStats, s.store.SetDashboardStats, nil, s.logger)
	latest := poller.New("latest_metrics", s.polling.Metrics,
		s.client.LatestMetrics, s.store.ReplaceLatestMetrics, nil, s.logger)
	anomalies := poller.New("anomalies", s.polling.Anomalies,
		func(ctx context.Context) ([]models.Anomaly, error) {
			return s.client.ListAnomalies(ctx, 24, 100)
		},
		s.store.ReplaceAnomalies, nil, s.logger)
	incidents := poller.New("incidents", s.polling.Incidents,
		func(ctx context.Context) ([]models.Incident, error) {
			return s.client.ListIncidents(ctx, "", 50)
		},
		s.store.ReplaceIncidents, nil, s.logger)
	demoStatus := poller.New("demo_status", s.polling.DemoStatus,
		s.client.DemoStatus, s.store.SetDemoStatus, nil, s.logger)

	dashboard.Start(ctx)
	latest.Start(ctx)
	anomalies.Start(ctx)
	incidents.Start(ctx)
	demoStatus.Start(ctx)
	s.static = []stopper{dashboard, latest, anomalies, incidents, demoStatus}
}

// Stop cancels all pollers.
func (s *ConsoleService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.static {
		p.Stop()
	}
	s.static = nil
	if s.timeseries != nil {
		s.timeseries.Stop()
		s.timeseries = nil
	}
}

// Overview returns the current session snapshot.
func (s *ConsoleService) Overview() store.Snapshot {
	return s.store.Snapshot()
}

// Timeseries is a read-through to the backend for ad-hoc range queries.
func (s *ConsoleService) Timeseries(ctx context.Context, service string, hours int) ([]models.MetricSample, error) {
	return s.client.Timeseries(ctx, service, hours)
}

// SelectService switches the metrics view to a new target service: the old
// poller is stopped, a new one starts against the new target, and any
// in-flight result for the old target is discarded by the store's fencing.
func (s *ConsoleService) SelectService(ctx context.Context, service string) error {
	known, err := s.client.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("select service: %w", err)
	}
	if !slices.Contains(known, service) {
		return fmt.Errorf("select service: unknown service %q", service)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx == nil {
		return fmt.Errorf("select service: console not started")
	}
	if s.store.SelectedService() == service {
		return nil
	}
	s.store.SelectService(service)
	if s.timeseries != nil {
		s.timeseries.Stop()
	}
	target := service
	p := poller.New("timeseries", s.polling.Metrics,
		func(ctx context.Context) ([]models.MetricSample, error) {
			return s.client.Timeseries(ctx, target, 1)
		},
		func(samples []models.MetricSample) {
			s.store.ReplaceTimeseries(target, samples)
		},
		nil, s.logger)
	p.Start(s.baseCtx)
	s.timeseries = p
	return nil
}

// SelectIncident sets the current incident and fetches its actions. A fetch
// that loses a race with a newer selection is discarded by the store.
func (s *ConsoleService) SelectIncident(ctx context.Context, id string) error {
	if err := s.store.SelectIncident(id); err != nil {
		return fmt.Errorf("select incident %s: %w", id, err)
	}
	actions, err := s.client.ListActions(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch actions for %s: %w", id, err)
	}
	s.store.ReplaceActions(id, actions)
	return nil
}

// ApproveAction commits an approval through the state machine.
func (s *ConsoleService) ApproveAction(ctx context.Context, actionID, approvedBy string) error {
	return s.approver.Approve(ctx, actionID, approvedBy)
}

// RejectAction commits a rejection through the state machine.
func (s *ConsoleService) RejectAction(ctx context.Context, actionID string) error {
	return s.approver.Reject(ctx, actionID)
}

// ResolveIncident marks an incident resolved on the backend and refreshes the
// incident snapshot so the view converges before the next poll.
func (s *ConsoleService) ResolveIncident(ctx context.Context, incidentID string) error {
	if err := s.client.UpdateIncidentStatus(ctx, incidentID, models.IncidentResolved); err != nil {
		return err
	}
	incidents, err := s.client.ListIncidents(ctx, "", 50)
	if err != nil {
		s.logger.Warn("incident refresh failed", slog.Any("error", err))
		return nil
	}
	s.store.ReplaceIncidents(incidents)
	return nil
}

// StartDemo begins a demo run anchored to the service lifetime, not the
// requesting call.
func (s *ConsoleService) StartDemo() (string, error) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		return "", fmt.Errorf("start demo: console not started")
	}
	return s.demo.Start(ctx)
}

// DemoReport returns the state of the current or most recent demo run.
func (s *ConsoleService) DemoReport() orchestrator.Report {
	return s.demo.Report()
}

// ClearFailure clears the injected fault on the backend.
func (s *ConsoleService) ClearFailure(ctx context.Context) error {
	return s.client.ClearFailure(ctx)
}

// Healthy probes backend reachability with a cheap status read.
func (s *ConsoleService) Healthy(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := s.client.DemoStatus(probeCtx)
	return err
}

// ApprovalLatencyP95 exposes the decision round-trip p95 for periodic logging.
func (s *ConsoleService) ApprovalLatencyP95() time.Duration {
	return s.approver.LatencyP95()
}
