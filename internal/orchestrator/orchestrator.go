// Package orchestrator drives the scripted failure-injection demo: a
// single-flight sequential workflow chaining injection, detection, incident
// creation, analysis and recommendation generation against the platform
// backend.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autonexops/autonex-console/internal/metrics"
	"github.com/autonexops/autonex-console/internal/models"
)

// Stage identifies a workflow state.
type Stage string

const (
	StageIdle              Stage = "IDLE"
	StageInjecting         Stage = "INJECTING"
	StageWaitingDetection  Stage = "WAITING_DETECTION"
	StageDetecting         Stage = "DETECTING"
	StageFetchingAnomalies Stage = "FETCHING_ANOMALIES"
	StageCreatingIncident  Stage = "CREATING_INCIDENT"
	StageAnalyzing         Stage = "ANALYZING"
	StageRecommending      Stage = "RECOMMENDING"
	StageDone              Stage = "DONE"
	StageFailed            Stage = "FAILED"
)

var (
	// ErrRunActive is returned when a run is requested while one is active.
	ErrRunActive = errors.New("demo run already active")
	// ErrFailureActive is returned when the backend reports an injected
	// failure that has not been cleared.
	ErrFailureActive = errors.New("failure already active")
	// ErrNoServices is returned when the backend knows no services to target.
	ErrNoServices = errors.New("no services available")
)

// PlatformClient is the backend surface the workflow drives.
type PlatformClient interface {
	DemoStatus(ctx context.Context) (models.DemoStatus, error)
	ListServices(ctx context.Context) ([]string, error)
	InjectFailure(ctx context.Context, service string) error
	TriggerDetection(ctx context.Context) error
	ListAnomalies(ctx context.Context, hours, limit int) ([]models.Anomaly, error)
	CreateIncident(ctx context.Context, title string, severity models.Severity, service string, anomalyIDs []string) (string, error)
	TriggerAnalysis(ctx context.Context, incidentID string) error
	TriggerRecommendation(ctx context.Context, incidentID string) error
}

// Config bounds the workflow's timing behaviour.
type Config struct {
	// DetectionDwell is the pause between injection and the detection
	// trigger, giving the fault time to surface in metrics.
	DetectionDwell time.Duration
	// AnomalyPollInterval / AnomalyPollDeadline bound the poll-until-present
	// loop that waits for the detector to surface anomalies. The deadline is
	// a hard upper bound; expiry fails the run.
	AnomalyPollInterval time.Duration
	AnomalyPollDeadline time.Duration
	// AnomalyLookback / AnomalyLimit shape the anomaly query.
	AnomalyLookback time.Duration
	AnomalyLimit    int
}

// Report is the externally visible state of the current or most recent run.
type Report struct {
	RunID       string     `json:"run_id"`
	Stage       Stage      `json:"stage"`
	Service     string     `json:"service,omitempty"`
	IncidentID  string     `json:"incident_id,omitempty"`
	AnomalyIDs  []string   `json:"anomaly_ids,omitempty"`
	FailedStage Stage      `json:"failed_stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Orchestrator executes at most one demo run at a time. Each stage's remote
// call is a single attempt with no retry; a failed stage halts the run and
// leaves prior side effects (the injected failure included) in place so the
// operator can retry downstream steps manually. Cancellation is honored at
// stage boundaries, never mid-remote-call.
type Orchestrator struct {
	logger *slog.Logger
	client PlatformClient
	cfg    Config

	mu      sync.Mutex
	running bool
	done    chan struct{}
	report  Report
}

// New constructs an idle orchestrator.
func New(logger *slog.Logger, client PlatformClient, cfg Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AnomalyPollInterval <= 0 {
		cfg.AnomalyPollInterval = 2 * time.Second
	}
	if cfg.AnomalyPollDeadline <= 0 {
		cfg.AnomalyPollDeadline = 20 * time.Second
	}
	if cfg.AnomalyLimit <= 0 {
		cfg.AnomalyLimit = 5
	}
	return &Orchestrator{
		logger: logger,
		client: client,
		cfg:    cfg,
		report: Report{Stage: StageIdle},
	}
}

// Start begins a run and returns its id. The re-entrancy guard is twofold: a
// local single-flight token, and a fresh backend demo-status read (never
// served from cache) — a run is refused while a previous injection is still
// active, before any workflow side effect fires. The workflow itself executes
// in the background; progress is observable through Report.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return "", ErrRunActive
	}
	o.running = true
	o.mu.Unlock()

	status, err := o.client.DemoStatus(ctx)
	if err != nil {
		o.finish(StageIdle, time.Time{})
		return "", fmt.Errorf("demo status check: %w", err)
	}
	if status.FailureMode {
		o.finish(StageIdle, time.Time{})
		return "", fmt.Errorf("%w (service %s)", ErrFailureActive, status.AffectedService)
	}

	runID := uuid.NewString()
	started := time.Now()
	done := make(chan struct{})
	o.mu.Lock()
	o.done = done
	o.report = Report{RunID: runID, Stage: StageInjecting, StartedAt: started}
	o.mu.Unlock()

	go func() {
		defer close(done)
		o.run(ctx, runID, started)
	}()
	return runID, nil
}

// Running reports whether a run is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Report returns the state of the current or most recent run.
func (o *Orchestrator) Report() Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.report
	r.AnomalyIDs = append([]string(nil), o.report.AnomalyIDs...)
	return r
}

// Done returns a channel closed when the current run finishes; nil when no
// run has started yet.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *Orchestrator) run(ctx context.Context, runID string, started time.Time) {
	log := o.logger.With(slog.String("run_id", runID))

	fail := func(stage Stage, err error) {
		log.Error("demo run failed", slog.String("stage", string(stage)), slog.Any("error", err))
		o.mu.Lock()
		o.report.Stage = StageFailed
		o.report.FailedStage = stage
		o.report.Error = err.Error()
		o.mu.Unlock()
		o.finish(StageFailed, started)
	}

	// INJECTING: deterministic target — the first service in the backend's
	// list, so demos are reproducible.
	services, err := o.client.ListServices(ctx)
	if err != nil {
		fail(StageInjecting, fmt.Errorf("list services: %w", err))
		return
	}
	if len(services) == 0 {
		fail(StageInjecting, ErrNoServices)
		return
	}
	target := services[0]
	o.setStage(StageInjecting, func(r *Report) { r.Service = target })
	if err := o.client.InjectFailure(ctx, target); err != nil {
		fail(StageInjecting, fmt.Errorf("inject failure: %w", err))
		return
	}
	log.Info("failure injected", slog.String("service", target))

	// WAITING_DETECTION: a pure scheduling delay, no backend call.
	o.setStage(StageWaitingDetection, nil)
	if err := o.dwell(ctx, o.cfg.DetectionDwell); err != nil {
		fail(StageWaitingDetection, err)
		return
	}

	if err := ctx.Err(); err != nil {
		fail(StageWaitingDetection, err)
		return
	}
	o.setStage(StageDetecting, nil)
	if err := o.client.TriggerDetection(ctx); err != nil {
		fail(StageDetecting, fmt.Errorf("detection trigger failed: %w", err))
		return
	}

	// FETCHING_ANOMALIES: bounded poll until the detector surfaces at least
	// one anomaly. Proceeding on an empty result would create an incident
	// with no anomaly references.
	if err := ctx.Err(); err != nil {
		fail(StageDetecting, err)
		return
	}
	o.setStage(StageFetchingAnomalies, nil)
	anomalies, err := o.awaitAnomalies(ctx)
	if err != nil {
		fail(StageFetchingAnomalies, err)
		return
	}
	anomalyIDs := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		anomalyIDs = append(anomalyIDs, a.ID)
	}
	log.Info("anomalies observed", slog.Int("count", len(anomalyIDs)))

	if err := ctx.Err(); err != nil {
		fail(StageFetchingAnomalies, err)
		return
	}
	o.setStage(StageCreatingIncident, func(r *Report) { r.AnomalyIDs = anomalyIDs })
	title := fmt.Sprintf("Performance Degradation in %s", target)
	incidentID, err := o.client.CreateIncident(ctx, title, models.SeverityCritical, target, anomalyIDs)
	if err != nil {
		fail(StageCreatingIncident, fmt.Errorf("create incident: %w", err))
		return
	}
	log.Info("incident created", slog.String("incident_id", incidentID))

	if err := ctx.Err(); err != nil {
		fail(StageCreatingIncident, err)
		return
	}
	o.setStage(StageAnalyzing, func(r *Report) { r.IncidentID = incidentID })
	if err := o.client.TriggerAnalysis(ctx, incidentID); err != nil {
		fail(StageAnalyzing, fmt.Errorf("analysis trigger failed: %w", err))
		return
	}

	if err := ctx.Err(); err != nil {
		fail(StageAnalyzing, err)
		return
	}
	o.setStage(StageRecommending, nil)
	if err := o.client.TriggerRecommendation(ctx, incidentID); err != nil {
		fail(StageRecommending, fmt.Errorf("recommendation trigger failed: %w", err))
		return
	}

	o.setStage(StageDone, nil)
	o.finish(StageDone, started)
	log.Info("demo run complete", slog.Duration("elapsed", time.Since(started)))
}

// awaitAnomalies polls the anomaly endpoint until a non-empty result or the
// configured deadline.
func (o *Orchestrator) awaitAnomalies(ctx context.Context) ([]models.Anomaly, error) {
	hours := int(o.cfg.AnomalyLookback.Hours())
	if hours < 1 {
		hours = 1
	}
	deadline := time.Now().Add(o.cfg.AnomalyPollDeadline)
	for {
		anomalies, err := o.client.ListAnomalies(ctx, hours, o.cfg.AnomalyLimit)
		if err != nil {
			return nil, fmt.Errorf("list anomalies: %w", err)
		}
		if len(anomalies) > 0 {
			return anomalies, nil
		}
		if !time.Now().Add(o.cfg.AnomalyPollInterval).Before(deadline) {
			return nil, errors.New("no anomalies produced")
		}
		if err := o.dwell(ctx, o.cfg.AnomalyPollInterval); err != nil {
			return nil, err
		}
	}
}

func (o *Orchestrator) dwell(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) setStage(stage Stage, mutate func(*Report)) {
	o.mu.Lock()
	o.report.Stage = stage
	if mutate != nil {
		mutate(&o.report)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) finish(terminal Stage, started time.Time) {
	o.mu.Lock()
	o.running = false
	if !started.IsZero() {
		now := time.Now()
		o.report.FinishedAt = &now
	}
	o.mu.Unlock()

	if started.IsZero() {
		return
	}
	outcome := metrics.OutcomeSuccess
	if terminal == StageFailed {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveDemoRun(time.Since(started), outcome)
}
