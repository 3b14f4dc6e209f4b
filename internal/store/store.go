// Package store holds the per-session snapshot of server-side state that the
// pollers keep fresh and the operator surface reads.
package store

import (
	"errors"
	"sync"

	"github.com/autonexops/autonex-console/internal/models"
)

// ErrUnknownIncident is returned when a selection names an incident that is
// not in the current snapshot.
var ErrUnknownIncident = errors.New("unknown incident")

// SessionStore caches the latest known incidents, the actions of the
// currently selected incident, and the view snapshots (metrics, anomalies,
// demo status, dashboard stats). Writes come only from poller results and
// from approval-triggered re-fetches; all writes that depend on a selection
// are fenced by the selection current at apply time, so late results for a
// deselected target are discarded rather than applied out of order.
type SessionStore struct {
	mu sync.RWMutex

	incidents        []models.Incident
	selectedIncident string
	actions          []models.Action

	selectedService string
	timeseries      []models.MetricSample

	latestMetrics []models.MetricSample
	anomalies     []models.Anomaly
	demoStatus    models.DemoStatus
	stats         models.DashboardStats
}

// New returns an empty session store.
func New() *SessionStore {
	return &SessionStore{}
}

// ReplaceIncidents swaps in the full incident collection in backend order
// (most recent first). If the selected incident vanished from the snapshot
// the selection and its actions are cleared.
func (s *SessionStore) ReplaceIncidents(incidents []models.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = incidents
	if s.selectedIncident == "" {
		return
	}
	for _, inc := range incidents {
		if inc.ID == s.selectedIncident {
			return
		}
	}
	s.selectedIncident = ""
	s.actions = nil
}

// SelectIncident sets the current selection and clears the stale action list.
// Selecting an id absent from the snapshot is an error, not a crash.
func (s *SessionStore) SelectIncident(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range s.incidents {
		if inc.ID == id {
			s.selectedIncident = id
			s.actions = nil
			return nil
		}
	}
	return ErrUnknownIncident
}

// SelectedIncident returns the currently selected incident id, empty when
// nothing is selected.
func (s *SessionStore) SelectedIncident() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedIncident
}

// ReplaceActions installs the action list fetched for incidentID. A result
// arriving for a since-deselected incident is discarded; the return value
// reports whether the result was applied.
func (s *SessionStore) ReplaceActions(incidentID string, actions []models.Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incidentID == "" || incidentID != s.selectedIncident {
		return false
	}
	s.actions = actions
	return true
}

// Actions returns the action list of the current selection.
func (s *SessionStore) Actions() []models.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Action(nil), s.actions...)
}

// Action looks up one action of the current selection by id.
func (s *SessionStore) Action(id string) (models.Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.actions {
		if a.ID == id {
			return a, true
		}
	}
	return models.Action{}, false
}

// Incidents returns the incident snapshot in backend order.
func (s *SessionStore) Incidents() []models.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Incident(nil), s.incidents...)
}

// SelectService switches the metrics view target.
func (s *SessionStore) SelectService(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedService == service {
		return
	}
	s.selectedService = service
	s.timeseries = nil
}

// SelectedService returns the metrics view target.
func (s *SessionStore) SelectedService() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedService
}

// ReplaceTimeseries installs samples fetched for service, discarding results
// whose target no longer matches the current selection.
func (s *SessionStore) ReplaceTimeseries(service string, samples []models.MetricSample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if service == "" || service != s.selectedService {
		return false
	}
	s.timeseries = samples
	return true
}

// Timeseries returns the samples of the selected service.
func (s *SessionStore) Timeseries() []models.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MetricSample(nil), s.timeseries...)
}

// ReplaceLatestMetrics installs the newest sample per service.
func (s *SessionStore) ReplaceLatestMetrics(samples []models.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestMetrics = samples
}

// ReplaceAnomalies installs the recent anomaly list.
func (s *SessionStore) ReplaceAnomalies(anomalies []models.Anomaly) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = anomalies
}

// SetDemoStatus installs the latest failure-injection state.
func (s *SessionStore) SetDemoStatus(status models.DemoStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.demoStatus = status
}

// SetDashboardStats installs the latest aggregate counts.
func (s *SessionStore) SetDashboardStats(stats models.DashboardStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

// Snapshot is a point-in-time copy of everything the overview page shows.
type Snapshot struct {
	Stats            models.DashboardStats `json:"stats"`
	Incidents        []models.Incident     `json:"incidents"`
	SelectedIncident string                `json:"selected_incident,omitempty"`
	Actions          []models.Action       `json:"actions"`
	SelectedService  string                `json:"selected_service,omitempty"`
	Timeseries       []models.MetricSample `json:"timeseries"`
	LatestMetrics    []models.MetricSample `json:"latest_metrics"`
	Anomalies        []models.Anomaly      `json:"anomalies"`
	DemoStatus       models.DemoStatus     `json:"demo_status"`
}

// Snapshot returns a consistent copy of the store contents.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Stats:            s.stats,
		Incidents:        append([]models.Incident(nil), s.incidents...),
		SelectedIncident: s.selectedIncident,
		Actions:          append([]models.Action(nil), s.actions...),
		SelectedService:  s.selectedService,
		Timeseries:       append([]models.MetricSample(nil), s.timeseries...),
		LatestMetrics:    append([]models.MetricSample(nil), s.latestMetrics...),
		Anomalies:        append([]models.Anomaly(nil), s.anomalies...),
		DemoStatus:       s.demoStatus,
	}
}
