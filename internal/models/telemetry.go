package models

import "time"

// MetricSample is one observation of a service's vitals, produced by the
// platform backend at a fixed cadence.
type MetricSample struct {
	Timestamp      time.Time `json:"timestamp"`
	Service        string    `json:"service"`
	CPU            float64   `json:"cpu"`
	Memory         float64   `json:"memory"`
	Latency        float64   `json:"latency"`
	ErrorRate      float64   `json:"error_rate"`
	RequestsPerSec float64   `json:"requests_per_sec"`
}

// Anomaly is a statistically flagged deviation reported by the platform's
// detection model. Immutable once observed.
type Anomaly struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	MetricType  string    `json:"metric_type"`
	Severity    Severity  `json:"severity"`
	Confidence  float64   `json:"confidence"`
	Description string    `json:"description"`
	Value       float64   `json:"value"`
	Baseline    float64   `json:"baseline"`
}

// DemoStatus reflects whether a simulated fault is currently injected.
type DemoStatus struct {
	FailureMode     bool   `json:"failure_mode"`
	AffectedService string `json:"affected_service"`
}

// ServiceHealth is a per-service health summary within dashboard stats.
type ServiceHealth struct {
	Service   string  `json:"service"`
	Status    string  `json:"status"`
	CPU       float64 `json:"cpu"`
	Memory    float64 `json:"memory"`
	Latency   float64 `json:"latency"`
	ErrorRate float64 `json:"error_rate"`
}

// DashboardStats aggregates platform-wide counts for the overview page.
type DashboardStats struct {
	ActiveIncidents int             `json:"active_incidents"`
	TotalIncidents  int             `json:"total_incidents"`
	RecentAnomalies int             `json:"recent_anomalies"`
	PendingActions  int             `json:"pending_actions"`
	ServiceHealth   []ServiceHealth `json:"service_health"`
}

// Health states reported in ServiceHealth.Status.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)
