package models

import "time"

// Incident groups one or more anomalies for triage. Created by an operator or
// the demo workflow; mutated when analysis completes or status changes; never
// deleted within a session.
type Incident struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Status          IncidentStatus   `json:"status"`
	Severity        Severity         `json:"severity"`
	Service         string           `json:"service"`
	RootCause       string           `json:"root_cause,omitempty"`
	AIExplanation   string           `json:"ai_explanation,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	AnomalyIDs      []string         `json:"anomaly_ids"`
}

// Recommendation is one AI-proposed remediation attached to an incident.
type Recommendation struct {
	Action      string    `json:"action"`
	Description string    `json:"description"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Impact      string    `json:"impact"`
}

// Action is a proposed remediation step tied to an incident, gated by human
// approval. Status transitions exactly once out of pending; approved and
// rejected are final.
type Action struct {
	ID          string       `json:"id"`
	IncidentID  string       `json:"incident_id"`
	Action      string       `json:"action"`
	Description string       `json:"description"`
	RiskLevel   RiskLevel    `json:"risk_level"`
	Impact      string       `json:"impact"`
	Status      ActionStatus `json:"status"`
	ApprovedBy  string       `json:"approved_by,omitempty"`
	ExecutedAt  *time.Time   `json:"executed_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Severity captures impact levels for anomalies and incidents.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel classifies how disruptive a remediation action may be.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IncidentStatus enumerates the incident lifecycle.
type IncidentStatus string

const (
	IncidentOpen          IncidentStatus = "open"
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentResolved      IncidentStatus = "resolved"
)

// ActionStatus enumerates the approval lifecycle of an action.
type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionApproved ActionStatus = "approved"
	ActionRejected ActionStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s ActionStatus) Terminal() bool {
	return s == ActionApproved || s == ActionRejected
}
