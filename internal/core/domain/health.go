// Package domain holds the shared health, backup, and alert data model.
package domain

import "time"

// ServiceStatus represents the observed health state of a single dependency.
type ServiceStatus string

const (
	StatusHealthy   ServiceStatus = "healthy"
	StatusUnhealthy ServiceStatus = "unhealthy"
	StatusWarning   ServiceStatus = "warning"
)

// HealthResult is one probe observation. Results are immutable; a new
// observation for the same service supersedes the previous one.
type HealthResult struct {
	ServiceName    string        `json:"service_name"`
	Status         ServiceStatus `json:"status"`
	ResponseTimeMs int64         `json:"response_time_ms,omitempty"`
	Error          string        `json:"error,omitempty"`
	ObservedAt     time.Time     `json:"observed_at"`
}

// HealthSummary aggregates counts across one snapshot.
type HealthSummary struct {
	TotalServices  int `json:"total_services"`
	HealthyCount   int `json:"healthy_count"`
	UnhealthyCount int `json:"unhealthy_count"`
}

// HealthSnapshot is the latest result per service, ordered by service name,
// plus the computed summary. Owned by the orchestrator; consumers receive
// value copies.
type HealthSnapshot struct {
	Services []HealthResult `json:"services"`
	Summary  HealthSummary  `json:"summary"`
	TakenAt  time.Time      `json:"taken_at"`
}
