package domain

import "time"

// AlertLevel classifies alert severity.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// AlertEvent is a transient event handed to the dispatcher. It is not
// persisted beyond delivery and the per-user notification cache.
type AlertEvent struct {
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Service   string     `json:"service"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notification is the cached per-user copy of a delivered alert.
type Notification struct {
	ID        string     `json:"id"`
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Service   string     `json:"service"`
	Timestamp time.Time  `json:"timestamp"`
}

// DispatchResult aggregates the settled outcomes of one alert fan-out.
type DispatchResult struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
	Total        int `json:"total"`
}
