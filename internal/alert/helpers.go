package alert

import (
	"context"
	"fmt"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

// Domain-specific alert helpers. Each applies its level thresholds and
// hands the event to SendAlert.

// ServiceTransition alerts on a health state change: newly unhealthy is a
// warning, recovery is informational.
func (d *Dispatcher) ServiceTransition(ctx context.Context, service string, healthy bool) {
	event := domain.AlertEvent{
		Level:   domain.AlertWarning,
		Service: service,
		Message: fmt.Sprintf("Service %s is unhealthy", service),
	}
	if healthy {
		event.Level = domain.AlertInfo
		event.Message = fmt.Sprintf("Service %s recovered", service)
	}
	d.SendAlert(ctx, event)
}

// BackupCompleted alerts on a finished backup job: failure is critical,
// success is informational with size and duration.
func (d *Dispatcher) BackupCompleted(ctx context.Context, record *domain.BackupRecord) {
	event := domain.AlertEvent{
		Level:   domain.AlertInfo,
		Service: "backup",
		Message: fmt.Sprintf("Backup %s completed: %d bytes in %dms",
			record.Filename, record.SizeBytes, record.DurationMs),
	}
	if record.Status == domain.BackupFailed {
		event.Level = domain.AlertCritical
		event.Message = fmt.Sprintf("Backup %s failed: %s", record.Filename, record.Error)
	}
	d.SendAlert(ctx, event)
}

// RestoreCompleted alerts on an operator-invoked restore.
func (d *Dispatcher) RestoreCompleted(ctx context.Context, filename string, restoreErr error) {
	event := domain.AlertEvent{
		Level:   domain.AlertInfo,
		Service: "backup",
		Message: fmt.Sprintf("Restore from %s completed", filename),
	}
	if restoreErr != nil {
		event.Level = domain.AlertCritical
		event.Message = fmt.Sprintf("Restore from %s failed: %v", filename, restoreErr)
	}
	d.SendAlert(ctx, event)
}

// SSLExpiry alerts on certificate expiry: <=7 days is critical, <=30 days
// a warning, anything else informational.
func (d *Dispatcher) SSLExpiry(ctx context.Context, host string, daysRemaining int) {
	level := domain.AlertInfo
	switch {
	case daysRemaining <= 7:
		level = domain.AlertCritical
	case daysRemaining <= 30:
		level = domain.AlertWarning
	}
	d.SendAlert(ctx, domain.AlertEvent{
		Level:   level,
		Service: host,
		Message: fmt.Sprintf("SSL certificate for %s expires in %d days", host, daysRemaining),
	})
}

// Started announces that monitoring is up.
func (d *Dispatcher) Started(ctx context.Context) {
	d.SendAlert(ctx, domain.AlertEvent{
		Level:   domain.AlertInfo,
		Service: "opsdeck",
		Message: "Monitoring started",
	})
}
