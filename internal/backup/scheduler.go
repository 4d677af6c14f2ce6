package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

// Scheduler triggers scheduled backups on a cron expression. Exclusivity
// comes from the manager's single-flight flag, not from the cron library.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewScheduler wires a cron entry to the manager.
func NewScheduler(schedule string, mgr *Manager) (*Scheduler, error) {
	c := cron.New()
	log := slog.Default().With("component", "backup")

	_, err := c.AddFunc(schedule, func() {
		record, err := mgr.RunBackup(context.Background(), domain.BackupScheduled)
		if errors.Is(err, ErrBackupInProgress) {
			log.Warn("Scheduled backup skipped, job already running")
			return
		}
		if err != nil {
			log.Error("Scheduled backup could not start", "error", err)
			return
		}
		log.Debug("Scheduled backup finished", "filename", record.Filename, "status", record.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Start begins cron scheduling.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running entry callback to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
