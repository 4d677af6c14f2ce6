package domain

import "time"

// BackupType distinguishes cron-scheduled runs from operator-triggered ones.
type BackupType string

const (
	BackupScheduled BackupType = "scheduled"
	BackupManual    BackupType = "manual"
)

// BackupStatus is the terminal outcome of a backup job.
type BackupStatus string

const (
	BackupSuccess BackupStatus = "success"
	BackupFailed  BackupStatus = "failed"
)

// BackupRecord is the append-only metadata row written when a backup job
// completes. The record is never updated; expired artifacts are deleted from
// disk but the row is kept for audit.
type BackupRecord struct {
	Filename   string       `json:"filename"    db:"filename"`
	Type       BackupType   `json:"type"        db:"type"`
	SizeBytes  int64        `json:"size_bytes"  db:"size_bytes"`
	DurationMs int64        `json:"duration_ms" db:"duration_ms"`
	Status     BackupStatus `json:"status"      db:"status"`
	Error      string       `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time    `json:"created_at"  db:"created_at"`
}
