// Package backup runs the backup lifecycle: single-flight dump jobs,
// append-only history, retention cleanup, and operator-invoked restore.
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
	"github.com/opsdeck/opsdeck/internal/metrics"
)

var (
	// ErrBackupInProgress is returned when a trigger arrives while a job
	// is already running. The trigger is ignored, not queued.
	ErrBackupInProgress = errors.New("backup already in progress")

	// ErrInvalidFilename is returned for restore filenames that escape the
	// artifact directory.
	ErrInvalidFilename = errors.New("invalid backup filename")
)

// Config holds backup settings.
type Config struct {
	Dir            string
	Retention      time.Duration
	DumpTimeout    time.Duration
	RestoreTimeout time.Duration
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
}

// Alerter receives backup and restore completion events.
type Alerter interface {
	BackupCompleted(ctx context.Context, record *domain.BackupRecord)
	RestoreCompleted(ctx context.Context, filename string, restoreErr error)
}

// Manager owns the single-flight job state. The running flag is the only
// explicit mutual-exclusion state in the system.
type Manager struct {
	cfg     Config
	repo    storage.BackupRepository
	alerter Alerter
	log     *slog.Logger
	running atomic.Bool

	// dump and restore are swapped out in tests
	dump    func(ctx context.Context, path string) error
	restore func(ctx context.Context, path string) error
	now     func() time.Time
}

// NewManager creates a backup manager.
func NewManager(cfg Config, repo storage.BackupRepository, alerter Alerter) *Manager {
	if cfg.DumpTimeout == 0 {
		cfg.DumpTimeout = 5 * time.Minute
	}
	if cfg.RestoreTimeout == 0 {
		cfg.RestoreTimeout = 10 * time.Minute
	}
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}

	m := &Manager{
		cfg:     cfg,
		repo:    repo,
		alerter: alerter,
		log:     slog.Default().With("component", "backup"),
		now:     time.Now,
	}
	m.dump = m.pgDump
	m.restore = m.pgRestore
	return m
}

// Running reports whether a job is currently in flight.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// RunBackup executes one backup job. Job failure is reported through the
// returned record, not the error; the error is reserved for the
// single-flight rejection.
func (m *Manager) RunBackup(ctx context.Context, typ domain.BackupType) (*domain.BackupRecord, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrBackupInProgress
	}
	defer m.running.Store(false)

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	// Timestamp plus a short random suffix keeps filenames unique even
	// when two jobs start within the same second.
	filename := fmt.Sprintf("backup-%s-%s-%s.dump",
		typ, m.now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	path := filepath.Join(m.cfg.Dir, filename)

	dumpCtx, cancel := context.WithTimeout(ctx, m.cfg.DumpTimeout)
	defer cancel()

	m.log.Info("Backup started", "type", typ, "filename", filename)
	start := m.now()
	err := m.dump(dumpCtx, path)
	duration := m.now().Sub(start)

	record := &domain.BackupRecord{
		Filename:   filename,
		Type:       typ,
		DurationMs: duration.Milliseconds(),
		Status:     domain.BackupSuccess,
		CreatedAt:  m.now().UTC(),
	}

	if err != nil {
		// A partial artifact is never treated as valid
		_ = os.Remove(path)
		record.Status = domain.BackupFailed
		record.Error = err.Error()
		m.log.Error("Backup failed", "type", typ, "filename", filename, "error", err)
	} else if info, statErr := os.Stat(path); statErr != nil {
		record.Status = domain.BackupFailed
		record.Error = fmt.Sprintf("stat artifact: %v", statErr)
	} else {
		record.SizeBytes = info.Size()
		m.log.Info("Backup completed",
			"type", typ, "filename", filename,
			"size_bytes", record.SizeBytes, "duration_ms", record.DurationMs)
	}

	outcome := 1.0
	if record.Status == domain.BackupFailed {
		outcome = 0.0
	} else {
		metrics.BackupSizeBytes.WithLabelValues(string(typ)).Set(float64(record.SizeBytes))
	}
	metrics.BackupLastOutcome.WithLabelValues(string(typ)).Set(outcome)

	if saveErr := m.repo.Save(ctx, record); saveErr != nil {
		m.log.Error("Failed to persist backup record", "filename", filename, "error", saveErr)
	}

	if m.alerter != nil {
		m.alerter.BackupCompleted(ctx, record)
	}

	// Retention cleanup runs off the job's critical path
	go func() {
		if _, _, err := m.CleanupExpired(context.WithoutCancel(ctx)); err != nil {
			m.log.Warn("Retention cleanup failed", "error", err)
		}
	}()

	return record, nil
}

// CleanupExpired deletes artifacts older than the retention window and
// returns bytes reclaimed and files deleted. An artifact exactly at the
// window boundary is retained.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, int, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read backup dir: %w", err)
	}

	now := m.now()
	var reclaimed int64
	var deleted int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !expired(info.ModTime(), now, m.cfg.Retention) {
			continue
		}
		if err := os.Remove(filepath.Join(m.cfg.Dir, entry.Name())); err != nil {
			m.log.Warn("Failed to delete expired artifact", "filename", entry.Name(), "error", err)
			continue
		}
		reclaimed += info.Size()
		deleted++
	}

	if deleted > 0 {
		m.log.Info("Retention cleanup completed",
			"deleted", deleted, "bytes_reclaimed", reclaimed)
	}
	return reclaimed, deleted, nil
}

// expired reports whether an artifact's age strictly exceeds the window.
func expired(modTime, now time.Time, window time.Duration) bool {
	return now.Sub(modTime) > window
}

// RestoreBackup restores the database from a named artifact. Operator
// invoked only; never triggered automatically.
func (m *Manager) RestoreBackup(ctx context.Context, filename string) error {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return ErrInvalidFilename
	}

	path := filepath.Join(m.cfg.Dir, filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("backup artifact not found: %w", err)
	}

	restoreCtx, cancel := context.WithTimeout(ctx, m.cfg.RestoreTimeout)
	defer cancel()

	m.log.Info("Restore started", "filename", filename)
	err := m.restore(restoreCtx, path)
	if err != nil {
		m.log.Error("Restore failed", "filename", filename, "error", err)
	} else {
		m.log.Info("Restore completed", "filename", filename)
	}

	if m.alerter != nil {
		m.alerter.RestoreCompleted(ctx, filename, err)
	}
	return err
}

func (m *Manager) pgDump(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", m.cfg.Host,
		"-p", strconv.Itoa(m.cfg.Port),
		"-U", m.cfg.User,
		"-d", m.cfg.DBName,
		"-F", "c",
		"-f", path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+m.cfg.Password)

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("pg_dump timed out after %s", m.cfg.DumpTimeout)
	}
	if err != nil {
		return fmt.Errorf("pg_dump: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (m *Manager) pgRestore(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "pg_restore",
		"-h", m.cfg.Host,
		"-p", strconv.Itoa(m.cfg.Port),
		"-U", m.cfg.User,
		"-d", m.cfg.DBName,
		"--clean",
		"--if-exists",
		path,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+m.cfg.Password)

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("pg_restore timed out after %s", m.cfg.RestoreTimeout)
	}
	if err != nil {
		return fmt.Errorf("pg_restore: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
