package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
	"github.com/opsdeck/opsdeck/internal/metrics"
)

// BackupRepo implements storage.BackupRepository using PostgreSQL.
type BackupRepo struct {
	db *DB
}

// NewBackupRepo creates a new PostgreSQL backup repository.
func NewBackupRepo(db *DB) *BackupRepo {
	return &BackupRepo{db: db}
}

// Save appends a backup record. A filename collision surfaces as
// storage.ErrDuplicateFilename rather than overwriting the existing row.
func (r *BackupRepo) Save(ctx context.Context, record *domain.BackupRecord) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backup_records (filename, type, size_bytes, duration_ms, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.Filename, record.Type, record.SizeBytes, record.DurationMs,
		record.Status, record.Error, record.CreatedAt,
	)
	metrics.DBQueryDuration.WithLabelValues("backup_insert").Observe(time.Since(start).Seconds())

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrDuplicateFilename
	}
	if err != nil {
		return fmt.Errorf("failed to save backup record: %w", err)
	}
	return nil
}

// List returns records newest first.
func (r *BackupRepo) List(ctx context.Context, limit int) ([]*domain.BackupRecord, error) {
	query := `
		SELECT filename, type, size_bytes, duration_ms, status, error, created_at
		FROM backup_records ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	start := time.Now()
	var records []*domain.BackupRecord
	err := r.db.SelectContext(ctx, &records, query, args...)
	metrics.DBQueryDuration.WithLabelValues("backup_list").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to list backup records: %w", err)
	}
	return records, nil
}

// GetByFilename retrieves one record.
func (r *BackupRepo) GetByFilename(ctx context.Context, filename string) (*domain.BackupRecord, error) {
	var record domain.BackupRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT filename, type, size_bytes, duration_ms, status, error, created_at
		FROM backup_records WHERE filename = $1`, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backup record: %w", err)
	}
	return &record, nil
}
