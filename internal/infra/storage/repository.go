// Package storage defines the persistence interfaces for backup history,
// push subscriptions, and the per-user notification cache.
package storage

import (
	"context"
	"errors"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateFilename is returned when a backup filename collides
	ErrDuplicateFilename = errors.New("backup filename already exists")
)

// BackupRepository handles append-only backup history.
type BackupRepository interface {
	// Save appends a completed backup record
	Save(ctx context.Context, record *domain.BackupRecord) error

	// List returns records newest first, up to limit (0 = all)
	List(ctx context.Context, limit int) ([]*domain.BackupRecord, error)

	// GetByFilename retrieves one record
	GetByFilename(ctx context.Context, filename string) (*domain.BackupRecord, error)
}

// SubscriptionRepository handles push subscription rows (at most one per
// user).
type SubscriptionRepository interface {
	// Upsert creates or overwrites the user's subscription
	Upsert(ctx context.Context, sub *domain.PushSubscription) error

	// Get retrieves a user's subscription
	Get(ctx context.Context, userID string) (*domain.PushSubscription, error)

	// GetAll returns all live subscriptions
	GetAll(ctx context.Context) ([]*domain.PushSubscription, error)

	// Delete removes a user's subscription
	Delete(ctx context.Context, userID string) error
}

// NotificationCache stores the bounded, time-boxed per-user notification
// history.
type NotificationCache interface {
	// Append records a delivered notification for a user
	Append(ctx context.Context, userID string, n *domain.Notification) error

	// List returns a user's cached notifications, newest first
	List(ctx context.Context, userID string) ([]*domain.Notification, error)
}
