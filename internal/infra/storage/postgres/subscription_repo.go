package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
	"github.com/opsdeck/opsdeck/internal/metrics"
)

// SubscriptionRepo implements storage.SubscriptionRepository using
// PostgreSQL.
type SubscriptionRepo struct {
	db *DB
}

// NewSubscriptionRepo creates a new PostgreSQL subscription repository.
func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

type subscriptionRow struct {
	UserID   string `db:"user_id"`
	Endpoint string `db:"endpoint"`
	P256dh   string `db:"p256dh"`
	Auth     string `db:"auth"`
}

func (row subscriptionRow) toDomain() *domain.PushSubscription {
	return &domain.PushSubscription{
		UserID:   row.UserID,
		Endpoint: row.Endpoint,
		Keys:     domain.SubscriptionKeys{P256dh: row.P256dh, Auth: row.Auth},
	}
}

// Upsert creates or overwrites the user's subscription; the second call's
// endpoint and keys win.
func (r *SubscriptionRepo) Upsert(ctx context.Context, sub *domain.PushSubscription) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			endpoint = EXCLUDED.endpoint,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			updated_at = EXCLUDED.updated_at`,
		sub.UserID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth, time.Now().UTC(),
	)
	metrics.DBQueryDuration.WithLabelValues("subscription_upsert").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// Get retrieves a user's subscription.
func (r *SubscriptionRepo) Get(ctx context.Context, userID string) (*domain.PushSubscription, error) {
	var row subscriptionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT user_id, endpoint, p256dh, auth
		FROM push_subscriptions WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return row.toDomain(), nil
}

// GetAll returns all live subscriptions.
func (r *SubscriptionRepo) GetAll(ctx context.Context) ([]*domain.PushSubscription, error) {
	start := time.Now()
	var rows []subscriptionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT user_id, endpoint, p256dh, auth
		FROM push_subscriptions ORDER BY user_id`)
	metrics.DBQueryDuration.WithLabelValues("subscription_list").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]*domain.PushSubscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toDomain())
	}
	return subs, nil
}

// Delete removes a user's subscription.
func (r *SubscriptionRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
