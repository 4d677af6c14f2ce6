package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

const (
	// maxCachedNotifications caps the per-user history length.
	maxCachedNotifications = 50

	// notificationTTL expires the whole per-user list.
	notificationTTL = 24 * time.Hour
)

func notificationKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// NotificationCache stores the bounded, time-boxed per-user notification
// history as a Redis list (newest first).
type NotificationCache struct {
	client *Client
}

// NewNotificationCache creates a cache over an existing client.
func NewNotificationCache(client *Client) *NotificationCache {
	return &NotificationCache{client: client}
}

// Append prepends a notification, trims the list to the cap, and refreshes
// the expiry window.
func (c *NotificationCache) Append(ctx context.Context, userID string, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := notificationKey(userID)
	pipe := c.client.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, maxCachedNotifications-1)
	pipe.Expire(ctx, key, notificationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache notification: %w", err)
	}
	return nil
}

// List returns the cached notifications for a user, newest first.
func (c *NotificationCache) List(ctx context.Context, userID string) ([]*domain.Notification, error) {
	values, err := c.client.rdb.LRange(ctx, notificationKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}

	notifications := make([]*domain.Notification, 0, len(values))
	for _, v := range values {
		var n domain.Notification
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			continue // Skip malformed entries
		}
		notifications = append(notifications, &n)
	}
	return notifications, nil
}
