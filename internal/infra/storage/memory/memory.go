// Package memory implements the storage repositories in process memory.
// Used when no database is configured, and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
)

// MemoryStorage backs all in-memory repositories.
type MemoryStorage struct {
	backups       []*domain.BackupRecord
	backupNames   map[string]struct{}
	subscriptions map[string]*domain.PushSubscription
	notifications map[string][]cachedNotification
	mu            sync.RWMutex
}

type cachedNotification struct {
	n        *domain.Notification
	cachedAt time.Time
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		backupNames:   make(map[string]struct{}),
		subscriptions: make(map[string]*domain.PushSubscription),
		notifications: make(map[string][]cachedNotification),
	}
}

// -----------------------------------------------------------------------------
// Backup Repository
// -----------------------------------------------------------------------------

type BackupRepo struct {
	store *MemoryStorage
}

func NewBackupRepo(store *MemoryStorage) *BackupRepo {
	return &BackupRepo{store: store}
}

func (r *BackupRepo) Save(ctx context.Context, record *domain.BackupRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.backupNames[record.Filename]; exists {
		return storage.ErrDuplicateFilename
	}
	r.store.backupNames[record.Filename] = struct{}{}
	r.store.backups = append(r.store.backups, record)
	return nil
}

func (r *BackupRepo) List(ctx context.Context, limit int) ([]*domain.BackupRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := make([]*domain.BackupRecord, len(r.store.backups))
	copy(records, r.store.backups)
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *BackupRepo) GetByFilename(ctx context.Context, filename string) (*domain.BackupRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, rec := range r.store.backups {
		if rec.Filename == filename {
			return rec, nil
		}
	}
	return nil, storage.ErrNotFound
}

// -----------------------------------------------------------------------------
// Subscription Repository
// -----------------------------------------------------------------------------

type SubscriptionRepo struct {
	store *MemoryStorage
}

func NewSubscriptionRepo(store *MemoryStorage) *SubscriptionRepo {
	return &SubscriptionRepo{store: store}
}

func (r *SubscriptionRepo) Upsert(ctx context.Context, sub *domain.PushSubscription) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.subscriptions[sub.UserID] = sub
	return nil
}

func (r *SubscriptionRepo) Get(ctx context.Context, userID string) (*domain.PushSubscription, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	sub, ok := r.store.subscriptions[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sub, nil
}

func (r *SubscriptionRepo) GetAll(ctx context.Context) ([]*domain.PushSubscription, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	subs := make([]*domain.PushSubscription, 0, len(r.store.subscriptions))
	for _, sub := range r.store.subscriptions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs, nil
}

func (r *SubscriptionRepo) Delete(ctx context.Context, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.subscriptions, userID)
	return nil
}

// -----------------------------------------------------------------------------
// Notification Cache
// -----------------------------------------------------------------------------

const (
	maxCachedNotifications = 50
	notificationTTL        = 24 * time.Hour
)

type NotificationCache struct {
	store *MemoryStorage
	now   func() time.Time
}

func NewNotificationCache(store *MemoryStorage) *NotificationCache {
	return &NotificationCache{store: store, now: time.Now}
}

func (c *NotificationCache) Append(ctx context.Context, userID string, n *domain.Notification) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	entries := append(
		[]cachedNotification{{n: n, cachedAt: c.now()}},
		c.store.notifications[userID]...,
	)
	if len(entries) > maxCachedNotifications {
		entries = entries[:maxCachedNotifications]
	}
	c.store.notifications[userID] = entries
	return nil
}

func (c *NotificationCache) List(ctx context.Context, userID string) ([]*domain.Notification, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	cutoff := c.now().Add(-notificationTTL)
	var out []*domain.Notification
	for _, entry := range c.store.notifications[userID] {
		if entry.cachedAt.Before(cutoff) {
			continue
		}
		out = append(out, entry.n)
	}
	return out, nil
}
