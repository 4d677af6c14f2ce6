package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
)

func TestBackupRepoDuplicateFilename(t *testing.T) {
	repo := NewBackupRepo(NewMemoryStorage())
	ctx := context.Background()

	record := &domain.BackupRecord{Filename: "backup-a.dump", Status: domain.BackupSuccess}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatal(err)
	}
	err := repo.Save(ctx, &domain.BackupRecord{Filename: "backup-a.dump"})
	if !errors.Is(err, storage.ErrDuplicateFilename) {
		t.Errorf("Expected ErrDuplicateFilename, got %v", err)
	}
}

func TestBackupRepoListNewestFirst(t *testing.T) {
	repo := NewBackupRepo(NewMemoryStorage())
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		repo.Save(ctx, &domain.BackupRecord{
			Filename:  fmt.Sprintf("backup-%d.dump", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	records, err := repo.List(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected limit 3 applied, got %d", len(records))
	}
	if records[0].Filename != "backup-4.dump" {
		t.Errorf("Expected newest first, got %q", records[0].Filename)
	}
	if records[2].Filename != "backup-2.dump" {
		t.Errorf("Expected descending order, got %q", records[2].Filename)
	}
}

func TestSubscriptionRepoUpsert(t *testing.T) {
	repo := NewSubscriptionRepo(NewMemoryStorage())
	ctx := context.Background()

	repo.Upsert(ctx, &domain.PushSubscription{UserID: "alice", Endpoint: "https://a/1"})
	repo.Upsert(ctx, &domain.PushSubscription{UserID: "alice", Endpoint: "https://a/2"})

	subs, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Fatalf("Expected one row per user, got %d", len(subs))
	}
	if subs[0].Endpoint != "https://a/2" {
		t.Errorf("Expected latest endpoint, got %q", subs[0].Endpoint)
	}

	if err := repo.Delete(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestNotificationCacheCap(t *testing.T) {
	cache := NewNotificationCache(NewMemoryStorage())
	ctx := context.Background()

	for i := 0; i < maxCachedNotifications+10; i++ {
		cache.Append(ctx, "alice", &domain.Notification{ID: fmt.Sprintf("n%d", i)})
	}

	list, err := cache.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != maxCachedNotifications {
		t.Fatalf("Expected cache capped at %d, got %d", maxCachedNotifications, len(list))
	}
	// Newest entry survives at the head
	if list[0].ID != fmt.Sprintf("n%d", maxCachedNotifications+9) {
		t.Errorf("Expected newest notification first, got %q", list[0].ID)
	}
}

func TestNotificationCacheTTL(t *testing.T) {
	cache := NewNotificationCache(NewMemoryStorage())
	ctx := context.Background()

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	cache.Append(ctx, "alice", &domain.Notification{ID: "old"})

	// Advance past the TTL; the entry ages out of List
	cache.now = func() time.Time { return now.Add(notificationTTL + time.Minute) }
	cache.Append(ctx, "alice", &domain.Notification{ID: "fresh"})

	list, err := cache.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "fresh" {
		t.Errorf("Expected only fresh notification, got %+v", list)
	}
}
