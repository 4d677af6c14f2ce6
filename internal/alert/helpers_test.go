package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

// capturingDispatcher records the payloads SendAlert delivers.
func capturingDispatcher(t *testing.T) (*Dispatcher, func() []pushPayload) {
	t.Helper()

	var mu sync.Mutex
	var payloads []pushPayload

	d, _, _ := newTestDispatcher(func(ctx context.Context, sub *domain.PushSubscription, payload []byte) (int, error) {
		var p pushPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			t.Errorf("Malformed push payload: %v", err)
		}
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		return http.StatusCreated, nil
	})
	d.Subscribe(context.Background(), subscription("admin"))

	return d, func() []pushPayload {
		mu.Lock()
		defer mu.Unlock()
		out := make([]pushPayload, len(payloads))
		copy(out, payloads)
		return out
	}
}

func TestServiceTransitionLevels(t *testing.T) {
	d, captured := capturingDispatcher(t)
	ctx := context.Background()

	d.ServiceTransition(ctx, "redis", false)
	d.ServiceTransition(ctx, "redis", true)

	payloads := captured()
	if len(payloads) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(payloads))
	}
	if payloads[0].Level != "warning" {
		t.Errorf("Expected unhealthy transition at warning, got %q", payloads[0].Level)
	}
	if payloads[1].Level != "info" {
		t.Errorf("Expected recovery at info, got %q", payloads[1].Level)
	}
}

func TestBackupCompletedLevels(t *testing.T) {
	d, captured := capturingDispatcher(t)
	ctx := context.Background()

	d.BackupCompleted(ctx, &domain.BackupRecord{
		Filename: "a.dump", Status: domain.BackupSuccess, SizeBytes: 42,
	})
	d.BackupCompleted(ctx, &domain.BackupRecord{
		Filename: "b.dump", Status: domain.BackupFailed, Error: "pg_dump: no space left",
	})

	payloads := captured()
	if len(payloads) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(payloads))
	}
	if payloads[0].Level != "info" {
		t.Errorf("Expected success at info, got %q", payloads[0].Level)
	}
	if payloads[1].Level != "critical" {
		t.Errorf("Expected failure at critical, got %q", payloads[1].Level)
	}
}

func TestRestoreCompletedFailureIsCritical(t *testing.T) {
	d, captured := capturingDispatcher(t)

	d.RestoreCompleted(context.Background(), "a.dump", errors.New("pg_restore: fatal"))

	payloads := captured()
	if len(payloads) != 1 || payloads[0].Level != "critical" {
		t.Errorf("Expected critical restore failure alert, got %+v", payloads)
	}
}

func TestSSLExpiryThresholds(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{3, "critical"},
		{7, "critical"},
		{8, "warning"},
		{30, "warning"},
		{31, "info"},
	}

	for _, tt := range tests {
		d, captured := capturingDispatcher(t)
		d.SSLExpiry(context.Background(), "example.com", tt.days)

		payloads := captured()
		if len(payloads) != 1 {
			t.Fatalf("Expected 1 delivery for %d days, got %d", tt.days, len(payloads))
		}
		if payloads[0].Level != tt.want {
			t.Errorf("Expected %q at %d days, got %q", tt.want, tt.days, payloads[0].Level)
		}
	}
}
