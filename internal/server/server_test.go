package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opsdeck/opsdeck/internal/alert"
	"github.com/opsdeck/opsdeck/internal/backup"
	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/probe"
	"github.com/opsdeck/opsdeck/internal/infra/storage/memory"
	"github.com/opsdeck/opsdeck/internal/monitor"
	"github.com/opsdeck/opsdeck/internal/stream"
)

func newTestServer(t *testing.T) (*Server, *memory.BackupRepo) {
	t.Helper()

	store := memory.NewMemoryStorage()
	backupRepo := memory.NewBackupRepo(store)
	dispatcher := alert.NewDispatcher(alert.Config{},
		memory.NewSubscriptionRepo(store), memory.NewNotificationCache(store))

	orchestrator := monitor.NewOrchestrator(monitor.Config{ProbeTimeout: time.Second}, []probe.Prober{}, dispatcher)
	orchestrator.RunCycle(context.Background())

	hub := stream.NewHub(orchestrator, time.Minute)
	backups := backup.NewManager(backup.Config{Dir: t.TempDir()}, backupRepo, dispatcher)

	return New(0, orchestrator, hub, backups, backupRepo, dispatcher), backupRepo
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var summary struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Status != "healthy" {
		t.Errorf("Expected healthy with empty roster, got %q", summary.Status)
	}

	rec = doRequest(t, s, http.MethodGet, "/health/detailed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var snapshot domain.HealthSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.TakenAt.IsZero() {
		t.Error("Expected populated snapshot timestamp")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	// A recorded request guarantees at least one application sample
	doRequest(t, s, http.MethodGet, "/health", "")

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "opsdeck_") {
		t.Error("Expected application metrics in scrape output")
	}
}

func TestListBackups(t *testing.T) {
	s, repo := newTestServer(t)

	ctx := context.Background()
	repo.Save(ctx, &domain.BackupRecord{Filename: "backup-1.dump", Status: domain.BackupSuccess})
	repo.Save(ctx, &domain.BackupRecord{Filename: "backup-2.dump", Status: domain.BackupFailed})

	rec := doRequest(t, s, http.MethodGet, "/api/backups", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var records []*domain.BackupRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}

	rec = doRequest(t, s, http.MethodGet, "/api/backups?limit=1", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("Expected limit applied, got %d records", len(records))
	}
}

func TestRestoreErrors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/backups/..%2Fevil.dump/restore", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for traversal filename, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/backups/missing.dump/restore", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown artifact, got %d", rec.Code)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/push/subscriptions/alice",
		`{"endpoint":"https://push.example.com/alice","keys":{"p256dh":"p","auth":"a"}}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/notifications/alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("Expected empty array for no notifications, got %q", rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/push/subscriptions/alice", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
}

func TestSubscribeRejectsBadPayload(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/push/subscriptions/alice", `{"endpoint":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing endpoint, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/push/subscriptions/alice", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}
