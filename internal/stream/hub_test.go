package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdeck/opsdeck/internal/core/domain"
)

type fakeCycler struct {
	mu       sync.Mutex
	snapshot domain.HealthSnapshot
	cycles   int

	// gate, when set, blocks RunCycle until closed
	gate chan struct{}
}

func (c *fakeCycler) Snapshot() domain.HealthSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *fakeCycler) RunCycle(ctx context.Context) domain.HealthSnapshot {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles++
	return c.snapshot
}

func (c *fakeCycler) cycleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles
}

func testSnapshot() domain.HealthSnapshot {
	return domain.HealthSnapshot{
		Services: []domain.HealthResult{
			{ServiceName: "api", Status: domain.StatusHealthy},
		},
		Summary: domain.HealthSummary{TotalServices: 1, HealthyCount: 1},
		TakenAt: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
	}
}

func TestPushSnapshotDropsWhenBufferFull(t *testing.T) {
	c := newClient(nil)

	// Fill the send buffer; nothing is draining it
	for i := 0; i < sendBufferSize; i++ {
		if !c.trySend([]byte("x")) {
			t.Fatalf("Expected buffer slot %d accepted", i)
		}
	}

	done := make(chan struct{})
	go func() {
		c.pushSnapshot(testSnapshot())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pushSnapshot blocked on a full client buffer")
	}
}

func TestCloseWithoutConn(t *testing.T) {
	c := newClient(nil)
	// Must not panic, and must be idempotent
	c.close()
	c.close()

	if c.trySend([]byte("x")) {
		t.Error("Expected sends rejected after close")
	}
}

func TestClientCount(t *testing.T) {
	h := NewHub(&fakeCycler{}, time.Minute)
	a, b := newClient(nil), newClient(nil)

	h.register(a)
	h.register(b)
	if h.ClientCount() != 2 {
		t.Fatalf("Expected 2 clients, got %d", h.ClientCount())
	}

	h.unregister(a)
	if h.ClientCount() != 1 {
		t.Fatalf("Expected 1 client after unregister, got %d", h.ClientCount())
	}
}

// dialHub connects a websocket client to the hub and drains the on-connect
// snapshot.
func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("Expected snapshot on connect, got %v", err)
	}
	return conn
}

func TestWebsocketSnapshotOnConnect(t *testing.T) {
	cycler := &fakeCycler{snapshot: testSnapshot()}
	h := NewHub(cycler, time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected snapshot on connect, got %v", err)
	}

	var msg healthUpdate
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "health-update" {
		t.Errorf("Expected health-update envelope, got %q", msg.Type)
	}
	if msg.Data.Summary.TotalServices != 1 {
		t.Errorf("Unexpected snapshot payload: %+v", msg.Data)
	}
}

func TestWebsocketRequestHealthForcesCycle(t *testing.T) {
	cycler := &fakeCycler{snapshot: testSnapshot()}
	h := NewHub(cycler, time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conn := dialHub(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"request-health"}`)); err != nil {
		t.Fatal(err)
	}

	// The forced cycle's snapshot comes back to this client
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("Expected snapshot after request-health, got %v", err)
	}

	if n := cycler.cycleCount(); n != 1 {
		t.Errorf("Expected 1 forced cycle, got %d", n)
	}
}

func TestRefreshIsScopedToRequester(t *testing.T) {
	cycler := &fakeCycler{snapshot: testSnapshot()}
	h := NewHub(cycler, time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	requester := dialHub(t, srv)
	bystander := dialHub(t, srv)

	if err := requester.WriteMessage(websocket.TextMessage, []byte(`{"type":"request-health"}`)); err != nil {
		t.Fatal(err)
	}

	// The requester gets exactly one response
	requester.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := requester.ReadMessage(); err != nil {
		t.Fatalf("Expected refresh result for requester, got %v", err)
	}
	requester.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := requester.ReadMessage(); err == nil {
		t.Error("Requester received the refresh result more than once")
	}

	// The other client gets nothing
	bystander.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := bystander.ReadMessage(); err == nil {
		t.Error("Another client received a push from someone else's refresh")
	}
}

func TestRefreshCoalescesWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	cycler := &fakeCycler{snapshot: testSnapshot(), gate: gate}
	h := NewHub(cycler, time.Minute)
	c := newClient(nil)

	// First refresh blocks inside the cycle; the rest are dropped
	c.refresh(h)
	for i := 0; i < 4; i++ {
		c.refresh(h)
	}
	close(gate)

	select {
	case <-c.send:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected refresh result pushed to the client")
	}

	if n := cycler.cycleCount(); n != 1 {
		t.Errorf("Expected refreshes coalesced into 1 cycle, got %d", n)
	}

	// Once settled, a new refresh is accepted again. The in-flight flag
	// resets just after the push, so wait for it.
	for i := 0; i < 100 && c.refreshing.Load(); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	c.refresh(h)
	select {
	case <-c.send:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected refresh accepted after the previous one settled")
	}
	if n := cycler.cycleCount(); n != 2 {
		t.Errorf("Expected 2 cycles after second refresh, got %d", n)
	}
}
