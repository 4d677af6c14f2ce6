// Package alert dispatches alert events to all admin users over web push,
// with per-recipient failure isolation and self-healing unsubscribe.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
	"github.com/opsdeck/opsdeck/internal/metrics"
)

// SendFunc delivers one payload to one subscription and returns the
// delivery status code.
type SendFunc func(ctx context.Context, sub *domain.PushSubscription, payload []byte) (int, error)

// Config holds web push (VAPID) credentials. Empty keys put the dispatcher
// into no-op mode: alerts are logged and counted but not delivered.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
}

// Dispatcher owns the push subscription rows and the per-user notification
// cache.
type Dispatcher struct {
	subs    storage.SubscriptionRepository
	cache   storage.NotificationCache
	send    SendFunc
	enabled bool
	log     *slog.Logger
}

// NewDispatcher creates a dispatcher. Missing credentials degrade to no-op
// mode instead of failing startup.
func NewDispatcher(cfg Config, subs storage.SubscriptionRepository, cache storage.NotificationCache) *Dispatcher {
	d := &Dispatcher{
		subs:    subs,
		cache:   cache,
		enabled: cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "",
		log:     slog.Default().With("component", "alert"),
	}

	if !d.enabled {
		d.log.Warn("VAPID keys not configured, push delivery disabled")
		return d
	}

	d.send = func(ctx context.Context, sub *domain.PushSubscription, payload []byte) (int, error) {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.Keys.P256dh,
				Auth:   sub.Keys.Auth,
			},
		}, &webpush.Options{
			TTL:             60,
			Subscriber:      cfg.Subject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		})
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		return resp.StatusCode, nil
	}
	return d
}

type pushPayload struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// SendAlert delivers the event to every subscribed admin in parallel. One
// user's delivery failure never affects the others; outcomes are gathered
// after all deliveries settle.
func (d *Dispatcher) SendAlert(ctx context.Context, event domain.AlertEvent) domain.DispatchResult {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	metrics.AlertsTotal.WithLabelValues(string(event.Level), event.Service).Inc()
	d.log.Info("Alert raised",
		"level", event.Level, "service", event.Service, "message", event.Message)

	subscriptions, err := d.subs.GetAll(ctx)
	if err != nil {
		d.log.Error("Failed to load subscriptions", "error", err)
		return domain.DispatchResult{}
	}

	result := domain.DispatchResult{Total: len(subscriptions)}
	if len(subscriptions) == 0 {
		d.log.Warn("No admin subscriptions, alert logged only")
		return result
	}

	if !d.enabled {
		for range subscriptions {
			metrics.PushDeliveriesTotal.WithLabelValues("suppressed").Inc()
		}
		d.log.Warn("Push disabled, deliveries suppressed", "count", len(subscriptions))
		return result
	}

	payload, err := json.Marshal(pushPayload{
		Title:     fmt.Sprintf("[%s] %s", event.Level, event.Service),
		Message:   event.Message,
		Level:     string(event.Level),
		Service:   event.Service,
		Timestamp: event.CreatedAt,
	})
	if err != nil {
		d.log.Error("Failed to marshal payload", "error", err)
		return result
	}

	outcomes := make([]bool, len(subscriptions))
	var wg sync.WaitGroup
	for i, sub := range subscriptions {
		wg.Add(1)
		go func(i int, sub *domain.PushSubscription) {
			defer wg.Done()
			outcomes[i] = d.deliver(ctx, sub, event, payload)
		}(i, sub)
	}
	wg.Wait()

	for _, ok := range outcomes {
		if ok {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}
	return result
}

// deliver handles one recipient: classify the outcome, self-heal gone
// subscriptions, and cache the notification on success.
func (d *Dispatcher) deliver(ctx context.Context, sub *domain.PushSubscription, event domain.AlertEvent, payload []byte) bool {
	status, err := d.send(ctx, sub, payload)
	switch {
	case err != nil:
		// Transient: subscription retained
		metrics.PushDeliveriesTotal.WithLabelValues("error").Inc()
		d.log.Warn("Push delivery failed", "user", sub.UserID, "error", err)
		return false

	case status == http.StatusNotFound || status == http.StatusGone:
		// Permanent: self-healing unsubscribe
		metrics.PushDeliveriesTotal.WithLabelValues("gone").Inc()
		d.log.Info("Subscription gone, removing", "user", sub.UserID, "status", status)
		if err := d.subs.Delete(ctx, sub.UserID); err != nil {
			d.log.Error("Failed to remove stale subscription", "user", sub.UserID, "error", err)
		}
		return false

	case status >= 400:
		metrics.PushDeliveriesTotal.WithLabelValues("failed").Inc()
		d.log.Warn("Push delivery rejected", "user", sub.UserID, "status", status)
		return false
	}

	metrics.PushDeliveriesTotal.WithLabelValues("success").Inc()
	notification := &domain.Notification{
		ID:        uuid.NewString(),
		Level:     event.Level,
		Message:   event.Message,
		Service:   event.Service,
		Timestamp: event.CreatedAt,
	}
	if err := d.cache.Append(ctx, sub.UserID, notification); err != nil {
		d.log.Warn("Failed to cache notification", "user", sub.UserID, "error", err)
	}
	return true
}

// Subscribe creates or overwrites a user's subscription.
func (d *Dispatcher) Subscribe(ctx context.Context, sub *domain.PushSubscription) error {
	return d.subs.Upsert(ctx, sub)
}

// Unsubscribe removes a user's subscription.
func (d *Dispatcher) Unsubscribe(ctx context.Context, userID string) error {
	return d.subs.Delete(ctx, userID)
}

// Notifications returns a user's cached notifications, newest first.
func (d *Dispatcher) Notifications(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return d.cache.List(ctx, userID)
}
