// Package worker holds background maintenance loops.
package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opsdeck/opsdeck/internal/metrics"
)

// SSLAlerter receives certificate expiry observations.
type SSLAlerter interface {
	SSLExpiry(ctx context.Context, host string, daysRemaining int)
}

// CertWatcher periodically checks the SSL certificates of configured hosts
// and records days-remaining gauges. Hosts inside the warning window (30
// days) additionally raise an alert each check.
type CertWatcher struct {
	hosts    []string
	interval time.Duration
	alerter  SSLAlerter
	log      *slog.Logger

	// dial is swapped out in tests
	dial func(ctx context.Context, addr string) (time.Time, error)
}

// NewCertWatcher creates a watcher. Hosts without a port default to 443.
func NewCertWatcher(hosts []string, interval time.Duration, alerter SSLAlerter) *CertWatcher {
	if interval == 0 {
		interval = 12 * time.Hour
	}
	return &CertWatcher{
		hosts:    hosts,
		interval: interval,
		alerter:  alerter,
		log:      slog.Default().With("component", "certwatch"),
		dial:     certNotAfter,
	}
}

// Start runs the check loop. The first check runs immediately.
func (w *CertWatcher) Start(ctx context.Context) {
	if len(w.hosts) == 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *CertWatcher) check(ctx context.Context) {
	for _, host := range w.hosts {
		addr := host
		if !strings.Contains(addr, ":") {
			addr += ":443"
		}

		notAfter, err := w.dial(ctx, addr)
		if err != nil {
			w.log.Warn("Certificate check failed", "host", host, "error", err)
			continue
		}

		days := int(time.Until(notAfter).Hours() / 24)
		metrics.SSLCertExpiryDays.WithLabelValues(host).Set(float64(days))
		w.log.Debug("Certificate checked", "host", host, "days_remaining", days)

		if w.alerter != nil && days <= 30 {
			w.alerter.SSLExpiry(ctx, host, days)
		}
	}
}

// certNotAfter performs a TLS handshake and returns the leaf certificate's
// expiry time.
func certNotAfter(ctx context.Context, addr string) (time.Time, error) {
	dialer := &tls.Dialer{Config: &tls.Config{}}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return time.Time{}, fmt.Errorf("tls dial %s: %w", addr, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return time.Time{}, fmt.Errorf("no peer certificates from %s", addr)
	}
	return state.PeerCertificates[0].NotAfter, nil
}
