// Package monitor runs the health check orchestrator: concurrent probe
// fan-out on a fixed cadence, snapshot aggregation, metric recording, and
// transition alerting.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opsdeck/opsdeck/internal/core/domain"
	"github.com/opsdeck/opsdeck/internal/infra/probe"
	"github.com/opsdeck/opsdeck/internal/metrics"
)

// TransitionAlerter receives service state transitions. Implemented by the
// alert dispatcher.
type TransitionAlerter interface {
	ServiceTransition(ctx context.Context, service string, healthy bool)
}

// Config holds orchestrator settings.
type Config struct {
	Interval     time.Duration // cycle cadence
	ProbeTimeout time.Duration // uniform ceiling applied to every probe
}

// Orchestrator owns the probe roster and the current snapshot. It is the
// snapshot's single writer; consumers get value copies.
type Orchestrator struct {
	cfg     Config
	probers []probe.Prober
	alerter TransitionAlerter
	log     *slog.Logger

	mu         sync.RWMutex
	snapshot   domain.HealthSnapshot
	lastStatus map[string]domain.ServiceStatus
}

// NewOrchestrator creates an orchestrator over a fixed probe roster.
func NewOrchestrator(cfg Config, probers []probe.Prober, alerter TransitionAlerter) *Orchestrator {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &Orchestrator{
		cfg:        cfg,
		probers:    probers,
		alerter:    alerter,
		log:        slog.Default().With("component", "monitor"),
		lastStatus: make(map[string]domain.ServiceStatus),
	}
}

// Start runs the periodic cycle loop until ctx is cancelled. The first
// cycle runs immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	o.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.RunCycle(ctx)
		}
	}
}

// Snapshot returns a copy of the latest snapshot.
func (o *Orchestrator) Snapshot() domain.HealthSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return copySnapshot(o.snapshot)
}

// RunCycle probes every dependency concurrently and returns the aggregated
// snapshot. Probe failures are data, never control flow: a hanging or
// erroring probe yields an unhealthy entry and delays the cycle by at most
// the probe timeout.
func (o *Orchestrator) RunCycle(ctx context.Context) domain.HealthSnapshot {
	results := make([]domain.HealthResult, len(o.probers))

	var wg sync.WaitGroup
	for i, p := range o.probers {
		wg.Add(1)
		go func(i int, p probe.Prober) {
			defer wg.Done()
			results[i] = o.runProbe(ctx, p)
		}(i, p)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].ServiceName < results[j].ServiceName
	})

	snapshot := domain.HealthSnapshot{
		Services: results,
		TakenAt:  time.Now().UTC(),
	}
	snapshot.Summary.TotalServices = len(results)
	for _, r := range results {
		if r.Status == domain.StatusHealthy {
			snapshot.Summary.HealthyCount++
		} else {
			snapshot.Summary.UnhealthyCount++
		}
	}

	o.record(snapshot)
	transitions := o.commit(snapshot)

	// Alert off the cycle's critical path
	if o.alerter != nil {
		for service, healthy := range transitions {
			go o.alerter.ServiceTransition(context.WithoutCancel(ctx), service, healthy)
		}
	}

	return copySnapshot(snapshot)
}

func (o *Orchestrator) runProbe(ctx context.Context, p probe.Prober) domain.HealthResult {
	probeCtx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Probe(probeCtx)
	elapsed := time.Since(start)

	metrics.ProbeDuration.WithLabelValues(p.Name()).Observe(elapsed.Seconds())

	result := domain.HealthResult{
		ServiceName:    p.Name(),
		Status:         domain.StatusHealthy,
		ResponseTimeMs: elapsed.Milliseconds(),
		ObservedAt:     time.Now().UTC(),
	}
	if err != nil {
		result.Status = domain.StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}

// record writes per-service gauges to the metrics registry.
func (o *Orchestrator) record(snapshot domain.HealthSnapshot) {
	for _, r := range snapshot.Services {
		value := 0.0
		if r.Status == domain.StatusHealthy {
			value = 1.0
		}
		metrics.ServiceHealth.WithLabelValues(r.ServiceName).Set(value)
	}
}

// commit stores the snapshot and returns services whose status changed
// since the previous observation (service -> now healthy). The first
// observation of a service never counts as a transition.
func (o *Orchestrator) commit(snapshot domain.HealthSnapshot) map[string]bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	transitions := make(map[string]bool)
	for _, r := range snapshot.Services {
		prev, seen := o.lastStatus[r.ServiceName]
		if seen && prev != r.Status {
			transitions[r.ServiceName] = r.Status == domain.StatusHealthy
			o.log.Info("Service status changed",
				"service", r.ServiceName, "from", prev, "to", r.Status, "error", r.Error)
		}
		o.lastStatus[r.ServiceName] = r.Status
	}

	o.snapshot = snapshot
	return transitions
}

func copySnapshot(s domain.HealthSnapshot) domain.HealthSnapshot {
	out := s
	out.Services = make([]domain.HealthResult, len(s.Services))
	copy(out.Services, s.Services)
	return out
}
