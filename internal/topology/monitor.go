// Package topology maintains this bridge's view of Sonos zone-group
// topology: a periodically and event-triggered refresh against a seed
// speaker, collapsed so that a burst of GENA ZoneGroupsUpdated notifications
// costs one SOAP round trip instead of one per notification.
package topology

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kaelwillow/sonocast/internal/protocol"
	"github.com/kaelwillow/sonocast/internal/sonos"
)

// SeedProvider returns candidate speaker IPs to query for zone-group state.
// Any reachable speaker can answer GetZoneGroupState, so the monitor just
// needs one that responds; callers typically wire this to a discovery
// registry's known-IPs snapshot.
type SeedProvider func() []string

// Monitor owns the cached zone-group topology and keeps it current.
// Grounded on DiscoveryService's trigger_refresh()/start_topology_monitor()
// composition (services/discovery_service.rs): refreshes are signaled
// rather than applied directly, so concurrent triggers collapse into one
// in-flight fetch instead of one SOAP call each. The periodic tick itself
// (on top of event-triggered refreshes) is a cron schedule rather than the
// plain tokio::interval the original uses, since cron.Cron is already this
// module's standard way to drive a recurring background job; the collapse
// of a burst of triggers into one refresh stays a plain debounce timer —
// robfig/cron isn't suited to coalescing asynchronous sub-second signals.
type Monitor struct {
	client  *sonos.Client
	cache   *sonos.StateCache
	arbiter *sonos.SubscriptionArbiter
	seeds   SeedProvider

	callbackURL string
	interval    time.Duration

	cron      *cron.Cron
	refreshCh chan struct{}
	done      chan struct{}

	mu      sync.Mutex
	lastErr error
}

// NewMonitor wires a Monitor around the package's Sonos control surfaces.
// interval governs the periodic cron tick on top of event-triggered
// refreshes; <= 0 falls back to protocol.DefaultTopologyRefreshInterval.
func NewMonitor(client *sonos.Client, cache *sonos.StateCache, arbiter *sonos.SubscriptionArbiter, seeds SeedProvider, callbackURL string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = protocol.DefaultTopologyRefreshInterval
	}
	return &Monitor{
		client:      client,
		cache:       cache,
		arbiter:     arbiter,
		seeds:       seeds,
		callbackURL: callbackURL,
		interval:    interval,
		cron:        cron.New(),
		refreshCh:   make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// TriggerRefresh requests a refresh without blocking. A refresh already
// queued absorbs this request; the debounce loop collapses bursts further.
func (m *Monitor) TriggerRefresh() {
	select {
	case m.refreshCh <- struct{}{}:
	default:
	}
}

// Start performs an initial refresh, schedules the periodic cron job, and
// launches the debounce loop that services TriggerRefresh. It returns once
// the initial refresh has completed (success or failure is only logged;
// an empty topology at startup is not itself fatal).
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.refreshOnce(ctx); err != nil {
		slog.Warn("topology: initial refresh failed", "error", err)
	}

	spec := "@every " + m.interval.String()
	if _, err := m.cron.AddFunc(spec, m.TriggerRefresh); err != nil {
		return err
	}
	m.cron.Start()

	go m.debounceLoop(ctx)
	return nil
}

// Shutdown stops the cron schedule and the debounce loop.
func (m *Monitor) Shutdown() {
	m.cron.Stop()
	close(m.done)
}

func (m *Monitor) debounceLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-m.refreshCh:
		}

		timer := time.NewTimer(protocol.TopologyRefreshDebounce)
	drain:
		for {
			select {
			case <-m.refreshCh:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(protocol.TopologyRefreshDebounce)
			case <-timer.C:
				break drain
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}

		if err := m.refreshOnce(ctx); err != nil {
			slog.Warn("topology: refresh failed", "error", err)
		}
	}
}

// refreshOnce queries the first responsive seed for zone-group state,
// replaces the cached topology wholesale, and ensures GroupRenderingControl
// is subscribed for every coordinator that isn't currently in a sync
// session (topology membership can change which speakers are coordinators).
func (m *Monitor) refreshOnce(ctx context.Context) error {
	seeds := m.seeds()
	if len(seeds) == 0 {
		return errors.New("topology: no seed speakers available")
	}

	var lastErr error
	for _, ip := range seeds {
		groups, err := m.client.GetZoneGroups(ctx, ip)
		if err != nil {
			lastErr = err
			continue
		}

		m.cache.SetGroups(groups)
		slog.Info("topology: refreshed", "seed", ip, "groups", len(groups))

		for _, g := range groups {
			m.arbiter.EnsureGroupRendering(ctx, g.CoordinatorIP, m.callbackURL)
		}

		m.mu.Lock()
		m.lastErr = nil
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	m.lastErr = lastErr
	m.mu.Unlock()
	return lastErr
}

// LastError returns the error from the most recent failed refresh, if any.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
