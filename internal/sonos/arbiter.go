package sonos

import (
	"context"
	"log/slog"
	"sync"
)

// SubscriptionArbiter resolves the conflict between RenderingControl (used
// during sync sessions, for per-speaker volume/mute) and
// GroupRenderingControl (used by topology monitoring, for group-level
// volume/mute): a Sonos speaker can only usefully have one of the two event
// sources active, or both emit overlapping GroupVolume/GroupMute events.
//
// sync_ips is updated BEFORE any GENA operation runs, closing the TOCTOU
// window a caller would otherwise see between checking IsInSyncSession and
// acting on the answer.
type SubscriptionArbiter struct {
	gena *SubscriptionManager

	mu      sync.Mutex
	syncIPs map[string]bool
}

// NewSubscriptionArbiter returns an arbiter backed by gena.
func NewSubscriptionArbiter(gena *SubscriptionManager) *SubscriptionArbiter {
	return &SubscriptionArbiter{gena: gena, syncIPs: make(map[string]bool)}
}

// IsInSyncSession reports whether ip is currently using RenderingControl
// instead of GroupRenderingControl. Reads the arbiter's own syncIPs set, not
// live GENA state, so it agrees with what EnsureGroupRendering will decide.
func (a *SubscriptionArbiter) IsInSyncSession(ip string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.syncIPs[ip]
}

// EnterSyncSession marks each ip as sync-active, then for each one:
// unsubscribes GroupRenderingControl, subscribes RenderingControl, then
// unsubscribes GroupRenderingControl again to close the window where a
// concurrent topology refresh re-subscribed it between steps one and two.
func (a *SubscriptionArbiter) EnterSyncSession(ctx context.Context, ips []string, callbackURL string) {
	slog.Info("arbiter: entering sync session", "count", len(ips))

	a.mu.Lock()
	for _, ip := range ips {
		a.syncIPs[ip] = true
	}
	a.mu.Unlock()

	var wg sync.WaitGroup
	for _, ip := range ips {
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()

			a.gena.UnsubscribeByIPAndService(ctx, ip, GroupRenderingControl)

			if err := a.gena.Subscribe(ctx, ip, RenderingControl, callbackURL); err != nil {
				slog.Warn("arbiter: failed to subscribe RenderingControl", "ip", ip, "error", err)
				return
			}
			slog.Info("arbiter: subscribed RenderingControl for sync session", "ip", ip)

			a.gena.UnsubscribeByIPAndService(ctx, ip, GroupRenderingControl)
		}(ip)
	}
	wg.Wait()
}

// LeaveSyncSession unsubscribes RenderingControl for ip and immediately
// restores GroupRenderingControl, so there is no gap where neither event
// source is active.
func (a *SubscriptionArbiter) LeaveSyncSession(ctx context.Context, ip, callbackURL string) {
	a.mu.Lock()
	delete(a.syncIPs, ip)
	a.mu.Unlock()

	a.gena.UnsubscribeByIPAndService(ctx, ip, RenderingControl)

	if err := a.gena.Subscribe(ctx, ip, GroupRenderingControl, callbackURL); err != nil {
		slog.Warn("arbiter: failed to restore GroupRenderingControl", "ip", ip, "error", err)
		return
	}
	slog.Info("arbiter: restored GroupRenderingControl", "ip", ip)
}

// LeaveAllSyncSessions tears down every currently tracked sync session
// concurrently. Used when subscriptions are being rebuilt wholesale (e.g.
// the renderer's IP changed).
func (a *SubscriptionArbiter) LeaveAllSyncSessions(ctx context.Context, callbackURL string) {
	a.mu.Lock()
	ips := make([]string, 0, len(a.syncIPs))
	for ip := range a.syncIPs {
		ips = append(ips, ip)
	}
	a.mu.Unlock()

	var wg sync.WaitGroup
	for _, ip := range ips {
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			a.LeaveSyncSession(ctx, ip, callbackURL)
		}(ip)
	}
	wg.Wait()
}

// EnsureGroupRendering subscribes GroupRenderingControl for a coordinator
// IP, unless it's in an active sync session (RenderingControl already
// covers it), in which case any stale GroupRenderingControl subscription is
// proactively cleaned up instead.
func (a *SubscriptionArbiter) EnsureGroupRendering(ctx context.Context, ip, callbackURL string) {
	if a.IsInSyncSession(ip) {
		a.gena.UnsubscribeByIPAndService(ctx, ip, GroupRenderingControl)
		slog.Debug("arbiter: skipping GroupRenderingControl, sync session active", "ip", ip)
		return
	}

	if a.gena.IsSubscribed(ip, GroupRenderingControl) {
		return
	}

	if err := a.gena.Subscribe(ctx, ip, GroupRenderingControl, callbackURL); err != nil {
		slog.Error("arbiter: failed to subscribe GroupRenderingControl", "ip", ip, "error", err)
		return
	}
	slog.Info("arbiter: subscribed GroupRenderingControl", "ip", ip)
}
