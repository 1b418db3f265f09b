package sonos

import (
	"context"
	"net/http"
	"testing"

	"github.com/kaelwillow/sonocast/internal/sonos/sonostest"
)

func newTestArbiter() *SubscriptionArbiter {
	tr := sonostest.New()
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/RenderingControl/Event", sonostest.Response{
		Header: http.Header{"SID": {"uuid:rc-1"}},
	})
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/GroupRenderingControl/Event", sonostest.Response{
		Header: http.Header{"SID": {"uuid:grc-1"}},
	})
	mgr, _ := NewSubscriptionManagerWithHTTP(tr.Client())
	return NewSubscriptionArbiter(mgr)
}

func TestArbiter_IsInSyncSession_FalseForUnknown(t *testing.T) {
	a := newTestArbiter()
	if a.IsInSyncSession("192.168.1.100") {
		t.Fatal("expected false for an untracked IP")
	}
}

func TestArbiter_EnterMarksIPsAsSync(t *testing.T) {
	a := newTestArbiter()
	ips := []string{"192.168.1.100", "192.168.1.101"}
	a.EnterSyncSession(context.Background(), ips, "http://cb")

	if !a.IsInSyncSession("192.168.1.100") || !a.IsInSyncSession("192.168.1.101") {
		t.Fatal("expected both IPs marked as in sync session")
	}
	if a.IsInSyncSession("192.168.1.102") {
		t.Fatal("untouched IP should not be marked")
	}
}

func TestArbiter_LeaveRemovesFromSync(t *testing.T) {
	a := newTestArbiter()
	ctx := context.Background()
	a.EnterSyncSession(ctx, []string{"192.168.1.100"}, "http://cb")
	if !a.IsInSyncSession("192.168.1.100") {
		t.Fatal("expected sync session active")
	}

	a.LeaveSyncSession(ctx, "192.168.1.100", "http://cb")
	if a.IsInSyncSession("192.168.1.100") {
		t.Fatal("expected sync session cleared")
	}
}

func TestArbiter_LeaveAllClearsEverything(t *testing.T) {
	a := newTestArbiter()
	ctx := context.Background()
	ips := []string{"192.168.1.100", "192.168.1.101", "192.168.1.102"}
	a.EnterSyncSession(ctx, ips, "http://cb")

	a.LeaveAllSyncSessions(ctx, "http://cb")

	for _, ip := range ips {
		if a.IsInSyncSession(ip) {
			t.Fatalf("%s still marked as in sync session", ip)
		}
	}
}

func TestArbiter_EnsureGroupRendering_SkipsWhenSyncActive(t *testing.T) {
	a := newTestArbiter()
	ctx := context.Background()
	a.EnterSyncSession(ctx, []string{"192.168.1.100"}, "http://cb")

	a.EnsureGroupRendering(ctx, "192.168.1.100", "http://cb")

	if !a.IsInSyncSession("192.168.1.100") {
		t.Fatal("sync state should be preserved")
	}
	if a.gena.IsSubscribed("192.168.1.100", GroupRenderingControl) {
		t.Fatal("GroupRenderingControl should not be active during a sync session")
	}
}
