package sonos

import (
	"context"
	"net/http"
	"testing"

	"github.com/kaelwillow/sonocast/internal/sonos/sonostest"
	"github.com/kaelwillow/sonocast/internal/stream"
)

func newTestCoordinator(tr *sonostest.Transport) *Coordinator {
	client := NewClientWithHTTP(tr.Client())
	mgr, _ := NewSubscriptionManagerWithHTTP(tr.Client())
	arbiter := NewSubscriptionArbiter(mgr)
	return NewCoordinator(client, arbiter, NewStateCache(), mgr)
}

func okResponse() sonostest.Response {
	return sonostest.Response{Body: `<u:Resp xmlns:u="x"></u:Resp>`}
}

func setupCoordinatorTransport() *sonostest.Transport {
	tr := sonostest.New()
	tr.SetResponse("POST", "/MediaRenderer/AVTransport/Control", okResponse())
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/RenderingControl/Event", sonostest.Response{
		Header: http.Header{"SID": {"uuid:rc"}},
	})
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/GroupRenderingControl/Event", sonostest.Response{
		Header: http.Header{"SID": {"uuid:grc"}},
	})
	tr.SetResponse("UNSUBSCRIBE", "/MediaRenderer/RenderingControl/Event", okResponse())
	tr.SetResponse("UNSUBSCRIBE", "/MediaRenderer/GroupRenderingControl/Event", okResponse())
	return tr
}

func TestCoordinator_StartPlayback_PicksCoordinatorAndTracksSession(t *testing.T) {
	tr := setupCoordinatorTransport()
	co := newTestCoordinator(tr)
	ctx := context.Background()

	groups := []ZoneGroup{{ID: "g1", CoordinatorIP: "192.168.1.10", CoordinatorUUID: "RINCON_1"}}
	ips := []string{"192.168.1.10", "192.168.1.11"}

	result := co.StartPlayback(ctx, "stream-1", ips, groups, "http://host/stream-1.wav", "http://cb", stream.CodecPCM, stream.AudioFormat{SampleRateHz: 44100, Channels: 2, BitsPerSample: 16}, nil, "")

	if result.CoordinatorIP != "192.168.1.10" {
		t.Fatalf("CoordinatorIP = %q, want the already-coordinator IP", result.CoordinatorIP)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("unexpected failures: %+v", result.Failed)
	}

	if url, ok := co.GetExpectedStream("192.168.1.10"); !ok || url != "http://host/stream-1.wav" {
		t.Fatalf("GetExpectedStream = %q, %v", url, ok)
	}
	if !co.arbiter.IsInSyncSession("192.168.1.11") {
		t.Fatal("non-coordinator IP should have entered the sync session")
	}
}

func TestCoordinator_StartPlayback_RepeatedIdenticalTargetSetIsNoop(t *testing.T) {
	tr := setupCoordinatorTransport()
	co := newTestCoordinator(tr)
	ctx := context.Background()

	var startEvents []string
	co.SetEventHooks(func(streamID, speakerIP string) {
		startEvents = append(startEvents, speakerIP)
	}, nil)

	groups := []ZoneGroup{{ID: "g1", CoordinatorIP: "192.168.1.10", CoordinatorUUID: "RINCON_1"}}
	ips := []string{"192.168.1.10", "192.168.1.11"}

	first := co.StartPlayback(ctx, "stream-1", ips, groups, "http://host/stream-1.wav", "http://cb", stream.CodecPCM, stream.AudioFormat{SampleRateHz: 44100, Channels: 2, BitsPerSample: 16}, nil, "")
	if len(first.Failed) != 0 {
		t.Fatalf("unexpected failures on first start: %+v", first.Failed)
	}
	requestsAfterFirst := len(tr.Requests())
	eventsAfterFirst := len(startEvents)

	second := co.StartPlayback(ctx, "stream-1", ips, groups, "http://host/stream-1.wav", "http://cb", stream.CodecPCM, stream.AudioFormat{SampleRateHz: 44100, Channels: 2, BitsPerSample: 16}, nil, "")
	if len(second.Failed) != 0 {
		t.Fatalf("unexpected failures on second start: %+v", second.Failed)
	}
	if second.CoordinatorIP != first.CoordinatorIP {
		t.Fatalf("CoordinatorIP changed across repeat start: %q -> %q", first.CoordinatorIP, second.CoordinatorIP)
	}

	if got := len(tr.Requests()); got != requestsAfterFirst {
		t.Fatalf("repeat start with identical target set issued %d new SOAP/GENA requests, want 0", got-requestsAfterFirst)
	}
	if got := len(startEvents); got != eventsAfterFirst {
		t.Fatalf("repeat start emitted %d new PlaybackStarted events, want 0 (events: %v)", got-eventsAfterFirst, startEvents)
	}
	if !co.arbiter.IsInSyncSession("192.168.1.11") {
		t.Fatal("non-coordinator IP should still be in the sync session after the no-op repeat")
	}
}

func TestCoordinator_StopPlayback_LeavesSyncSessionAndRemovesSession(t *testing.T) {
	tr := setupCoordinatorTransport()
	co := newTestCoordinator(tr)
	ctx := context.Background()

	groups := []ZoneGroup{{ID: "g1", CoordinatorIP: "192.168.1.10", CoordinatorUUID: "RINCON_1"}}
	ips := []string{"192.168.1.10", "192.168.1.11"}
	co.StartPlayback(ctx, "stream-1", ips, groups, "http://host/stream-1.wav", "http://cb", stream.CodecPCM, stream.AudioFormat{}, nil, "")

	failures := co.StopPlayback(ctx, "stream-1")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if co.arbiter.IsInSyncSession("192.168.1.11") {
		t.Fatal("sync session should be cleared after stop")
	}
	if _, ok := co.GetExpectedStream("192.168.1.10"); ok {
		t.Fatal("expected stream should be forgotten after stop")
	}
}

func TestCoordinator_HandleSourceChanged_CoordinatorTakeoverTearsDownSession(t *testing.T) {
	tr := setupCoordinatorTransport()
	co := newTestCoordinator(tr)
	ctx := context.Background()

	groups := []ZoneGroup{{ID: "g1", CoordinatorIP: "192.168.1.10", CoordinatorUUID: "RINCON_1"}}
	co.StartPlayback(ctx, "stream-1", []string{"192.168.1.10"}, groups, "http://host/s.wav", "http://cb", stream.CodecPCM, stream.AudioFormat{}, nil, "")

	co.HandleSourceChanged(ctx, "192.168.1.10")

	if _, ok := co.GetExpectedStream("192.168.1.10"); ok {
		t.Fatal("session should be torn down after coordinator takeover")
	}
}
