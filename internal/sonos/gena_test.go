package sonos

import (
	"context"
	"net/http"
	"testing"

	"github.com/kaelwillow/sonocast/internal/sonos/sonostest"
)

func TestSubscriptionManager_SubscribeThenIsSubscribed(t *testing.T) {
	tr := sonostest.New()
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/AVTransport/Event", sonostest.Response{
		Header: http.Header{"SID": {"uuid:abc-123"}, "TIMEOUT": {"Second-1800"}},
	})

	mgr, _ := NewSubscriptionManagerWithHTTP(tr.Client())

	if err := mgr.Subscribe(context.Background(), "192.168.1.10", AVTransport, "http://callback/notify"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !mgr.IsSubscribed("192.168.1.10", AVTransport) {
		t.Fatal("expected subscription to be active")
	}
	if mgr.SubscriptionCount() != 1 {
		t.Fatalf("SubscriptionCount = %d, want 1", mgr.SubscriptionCount())
	}
}

func TestSubscriptionManager_SubscribeMissingSIDFails(t *testing.T) {
	tr := sonostest.New()
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/AVTransport/Event", sonostest.Response{})

	mgr, _ := NewSubscriptionManagerWithHTTP(tr.Client())
	err := mgr.Subscribe(context.Background(), "192.168.1.10", AVTransport, "http://callback/notify")
	if err == nil {
		t.Fatal("expected an error for a missing SID header")
	}
	if mgr.IsSubscribed("192.168.1.10", AVTransport) {
		t.Fatal("a failed subscribe must not be left marked active")
	}
}

func TestSubscriptionManager_DuplicateSubscribeIsNoop(t *testing.T) {
	tr := sonostest.New()
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/AVTransport/Event", sonostest.Response{
		Header: http.Header{"SID": {"uuid:abc-123"}, "TIMEOUT": {"Second-1800"}},
	})

	mgr, _ := NewSubscriptionManagerWithHTTP(tr.Client())
	ctx := context.Background()
	if err := mgr.Subscribe(ctx, "192.168.1.10", AVTransport, "http://cb"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	if err := mgr.Subscribe(ctx, "192.168.1.10", AVTransport, "http://cb"); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	if got := len(tr.Requests()); got != 1 {
		t.Fatalf("made %d SUBSCRIBE requests, want 1 (second call should be a no-op)", got)
	}
}

func TestSubscriptionManager_UnsubscribeRemovesLocallyEvenOnFailure(t *testing.T) {
	tr := sonostest.New()
	tr.SetResponse("SUBSCRIBE", "/MediaRenderer/AVTransport/Event", sonostest.Response{
		Header: http.Header{"SID": {"uuid:abc-123"}},
	})
	tr.SetResponse("UNSUBSCRIBE", "/MediaRenderer/AVTransport/Event", sonostest.Response{Status: 500})

	mgr, _ := NewSubscriptionManagerWithHTTP(tr.Client())
	ctx := context.Background()
	mgr.Subscribe(ctx, "192.168.1.10", AVTransport, "http://cb")
	mgr.Unsubscribe(ctx, "uuid:abc-123")

	if mgr.IsSubscribed("192.168.1.10", AVTransport) {
		t.Fatal("subscription should be removed locally regardless of UNSUBSCRIBE response")
	}
}

func TestSubscriptionManager_HandleNotify_UnknownSIDIsIgnored(t *testing.T) {
	tr := sonostest.New()
	mgr, events := NewSubscriptionManagerWithHTTP(tr.Client())

	mgr.HandleNotify("uuid:does-not-exist", "<propertyset/>", 1000)

	select {
	case e := <-events:
		t.Fatalf("unexpected event for unknown SID: %+v", e)
	default:
	}
}
