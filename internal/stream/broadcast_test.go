package stream

import "testing"

func TestHubFanOutToMultipleSubscribers(t *testing.T) {
	h := newHub(4)
	s1 := h.subscribe()
	s2 := h.subscribe()
	defer h.unsubscribe(s1)
	defer h.unsubscribe(s2)

	h.publish([]byte("frame1"))

	f1 := <-s1.ch
	f2 := <-s2.ch
	if string(f1.Data) != "frame1" || string(f2.Data) != "frame1" {
		t.Fatalf("both subscribers should observe the same published frame")
	}
}

func TestHubSlowSubscriberGetsLaggedMarker(t *testing.T) {
	h := newHub(1)
	sub := h.subscribe()
	defer h.unsubscribe(sub)

	// Fill the one-deep buffer, then publish past capacity without draining.
	h.publish([]byte("a"))
	h.publish([]byte("b"))
	h.publish([]byte("c"))

	got := <-sub.ch
	if got.Lagged == 0 {
		t.Fatalf("expected a Lagged marker after overflowing a slow subscriber's buffer, got %+v", got)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := newHub(2)
	sub := h.subscribe()
	h.unsubscribe(sub)

	_, ok := <-sub.ch
	if ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
}

func TestHubCloseStopsFurtherPublishes(t *testing.T) {
	h := newHub(2)
	sub := h.subscribe()
	h.close()

	h.publish([]byte("after-close"))

	_, ok := <-sub.ch
	if ok {
		t.Fatalf("expected channel to be closed once hub is closed")
	}
}

func TestHubSubscriberCount(t *testing.T) {
	h := newHub(2)
	if h.subscriberCount() != 0 {
		t.Fatalf("subscriberCount = %d, want 0", h.subscriberCount())
	}
	s1 := h.subscribe()
	s2 := h.subscribe()
	if h.subscriberCount() != 2 {
		t.Fatalf("subscriberCount = %d, want 2", h.subscriberCount())
	}
	h.unsubscribe(s1)
	if h.subscriberCount() != 1 {
		t.Fatalf("subscriberCount = %d, want 1", h.subscriberCount())
	}
	h.unsubscribe(s2)
}
