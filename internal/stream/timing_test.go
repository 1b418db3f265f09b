package stream

import (
	"testing"
	"time"
)

func TestTimingMapNoEpochForUnknownIP(t *testing.T) {
	tm := newTimingMap()
	if _, ok := tm.CurrentEpochFor("192.168.1.50"); ok {
		t.Fatalf("expected no committed epoch for an IP that has never connected")
	}
}

func TestTimingMapCandidateNotVisibleUntilCommitted(t *testing.T) {
	tm := newTimingMap()
	candidate := tm.nextEpochCandidate()
	if _, ok := tm.CurrentEpochFor("192.168.1.50"); ok {
		t.Fatalf("candidate epoch %d should not be visible before StartEpoch commits it", candidate)
	}
}

func TestTimingMapStartEpochCommitsAndIsVisible(t *testing.T) {
	tm := newTimingMap()
	candidate := tm.nextEpochCandidate()
	connectedAt := time.Now()

	tm.StartEpoch(candidate, connectedAt, "192.168.1.50")

	got, ok := tm.CurrentEpochFor("192.168.1.50")
	if !ok {
		t.Fatalf("expected committed epoch to be visible")
	}
	if got != candidate {
		t.Fatalf("CurrentEpochFor = %d, want %d", got, candidate)
	}
}

func TestTimingMapLatencyMeasuresFromConnectToFirstAudio(t *testing.T) {
	tm := newTimingMap()
	candidate := tm.nextEpochCandidate()
	connectedAt := time.Now().Add(-50 * time.Millisecond)
	tm.StartEpoch(candidate, connectedAt, "192.168.1.50")

	lat, ok := tm.LatencyFor("192.168.1.50")
	if !ok {
		t.Fatalf("expected a latency measurement after StartEpoch")
	}
	if lat < 40*time.Millisecond {
		t.Fatalf("latency = %v, want roughly >= 50ms", lat)
	}
}

func TestTimingMapEpochCandidatesAreMonotonic(t *testing.T) {
	tm := newTimingMap()
	a := tm.nextEpochCandidate()
	b := tm.nextEpochCandidate()
	if b <= a {
		t.Fatalf("expected monotonically increasing epoch candidates, got %d then %d", a, b)
	}
}

func TestTimingMapReconnectReplacesEpoch(t *testing.T) {
	tm := newTimingMap()
	first := tm.nextEpochCandidate()
	tm.StartEpoch(first, time.Now(), "192.168.1.50")

	second := tm.nextEpochCandidate()
	tm.StartEpoch(second, time.Now(), "192.168.1.50")

	got, ok := tm.CurrentEpochFor("192.168.1.50")
	if !ok || got != second {
		t.Fatalf("CurrentEpochFor = (%d, %v), want (%d, true) after reconnect", got, ok, second)
	}
}
