package stream

import (
	"testing"
	"time"
)

func TestRingEvictsOldestOnOverflow(t *testing.T) {
	r := newRing(3)
	r.push([]byte("a"))
	r.push([]byte("b"))
	r.push([]byte("c"))
	r.push([]byte("d"))

	got := r.snapshot()
	if len(got) != 3 {
		t.Fatalf("len(snapshot) = %d, want 3", len(got))
	}
	want := []string{"b", "c", "d"}
	for i, w := range want {
		if string(got[i]) != w {
			t.Fatalf("snapshot[%d] = %q, want %q", i, got[i], w)
		}
	}
}

func TestRingLenNeverExceedsCapacity(t *testing.T) {
	r := newRing(5)
	for i := 0; i < 50; i++ {
		r.push([]byte{byte(i)})
		if r.len() > 5 {
			t.Fatalf("ring len = %d, want <= 5", r.len())
		}
	}
}

func TestRingMinimumCapacityOne(t *testing.T) {
	r := newRing(0)
	r.push([]byte("x"))
	r.push([]byte("y"))
	got := r.snapshot()
	if len(got) != 1 || string(got[0]) != "y" {
		t.Fatalf("snapshot = %v, want single most-recent frame", got)
	}
}

func TestRingCapacityDerivation(t *testing.T) {
	cases := []struct {
		bufferTargetMS int64
		frameMS        int64
		want           int
	}{
		{200, 20, 10},
		{190, 20, 10}, // ceil
		{1, 20, 1},
		{0, 20, 1},
		{1_000_000, 20, PlatformMaxRingFrames}, // clamped
	}
	for _, tc := range cases {
		got := ringCapacity(tc.bufferTargetMS, time.Duration(tc.frameMS)*time.Millisecond)
		if got != tc.want {
			t.Errorf("ringCapacity(%d, %dms) = %d, want %d", tc.bufferTargetMS, tc.frameMS, got, tc.want)
		}
	}
}
