package cadence

import (
	"context"
	"testing"
	"time"

	"github.com/kaelwillow/sonocast/internal/cadence/cadencetest"
)

func TestRun_EmitsPrefillThenSilenceOnUnderrun(t *testing.T) {
	clock := cadencetest.NewManualClock()
	frame := time.Millisecond * 20
	silence := []byte{0, 0, 0, 0}
	prefill := [][]byte{{1, 1, 1, 1}, {2, 2, 2, 2}}

	live := make(chan Frame)
	out := make(chan []byte, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Run(ctx, Config{
		FrameDuration: frame,
		SilenceFrame:  silence,
		QueueSize:     4,
		Clock:         clock,
	}, Source{Prefill: prefill, Live: live}, out, Hooks{})

	got1 := <-out
	if string(got1) != string(prefill[0]) {
		t.Fatalf("frame 1 = %v, want prefill[0]", got1)
	}
	clock.Advance(frame)

	got2 := <-out
	if string(got2) != string(prefill[1]) {
		t.Fatalf("frame 2 = %v, want prefill[1]", got2)
	}
	clock.Advance(frame)

	// Prefill exhausted, nothing published yet: should get silence.
	got3 := <-out
	if string(got3) != string(silence) {
		t.Fatalf("frame 3 = %v, want silence", got3)
	}
}

// pollUntilReal reads from out, advancing clock between reads, until a
// non-silence frame arrives or the attempt budget is exhausted. The feeder
// goroutine races the first tick to populate the queue, so an early tick or
// two may legitimately see silence before the live frame lands. Each poll
// sleeps briefly before advancing the clock so the feeder goroutine gets
// scheduled even with a single CPU.
func pollUntilReal(t *testing.T, out <-chan []byte, clock *cadencetest.ManualClock, frame time.Duration, silence []byte) []byte {
	t.Helper()
	for i := 0; i < 50; i++ {
		got := <-out
		if string(got) != string(silence) {
			return got
		}
		time.Sleep(time.Millisecond)
		clock.Advance(frame)
	}
	t.Fatal("never observed a non-silence frame")
	return nil
}

func TestRun_CommitsEpochOnFirstRealFrame(t *testing.T) {
	clock := cadencetest.NewManualClock()
	frame := time.Millisecond * 20
	silence := []byte{0, 0}

	live := make(chan Frame, 1)
	out := make(chan []byte, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := 0
	hooks := Hooks{OnFirstRealFrame: func() { fired++ }}

	go Run(ctx, Config{
		FrameDuration: frame,
		SilenceFrame:  silence,
		QueueSize:     4,
		Clock:         clock,
	}, Source{Live: live}, out, hooks)

	live <- Frame{Data: []byte{9, 9}}
	got := pollUntilReal(t, out, clock, frame, silence)
	if string(got) != "\x09\x09" {
		t.Fatalf("frame = %v, want the real frame", got)
	}

	if fired != 1 {
		t.Fatalf("OnFirstRealFrame fired %d times, want 1", fired)
	}

	// A second real frame must not refire the hook.
	clock.Advance(frame)
	live <- Frame{Data: []byte{7, 7}}
	pollUntilReal(t, out, clock, frame, silence)
	if fired != 1 {
		t.Fatalf("OnFirstRealFrame fired %d times after second frame, want 1", fired)
	}
}

func TestRun_ReportsLag(t *testing.T) {
	clock := cadencetest.NewManualClock()
	frame := time.Millisecond * 20
	silence := []byte{0}

	live := make(chan Frame, 1)
	out := make(chan []byte, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	laggedN := 0
	hooks := Hooks{OnLagged: func(n int) { laggedN = n }}

	go Run(ctx, Config{
		FrameDuration: frame,
		SilenceFrame:  silence,
		QueueSize:     4,
		Clock:         clock,
	}, Source{Live: live}, out, hooks)

	live <- Frame{Lagged: 3}
	for i := 0; i < 50 && laggedN == 0; i++ {
		<-out
		time.Sleep(time.Millisecond) // let the feeder goroutine run
		clock.Advance(frame)
	}

	if laggedN != 3 {
		t.Fatalf("laggedN = %d, want 3", laggedN)
	}
}

func TestRun_ClosesOutOnCancel(t *testing.T) {
	clock := cadencetest.NewManualClock()
	live := make(chan Frame)
	out := make(chan []byte)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Run(ctx, Config{
			FrameDuration: time.Millisecond,
			SilenceFrame:  []byte{0},
			QueueSize:     1,
			Clock:         clock,
		}, Source{Live: live}, out, Hooks{})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if _, ok := <-out; ok {
		t.Fatal("out channel was not closed")
	}
}
