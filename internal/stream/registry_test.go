package stream

import (
	"testing"
	"time"
)

func testFormat() AudioFormat {
	return AudioFormat{SampleRateHz: 48000, Channels: 2, BitsPerSample: 16}
}

func TestCreateOrGetIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)
	b := r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)
	if a != b {
		t.Fatalf("expected concurrent callers to observe the same stream handle")
	}
}

func TestPushFrameUnknownStreamReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	if err := r.PushFrame("missing", []byte("x")); err != ErrStreamNotFound {
		t.Fatalf("PushFrame on unknown id = %v, want ErrStreamNotFound", err)
	}
}

func TestPushFrameAppendsToRingAndBroadcasts(t *testing.T) {
	r := NewRegistry()
	r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)

	_, _, rx, unsubscribe, err := r.Subscribe("s1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if err := r.PushFrame("s1", []byte("frame-a")); err != nil {
		t.Fatalf("PushFrame: %v", err)
	}

	got := <-rx
	if string(got.Data) != "frame-a" {
		t.Fatalf("live frame = %q, want %q", got.Data, "frame-a")
	}

	st, _ := r.Get("s1")
	if st.RingLen() != 1 {
		t.Fatalf("RingLen = %d, want 1", st.RingLen())
	}
}

func TestSubscribeReturnsRingSnapshotAsPrefill(t *testing.T) {
	r := NewRegistry()
	r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)
	r.PushFrame("s1", []byte("a"))
	r.PushFrame("s1", []byte("b"))

	_, prefill, _, unsubscribe, err := r.Subscribe("s1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if len(prefill) != 2 || string(prefill[0]) != "a" || string(prefill[1]) != "b" {
		t.Fatalf("prefill = %v, want [a b]", prefill)
	}
}

func TestRingLenNeverExceedsBufferTarget(t *testing.T) {
	r := NewRegistry()
	// 200ms / 20ms = 10 frames capacity.
	r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)
	st, _ := r.Get("s1")

	for i := 0; i < 100; i++ {
		r.PushFrame("s1", []byte{byte(i)})
		if st.RingLen() > 10 {
			t.Fatalf("RingLen = %d, want <= 10", st.RingLen())
		}
	}
}

func TestRemoveRejectsSubsequentPushFrame(t *testing.T) {
	r := NewRegistry()
	r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)
	r.Remove("s1")

	if err := r.PushFrame("s1", []byte("x")); err != ErrStreamNotFound {
		t.Fatalf("PushFrame after Remove = %v, want ErrStreamNotFound", err)
	}
	if _, ok := r.Get("s1"); ok {
		t.Fatalf("expected stream to be gone from the registry after Remove")
	}
}

func TestRemoveInvokesEndedListeners(t *testing.T) {
	r := NewRegistry()
	r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)

	var endedID string
	r.OnEnded(func(id string) { endedID = id })
	r.Remove("s1")

	if endedID != "s1" {
		t.Fatalf("ended listener fired with id %q, want %q", endedID, "s1")
	}
}

func TestUpdateMetadataIsVisibleOnNextRead(t *testing.T) {
	r := NewRegistry()
	r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)

	if err := r.UpdateMetadata("s1", Metadata{Title: "T", Artist: "A"}); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	st, _ := r.Get("s1")
	got := st.Metadata()
	if got.Title != "T" || got.Artist != "A" {
		t.Fatalf("Metadata() = %+v, want {Title:T Artist:A}", got)
	}
}

func TestSilenceFrameOnlyForPCM(t *testing.T) {
	r := NewRegistry()
	pcm := r.CreateOrGet("pcm1", CodecPCM, testFormat(), 20*time.Millisecond, 200)
	mp3 := r.CreateOrGet("mp3-1", CodecMP3, AudioFormat{}, 20*time.Millisecond, 200)

	if len(pcm.SilenceFrame()) == 0 {
		t.Fatalf("expected a non-empty silence frame for PCM")
	}
	if mp3.SilenceFrame() != nil {
		t.Fatalf("expected nil silence frame for a compressed codec, got %v", mp3.SilenceFrame())
	}
}

func TestListReturnsAllLiveStreamIDs(t *testing.T) {
	r := NewRegistry()
	r.CreateOrGet("s1", CodecPCM, testFormat(), 20*time.Millisecond, 200)
	r.CreateOrGet("s2", CodecPCM, testFormat(), 20*time.Millisecond, 200)

	ids := r.List()
	if len(ids) != 2 {
		t.Fatalf("List() = %v, want 2 ids", ids)
	}
}
