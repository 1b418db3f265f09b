package sonos

import "testing"

func TestStateCacheSpeakerVolumeAndMute(t *testing.T) {
	c := NewStateCache()

	if _, ok := c.SpeakerVolume("192.168.1.11"); ok {
		t.Fatal("expected no speaker volume before any event")
	}

	c.SetSpeakerVolume("192.168.1.11", 42)
	c.SetSpeakerMute("192.168.1.11", true)

	v, ok := c.SpeakerVolume("192.168.1.11")
	if !ok || v != 42 {
		t.Fatalf("SpeakerVolume = (%d, %v), want (42, true)", v, ok)
	}
	m, ok := c.SpeakerMute("192.168.1.11")
	if !ok || !m {
		t.Fatalf("SpeakerMute = (%v, %v), want (true, true)", m, ok)
	}
}

func TestStateCacheGroupAndSpeakerVolumeAreIndependent(t *testing.T) {
	c := NewStateCache()
	c.SetGroupVolume("192.168.1.11", 10, nil)
	c.SetSpeakerVolume("192.168.1.11", 90)

	gv, _ := c.GroupVolume("192.168.1.11")
	sv, _ := c.SpeakerVolume("192.168.1.11")
	if gv != 10 || sv != 90 {
		t.Fatalf("GroupVolume=%d SpeakerVolume=%d, want 10 and 90 independently", gv, sv)
	}
}

func TestStateCacheForgetClearsSpeakerState(t *testing.T) {
	c := NewStateCache()
	c.SetSpeakerVolume("192.168.1.11", 42)
	c.SetSpeakerMute("192.168.1.11", true)

	c.Forget("192.168.1.11")

	if _, ok := c.SpeakerVolume("192.168.1.11"); ok {
		t.Fatal("expected speaker volume to be forgotten")
	}
	if _, ok := c.SpeakerMute("192.168.1.11"); ok {
		t.Fatal("expected speaker mute to be forgotten")
	}
}
