package discovery

import "testing"

func TestNormalizeUUID_StripsUUIDPrefix(t *testing.T) {
	if got := NormalizeUUID("uuid:RINCON_ABC123"); got != "RINCON_ABC123" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeUUID_StripsURNSuffix(t *testing.T) {
	got := NormalizeUUID("RINCON_ABC123::urn:schemas-upnp-org:device:ZonePlayer:1")
	if got != "RINCON_ABC123" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeUUID_StripsBothPrefixAndSuffix(t *testing.T) {
	got := NormalizeUUID("uuid:RINCON_ABC123::urn:schemas-upnp-org:device:ZonePlayer:1")
	if got != "RINCON_ABC123" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeUUID_StripsTopologySuffix(t *testing.T) {
	if got := NormalizeUUID("RINCON_ABC12301400:58"); got != "RINCON_ABC12301400" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeUUID_StripsDeviceSuffixes(t *testing.T) {
	cases := map[string]string{
		"RINCON_ABC123_MS": "RINCON_ABC123",
		"RINCON_ABC123_MR": "RINCON_ABC123",
		"RINCON_ABC123_LR": "RINCON_ABC123",
	}
	for in, want := range cases {
		if got := NormalizeUUID(in); got != want {
			t.Errorf("NormalizeUUID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeUUID_StripsMultipleSuffixes(t *testing.T) {
	if got := NormalizeUUID("RINCON_ABC123_MS_LR"); got != "RINCON_ABC123" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeUUID_PreservesNonRincon(t *testing.T) {
	if got := NormalizeUUID("some:123"); got != "some:123" {
		t.Fatalf("got %q, want unchanged", got)
	}
}

func TestIsVirtualInterface(t *testing.T) {
	virtual := []string{"lo", "docker0", "veth1234", "br-abc"}
	for _, name := range virtual {
		if !IsVirtualInterface(name) {
			t.Errorf("IsVirtualInterface(%q) = false, want true", name)
		}
	}
	real := []string{"eth0", "en0", "wlan0"}
	for _, name := range real {
		if IsVirtualInterface(name) {
			t.Errorf("IsVirtualInterface(%q) = true, want false", name)
		}
	}
}

func TestDiscoveredSpeaker_Merge(t *testing.T) {
	speaker1 := NewDiscoveredSpeaker("192.168.1.10", "RINCON_ABC123", MethodMDNS)
	speaker2 := NewDiscoveredSpeakerWithLocation(
		"192.168.1.10", "RINCON_ABC123",
		"http://192.168.1.10:1400/xml/device_description.xml", MethodSSDPMulticast,
	)

	speaker1.Merge(speaker2)

	if !speaker1.Methods[MethodMDNS] {
		t.Error("expected MethodMDNS to survive the merge")
	}
	if !speaker1.Methods[MethodSSDPMulticast] {
		t.Error("expected MethodSSDPMulticast to be unioned in")
	}
	if speaker1.Location == "" {
		t.Error("expected location to be adopted from the merged-in speaker")
	}
}

func TestSpeaker_IsInfrastructureDevice(t *testing.T) {
	boost := Speaker{ModelName: "Sonos Boost"}
	if !boost.IsInfrastructureDevice() {
		t.Error("Boost should be infrastructure")
	}
	arc := Speaker{ModelName: "Sonos Arc"}
	if arc.IsInfrastructureDevice() {
		t.Error("Arc should not be infrastructure")
	}
}
