package discovery

import "testing"

func TestExtractIPFromLocationURL(t *testing.T) {
	ip, ok := extractIPFromLocationURL("http://192.168.1.10:1400/xml/device_description.xml")
	if !ok || ip != "192.168.1.10" {
		t.Fatalf("got %q, %v", ip, ok)
	}

	if _, ok := extractIPFromLocationURL("not-a-url"); ok {
		t.Fatal("expected extraction to fail on a non-URL")
	}
}

func TestParseSSDPResponse(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: http://192.168.1.10:1400/xml/device_description.xml\r\n" +
		"USN: uuid:RINCON_ABC123::urn:schemas-upnp-org:device:ZonePlayer:1\r\n" +
		"ST: urn:schemas-upnp-org:device:ZonePlayer:1\r\n\r\n"

	speaker := parseSSDPResponse(raw, MethodSSDPBroadcast)
	if speaker == nil {
		t.Fatal("expected a parsed speaker")
	}
	if speaker.IP != "192.168.1.10" {
		t.Errorf("IP = %q", speaker.IP)
	}
	if speaker.UUID != "RINCON_ABC123" {
		t.Errorf("UUID = %q", speaker.UUID)
	}
	if !speaker.Methods[MethodSSDPBroadcast] {
		t.Error("expected MethodSSDPBroadcast recorded")
	}
}

func TestParseSSDPResponse_IgnoresNonSonosDevices(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"LOCATION: http://192.168.1.20:80/description.xml\r\n" +
		"USN: uuid:some-other-device::urn:schemas-upnp-org:device:Printer:1\r\n\r\n"

	if speaker := parseSSDPResponse(raw, MethodSSDPBroadcast); speaker != nil {
		t.Fatalf("expected nil for a non-Sonos USN, got %+v", speaker)
	}
}
