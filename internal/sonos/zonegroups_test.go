package sonos

import "testing"

func memberXML(uuid, ip, zoneName string) string {
	return `<ZoneGroupMember UUID="` + uuid + `" Location="http://` + ip + `:1400/xml/device_description.xml" ZoneName="` + zoneName + `" Icon="x-rincon-roomicon:living"/>`
}

func groupXML(id, coordinatorUUID string, members ...string) string {
	out := `<ZoneGroup Coordinator="` + coordinatorUUID + `" ID="` + id + `">`
	for _, m := range members {
		out += m
	}
	return out + `</ZoneGroup>`
}

func zoneGroupsXML(groups ...string) string {
	out := `<ZoneGroups>`
	for _, g := range groups {
		out += g
	}
	return out + `</ZoneGroups>`
}

func TestParseZoneGroupXML_SingleSpeakerUsesZoneName(t *testing.T) {
	xml := zoneGroupsXML(groupXML("G1", "RINCON_KITCHEN", memberXML("RINCON_KITCHEN", "192.168.1.10", "Kitchen")))
	groups := ParseZoneGroupXML(xml)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Name != "Kitchen" {
		t.Fatalf("Name = %q, want Kitchen", groups[0].Name)
	}
}

func TestParseZoneGroupXML_StereoPairUsesCoordinatorName(t *testing.T) {
	xml := zoneGroupsXML(groupXML("G1", "RINCON_LEFT",
		memberXML("RINCON_LEFT", "192.168.1.10", "Living Room"),
		memberXML("RINCON_RIGHT", "192.168.1.11", "Living Room"),
	))
	groups := ParseZoneGroupXML(xml)
	if len(groups) != 1 || groups[0].Name != "Living Room" {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestParseZoneGroupXML_MultiRoomJoinCombinesNamesCoordinatorFirst(t *testing.T) {
	xml := zoneGroupsXML(groupXML("G1", "RINCON_OFFICE",
		memberXML("RINCON_KITCHEN", "192.168.1.10", "Kitchen"),
		memberXML("RINCON_OFFICE", "192.168.1.20", "Office"),
	))
	groups := ParseZoneGroupXML(xml)
	if len(groups) != 1 || groups[0].Name != "Office, Kitchen" {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestParseZoneGroupXML_SkipsZoneBridges(t *testing.T) {
	bridge := `<ZoneGroupMember UUID="RINCON_BRIDGE" Location="http://192.168.1.99:1400/xml/device_description.xml" ZoneName="Bridge" IsZoneBridge="1"/>`
	xml := zoneGroupsXML(groupXML("G1", "RINCON_KITCHEN", memberXML("RINCON_KITCHEN", "192.168.1.10", "Kitchen"), bridge))
	groups := ParseZoneGroupXML(xml)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].Members) != 1 {
		t.Fatalf("expected bridge filtered out, got %d members", len(groups[0].Members))
	}
}

func TestParseZoneGroupXML_GroupWithOnlyBridgeIsDropped(t *testing.T) {
	bridge := `<ZoneGroupMember UUID="RINCON_BRIDGE" Location="http://192.168.1.99:1400/xml/device_description.xml" ZoneName="Bridge" IsZoneBridge="1"/>`
	xml := zoneGroupsXML(groupXML("G1", "RINCON_BRIDGE", bridge))
	groups := ParseZoneGroupXML(xml)
	if len(groups) != 0 {
		t.Fatalf("got %d groups, want 0", len(groups))
	}
}
