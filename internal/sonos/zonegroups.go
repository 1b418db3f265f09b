package sonos

import (
	"context"
	"encoding/xml"
	"log/slog"
	"strings"
)

// ParseZoneGroupXML parses a ZoneGroupState XML blob (already HTML-unescaped)
// into ZoneGroups. Zone Bridges (IsZoneBridge="1") are filtered out since
// they cannot play audio; groups left with no playable members are dropped.
func ParseZoneGroupXML(data string) []ZoneGroup {
	var groups []ZoneGroup

	var groupID, coordinatorUUID string
	var members []ZoneGroupMember
	var coordinatorIP, coordinatorZoneName, htSatChanMap string
	inGroup := false

	dec := xml.NewDecoder(strings.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "ZoneGroup":
				groupID, _ = GetXMLAttr(t, "ID")
				coordinatorUUID, _ = GetXMLAttr(t, "Coordinator")
				members = nil
				coordinatorIP, coordinatorZoneName, htSatChanMap = "", "", ""
				inGroup = true
			case "ZoneGroupMember", "Satellite":
				if v, ok := GetXMLAttr(t, "IsZoneBridge"); ok && v == "1" {
					continue
				}
				uuid, ok := GetXMLAttr(t, "UUID")
				if !ok {
					continue
				}
				location, ok := GetXMLAttr(t, "Location")
				if !ok {
					continue
				}
				ip, ok := ExtractIPFromLocation(location)
				if !ok {
					continue
				}
				zoneName, ok := GetXMLAttr(t, "ZoneName")
				if !ok {
					continue
				}

				if uuid == coordinatorUUID {
					coordinatorIP = ip
					coordinatorZoneName = zoneName
					htSatChanMap, _ = GetXMLAttr(t, "HTSatChanMapSet")
				}

				model := "Speaker"
				if htSatChanMap != "" {
					if role, ok := GetChannelRole(htSatChanMap, uuid); ok {
						model = role
					}
				} else if icon, ok := GetXMLAttr(t, "Icon"); ok {
					if m := ExtractModelFromIcon(icon); m != "unknown" {
						model = m
					}
				}

				members = append(members, ZoneGroupMember{UUID: uuid, IP: ip, ZoneName: zoneName, Model: model})
			}
		case xml.EndElement:
			if t.Name.Local != "ZoneGroup" || !inGroup {
				continue
			}
			inGroup = false
			if coordinatorUUID == "" || coordinatorIP == "" || len(members) == 0 {
				continue
			}
			groups = append(groups, ZoneGroup{
				ID:              groupID,
				Name:            zoneGroupName(coordinatorZoneName, members),
				CoordinatorUUID: coordinatorUUID,
				CoordinatorIP:   coordinatorIP,
				Members:         members,
			})
		}
	}

	return groups
}

// zoneGroupName derives a display name for the group: the coordinator's zone
// name alone for a single room, stereo pair, or home theater set (all
// members share one zone name); otherwise the coordinator's name followed by
// the other distinct zone names in member order, for an x-rincon join.
func zoneGroupName(coordinatorZoneName string, members []ZoneGroupMember) string {
	if coordinatorZoneName == "" {
		var unique []string
		for _, m := range members {
			if !contains(unique, m.ZoneName) {
				unique = append(unique, m.ZoneName)
			}
		}
		return strings.Join(unique, ", ")
	}

	var others []string
	for _, m := range members {
		if m.ZoneName != coordinatorZoneName && !contains(others, m.ZoneName) {
			others = append(others, m.ZoneName)
		}
	}
	if len(others) == 0 {
		return coordinatorZoneName
	}
	return coordinatorZoneName + ", " + strings.Join(others, ", ")
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// GetZoneGroups queries a speaker's ZoneGroupTopology service for the
// current topology. Any speaker on the network can answer this; it is not
// limited to coordinators.
func (c *Client) GetZoneGroups(ctx context.Context, ip string) ([]ZoneGroup, error) {
	resp, err := c.Send(ctx, ip, ZoneGroupTopology, "GetZoneGroupState", nil)
	if err != nil {
		return nil, err
	}

	decoded, ok := ExtractXMLText(resp, "ZoneGroupState")
	if !ok {
		slog.Warn("sonos: GetZoneGroupState response had no ZoneGroupState element", "ip", ip)
		return nil, nil
	}

	return ParseZoneGroupXML(decoded), nil
}
