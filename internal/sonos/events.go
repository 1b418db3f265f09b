package sonos

import (
	"html"
	"strconv"
	"strings"
)

// TransportState mirrors the AVTransport LastChange TransportState values.
type TransportState int

const (
	TransportUnknown TransportState = iota
	TransportPlaying
	TransportPaused
	TransportStopped
	TransportTransitioning
)

func (s TransportState) String() string {
	switch s {
	case TransportPlaying:
		return "Playing"
	case TransportPaused:
		return "Paused"
	case TransportStopped:
		return "Stopped"
	case TransportTransitioning:
		return "Transitioning"
	default:
		return "Unknown"
	}
}

func parseTransportState(s string) TransportState {
	switch s {
	case "PLAYING":
		return TransportPlaying
	case "PAUSED_PLAYBACK", "PAUSED":
		return TransportPaused
	case "STOPPED":
		return TransportStopped
	case "TRANSITIONING":
		return TransportTransitioning
	default:
		return TransportUnknown
	}
}

// Event is the tagged union of everything the GENA event router can emit.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Event struct {
	Kind        EventKind
	SpeakerIP   string
	State       TransportState
	CurrentURI  string
	ExpectedURI string
	Volume      int
	Muted       bool
	Groups      []ZoneGroup
	Service     Service
	Reason      string
	TimestampMS int64
}

type EventKind int

const (
	EventTransportState EventKind = iota
	EventGroupVolume
	EventGroupMute
	EventSpeakerVolume
	EventSpeakerMute
	EventSourceChanged
	EventZoneGroupsUpdated
	EventSubscriptionLost
)

// ZoneGroupMember is one speaker within a ZoneGroup.
type ZoneGroupMember struct {
	UUID     string
	IP       string
	ZoneName string
	Model    string
}

// ZoneGroup is a coordinator and its synchronized members.
type ZoneGroup struct {
	ID              string
	Name            string
	CoordinatorUUID string
	CoordinatorIP   string
	Members         []ZoneGroupMember
}

// BuildAVTransportEvents parses an AVTransport NOTIFY body and, if expected
// is non-empty, compares the reported current URI against it to detect an
// out-of-band source change (someone played something else on the speaker).
func BuildAVTransportEvents(ip, body string, expected string, nowMS int64) []Event {
	var events []Event

	lastChange, ok := ExtractXMLText(body, "LastChange")
	if !ok {
		return events
	}
	unescaped := html.UnescapeString(lastChange)
	attrs := ExtractEmptyValAttrs(unescaped, []string{"TransportState", "CurrentTrackURI"})

	var currentURI string
	hasURI := false
	if val, ok := attrs["CurrentTrackURI"]; ok {
		decoded := html.UnescapeString(val)
		if decoded != "" {
			currentURI = decoded
			hasURI = true
		}
	}

	if val, ok := attrs["TransportState"]; ok {
		state := parseTransportState(val)
		if state != TransportUnknown {
			events = append(events, Event{
				Kind:        EventTransportState,
				SpeakerIP:   ip,
				State:       state,
				CurrentURI:  currentURI,
				TimestampMS: nowMS,
			})
		}
	}

	if hasURI && expected != "" && !isMatchingStreamURL(currentURI, expected) {
		events = append(events, Event{
			Kind:        EventSourceChanged,
			SpeakerIP:   ip,
			CurrentURI:  currentURI,
			ExpectedURI: expected,
			TimestampMS: nowMS,
		})
	}

	return events
}

// BuildGroupRenderingEvents parses a GroupRenderingControl NOTIFY body.
// Unlike AVTransport, GroupVolume/GroupMute appear as direct element
// content rather than inside a LastChange blob.
func BuildGroupRenderingEvents(ip, body string, nowMS int64) []Event {
	var events []Event

	if volStr, ok := ExtractXMLText(body, "GroupVolume"); ok {
		if v, err := strconv.Atoi(volStr); err == nil {
			if v > 100 {
				v = 100
			}
			if v < 0 {
				v = 0
			}
			events = append(events, Event{Kind: EventGroupVolume, SpeakerIP: ip, Volume: v, TimestampMS: nowMS})
		}
	}

	if muteStr, ok := ExtractXMLText(body, "GroupMute"); ok {
		events = append(events, Event{Kind: EventGroupMute, SpeakerIP: ip, Muted: muteStr == "1", TimestampMS: nowMS})
	}

	return events
}

// BuildRenderingControlEvents parses a per-speaker RenderingControl NOTIFY
// body. Unlike GroupRenderingControl, RenderingControl wraps Volume/Mute as
// LastChange-embedded self-closing elements carrying a "val" attribute
// (<Volume channel="Master" val="42"/>), the same shape AVTransport's
// LastChange uses for TransportState.
func BuildRenderingControlEvents(ip, body string, nowMS int64) []Event {
	var events []Event

	lastChange, ok := ExtractXMLText(body, "LastChange")
	if !ok {
		return events
	}
	unescaped := html.UnescapeString(lastChange)
	attrs := ExtractEmptyValAttrs(unescaped, []string{"Volume", "Mute"})

	if volStr, ok := attrs["Volume"]; ok {
		if v, err := strconv.Atoi(volStr); err == nil {
			if v > 100 {
				v = 100
			}
			if v < 0 {
				v = 0
			}
			events = append(events, Event{Kind: EventSpeakerVolume, SpeakerIP: ip, Volume: v, TimestampMS: nowMS})
		}
	}

	if muteStr, ok := attrs["Mute"]; ok {
		events = append(events, Event{Kind: EventSpeakerMute, SpeakerIP: ip, Muted: muteStr == "1", TimestampMS: nowMS})
	}

	return events
}

// BuildZoneTopologyEvents parses a ZoneGroupTopology NOTIFY body into a
// single ZoneGroupsUpdated event, or nil if no groups were present.
func BuildZoneTopologyEvents(body string, nowMS int64) []Event {
	zoneState, ok := ExtractXMLText(body, "ZoneGroupState")
	if !ok {
		return nil
	}
	unescaped := html.UnescapeString(zoneState)
	groups := ParseZoneGroupXML(unescaped)
	if len(groups) == 0 {
		return nil
	}
	return []Event{{Kind: EventZoneGroupsUpdated, Groups: groups, TimestampMS: nowMS}}
}

// isMatchingStreamURL compares the host+path portion of two stream URIs,
// tolerating nested schemes Sonos reports (e.g. "aac://http://host/path").
func isMatchingStreamURL(current, expected string) bool {
	return strings.EqualFold(hostPath(current), hostPath(expected))
}

func hostPath(uri string) string {
	if idx := strings.LastIndex(uri, "://"); idx >= 0 {
		return uri[idx+3:]
	}
	return uri
}
