// Package sonos implements UPnP/SOAP control and GENA event handling for
// Sonos renderers: SOAP transport and retries, DIDL-Lite metadata, group
// join/leave, the subscription arbiter, the playback coordinator, and the
// GENA event router.
//
// Grounded on original_source packages/thaumic-core/src/sonos/* (services.rs,
// soap.rs, playback.rs, grouping.rs, didl.rs, subscription_arbiter.rs,
// gena_event_processor.rs) and apps/desktop/src-tauri/src/sonos/utils.rs.
// Reimplemented with net/http and encoding/xml in place of reqwest/quick-xml.
package sonos

// Service identifies a Sonos UPnP service used for both SOAP control and
// GENA event subscriptions.
type Service int

const (
	AVTransport Service = iota
	GroupRenderingControl
	RenderingControl
	ZoneGroupTopology
)

// URN returns the UPnP service URN used in SOAP requests.
func (s Service) URN() string {
	switch s {
	case AVTransport:
		return "urn:schemas-upnp-org:service:AVTransport:1"
	case GroupRenderingControl:
		return "urn:schemas-upnp-org:service:GroupRenderingControl:1"
	case RenderingControl:
		return "urn:schemas-upnp-org:service:RenderingControl:1"
	case ZoneGroupTopology:
		return "urn:schemas-upnp-org:service:ZoneGroupTopology:1"
	default:
		return ""
	}
}

// ControlPath returns the UPnP control endpoint path for SOAP requests.
func (s Service) ControlPath() string {
	switch s {
	case AVTransport:
		return "/MediaRenderer/AVTransport/Control"
	case GroupRenderingControl:
		return "/MediaRenderer/GroupRenderingControl/Control"
	case RenderingControl:
		return "/MediaRenderer/RenderingControl/Control"
	case ZoneGroupTopology:
		return "/ZoneGroupTopology/Control"
	default:
		return ""
	}
}

// EventPath returns the UPnP event endpoint path for GENA subscriptions.
func (s Service) EventPath() string {
	switch s {
	case AVTransport:
		return "/MediaRenderer/AVTransport/Event"
	case GroupRenderingControl:
		return "/MediaRenderer/GroupRenderingControl/Event"
	case RenderingControl:
		return "/MediaRenderer/RenderingControl/Event"
	case ZoneGroupTopology:
		return "/ZoneGroupTopology/Event"
	default:
		return ""
	}
}

// Name returns a human-readable name, used as the GENA dispatch key and in
// logs.
func (s Service) Name() string {
	switch s {
	case AVTransport:
		return "AVTransport"
	case GroupRenderingControl:
		return "GroupRenderingControl"
	case RenderingControl:
		return "RenderingControl"
	case ZoneGroupTopology:
		return "ZoneGroupTopology"
	default:
		return "Unknown"
	}
}

// SonosPort is the fixed control port every Sonos speaker listens on.
const SonosPort = 1400
