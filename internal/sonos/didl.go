package sonos

import (
	"fmt"

	"github.com/kaelwillow/sonocast/internal/protocol"
	"github.com/kaelwillow/sonocast/internal/stream"
)

// FormatDIDLLite builds the DIDL-Lite metadata XML sent once at playback
// start via SetAVTransportURI.
//
// DIDL-Lite is never refreshed after the initial SetAVTransportURI call, and
// ICY StreamTitle only carries a single "Artist - Title" string, so dc:title
// and upnp:album here are static and branded ("{source} • Sonocast") rather
// than the current track, to avoid a stale title ever being shown as current.
// The actual, updating track name lives in the ICY stream (see internal/icy).
func FormatDIDLLite(streamURL string, codec stream.Codec, format stream.AudioFormat, meta *stream.Metadata, artworkURL string) string {
	title := protocol.AppName
	if meta != nil && meta.Source != "" {
		title = meta.Source + " • " + protocol.AppName
	}
	artist := protocol.AppName
	album := title

	var didl string
	didl += `<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">`
	didl += `<item id="0" parentID="-1" restricted="true">`
	didl += "<dc:title>" + EscapeXML(title) + "</dc:title>"
	didl += "<dc:creator>" + EscapeXML(artist) + "</dc:creator>"
	didl += "<upnp:album>" + EscapeXML(album) + "</upnp:album>"
	// Android's Sonos app requires HTTPS album art; iOS tolerates HTTP.
	didl += "<upnp:albumArtURI>" + EscapeXML(artworkURL) + "</upnp:albumArtURI>"
	didl += "<upnp:class>object.item.audioItem.audioBroadcast</upnp:class>"
	didl += fmt.Sprintf(
		`<res protocolInfo="http-get:*:%s:*" sampleFrequency="%d" nrAudioChannels="%d" bitsPerSample="%d">%s</res>`,
		codec.MimeType(), format.SampleRateHz, format.Channels, format.BitsPerSample, EscapeXML(streamURL),
	)
	didl += "</item>"
	didl += "</DIDL-Lite>"
	return didl
}
