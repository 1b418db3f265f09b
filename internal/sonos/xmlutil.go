package sonos

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/kaelwillow/sonocast/internal/stream"
)

// BuildSonosURL builds a speaker's control/event URL for endpoint.
func BuildSonosURL(ip, endpoint string) string {
	return fmt.Sprintf("http://%s:%d%s", ip, SonosPort, endpoint)
}

// NormalizeSonosURI rewrites an http(s):// stream URL to the
// x-rincon-mp3radio:// scheme Sonos requires for internet-radio-style
// sources.
func NormalizeSonosURI(uri string) string {
	if strings.HasPrefix(uri, "https://") {
		return "x-rincon-mp3radio://" + strings.TrimPrefix(uri, "https://")
	}
	return "x-rincon-mp3radio://" + strings.TrimPrefix(uri, "http://")
}

// BuildSonosStreamURI builds a Sonos-compatible stream URI for codec. WAV
// and FLAC keep http:// with a format-identifying suffix (Sonos identifies
// format by URL suffix, not Content-Type); MP3/AAC use the
// x-rincon-mp3radio:// scheme.
func BuildSonosStreamURI(baseURI string, codec stream.Codec) string {
	switch codec {
	case stream.CodecPCM:
		return baseURI + ".wav"
	case stream.CodecFLAC:
		return baseURI + ".flac"
	default:
		return NormalizeSonosURI(baseURI)
	}
}

// ExtractXMLText returns the decoded text content of the first element
// named elementName (matched by local name, ignoring namespace prefixes).
func ExtractXMLText(data, elementName string) (string, bool) {
	dec := xml.NewDecoder(strings.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != elementName {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return "", false
		}
		return text, true
	}
}

// ExtractEmptyValAttrs extracts "val" attributes from self-closing elements
// such as <TransportState val="PLAYING"/>, used throughout GENA LastChange
// payloads. Only elements in elementNames are reported.
func ExtractEmptyValAttrs(data string, elementNames []string) map[string]string {
	want := make(map[string]bool, len(elementNames))
	for _, n := range elementNames {
		want[n] = true
	}

	result := make(map[string]string)
	dec := xml.NewDecoder(strings.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return result
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !want[start.Name.Local] {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "val" {
				result[start.Name.Local] = attr.Value
				break
			}
		}
	}
}

// GetXMLAttr returns the value of attrName on start, if present.
func GetXMLAttr(start xml.StartElement, attrName string) (string, bool) {
	for _, attr := range start.Attr {
		if attr.Name.Local == attrName {
			return attr.Value, true
		}
	}
	return "", false
}

// EscapeXML escapes the five XML special characters for embedding in SOAP
// arguments or DIDL-Lite metadata values.
func EscapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

// ExtractIPFromLocation extracts the host portion of a UPnP Location URL
// such as "http://192.168.1.100:1400/xml/device_desc.xml".
func ExtractIPFromLocation(location string) (string, bool) {
	stripped := strings.TrimPrefix(location, "http://")
	if stripped == location {
		return "", false
	}
	idx := strings.Index(stripped, ":")
	if idx < 0 {
		return "", false
	}
	return stripped[:idx], true
}

// ExtractModelFromIcon extracts the model name from a Sonos device icon URL
// such as "x-rincon-cpicon:sonos-one-g1" -> "one".
func ExtractModelFromIcon(icon string) string {
	const marker = "sonos-"
	pos := strings.Index(icon, marker)
	if pos < 0 {
		return "unknown"
	}
	rest := icon[pos+len(marker):]
	if end := strings.Index(rest, "-"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// channelRoleNames maps HTSatChanMapSet channel codes to display names.
var channelRoleNames = map[string]string{
	"LF,RF": "Soundbar",
	"SW":    "Subwoofer",
	"LR":    "Surround Left",
	"RR":    "Surround Right",
	"LF":    "Left",
	"RF":    "Right",
}

// GetChannelRole parses a home-theater HTSatChanMapSet attribute
// ("UUID1:LF,RF;UUID2:SW;...") and returns the display role for uuid.
func GetChannelRole(htSatChanMap, uuid string) (string, bool) {
	for _, mapping := range strings.Split(htSatChanMap, ";") {
		mapUUID, channels, ok := strings.Cut(mapping, ":")
		if !ok || mapUUID != uuid {
			continue
		}
		if name, ok := channelRoleNames[channels]; ok {
			return name, true
		}
		return channels, true
	}
	return "", false
}
