package discovery

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/koron/go-ssdp"
)

// sonosDeviceURN is the UPnP device type every Sonos ZonePlayer advertises.
const sonosDeviceURN = "urn:schemas-upnp-org:device:ZonePlayer:1"

// SSDPConfig controls retry behavior for both multicast and broadcast SSDP
// search, mirroring the original's ssdp_send_count/ssdp_retry_delay_ms
// knobs for lossy Wi-Fi networks where a single M-SEARCH can go unanswered.
type SSDPConfig struct {
	WaitSeconds int
	SendCount   int
	RetryDelay  time.Duration
}

// DefaultSSDPConfig returns reasonable defaults for home network discovery.
func DefaultSSDPConfig() SSDPConfig {
	return SSDPConfig{WaitSeconds: 3, SendCount: 2, RetryDelay: 300 * time.Millisecond}
}

// DiscoverSSDPMulticast sends SSDP M-SEARCH to the standard multicast group
// (239.255.255.250:1900) cfg.SendCount times, merging results across
// attempts. Grounded on DiscoveryMethod::SsdpMulticast; uses
// github.com/koron/go-ssdp, which already appears in this dependency
// corpus (pulled in transitively by a libp2p-based repo) for the UPnP
// M-SEARCH protocol itself rather than hand-rolling it over raw UDP.
func DiscoverSSDPMulticast(cfg SSDPConfig) ([]*DiscoveredSpeaker, error) {
	discovered := make(map[string]*DiscoveredSpeaker)

	var lastErr error
	for attempt := 0; attempt < max(cfg.SendCount, 1); attempt++ {
		services, err := ssdp.Search(sonosDeviceURN, cfg.WaitSeconds, "")
		if err != nil {
			lastErr = err
			slog.Debug("discovery: SSDP multicast search failed", "attempt", attempt, "error", err)
		} else {
			mergeSSDPResults(discovered, services, MethodSSDPMulticast)
		}
		if attempt < cfg.SendCount-1 {
			time.Sleep(cfg.RetryDelay)
		}
	}

	if len(discovered) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return speakerValues(discovered), nil
}

// DiscoverSSDPBroadcast sends a directed M-SEARCH on the limited broadcast
// address (255.255.255.255:1900) from every non-virtual IPv4 interface,
// for networks where multicast routing is disabled between the host and
// the speakers' VLAN but broadcast still reaches them. go-ssdp only speaks
// multicast, so this path is built directly on net.ListenUDP/WriteTo — the
// one piece of SSDP this codebase implements on the standard library, since
// no retrieved dependency offers directed per-interface broadcast search.
func DiscoverSSDPBroadcast(cfg SSDPConfig) ([]*DiscoveredSpeaker, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	discovered := make(map[string]*DiscoveredSpeaker)
	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: 1900}
	request := buildMSearchRequest(sonosDeviceURN, "255.255.255.255:1900")

	found := false
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		if IsVirtualInterface(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}

			conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ipNet.IP})
			if err != nil {
				continue
			}
			found = true

			for attempt := 0; attempt < max(cfg.SendCount, 1); attempt++ {
				conn.WriteTo(request, broadcastAddr)
				if attempt < cfg.SendCount-1 {
					time.Sleep(cfg.RetryDelay)
				}
			}

			conn.SetReadDeadline(time.Now().Add(time.Duration(cfg.WaitSeconds) * time.Second))
			buf := make([]byte, 2048)
			for {
				n, _, err := conn.ReadFrom(buf)
				if err != nil {
					break
				}
				if speaker := parseSSDPResponse(string(buf[:n]), MethodSSDPBroadcast); speaker != nil {
					if existing, ok := discovered[speaker.UUID]; ok {
						existing.Merge(speaker)
					} else {
						discovered[speaker.UUID] = speaker
					}
				}
			}
			conn.Close()
		}
	}

	if !found {
		return nil, errors.New("discovery: no usable broadcast-capable interfaces found")
	}
	return speakerValues(discovered), nil
}

func mergeSSDPResults(discovered map[string]*DiscoveredSpeaker, services []ssdp.Service, method Method) {
	for _, svc := range services {
		speaker := parseSSDPService(svc, method)
		if speaker == nil {
			continue
		}
		if existing, ok := discovered[speaker.UUID]; ok {
			existing.Merge(speaker)
		} else {
			discovered[speaker.UUID] = speaker
		}
	}
}

// parseSSDPService builds a DiscoveredSpeaker from a go-ssdp search result.
// The speaker's UUID comes from the USN field ("uuid:RINCON_xxx::urn:...")
// and its IP from the LOCATION URL's host.
func parseSSDPService(svc ssdp.Service, method Method) *DiscoveredSpeaker {
	uuid := NormalizeUUID(svc.USN)
	if !strings.Contains(uuid, "RINCON_") {
		return nil
	}
	ip, ok := extractIPFromLocationURL(svc.Location)
	if !ok {
		return nil
	}
	return NewDiscoveredSpeakerWithLocation(ip, uuid, svc.Location, method)
}

// parseSSDPResponse parses a raw HTTP/1.1-style SSDP response (as seen
// directly off a socket, rather than through go-ssdp's own search API).
func parseSSDPResponse(raw string, method Method) *DiscoveredSpeaker {
	var location, usn string
	for _, line := range strings.Split(raw, "\r\n") {
		header, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(header)) {
		case "LOCATION":
			location = strings.TrimSpace(value)
		case "USN":
			usn = strings.TrimSpace(value)
		}
	}
	if location == "" || usn == "" {
		return nil
	}
	uuid := NormalizeUUID(usn)
	if !strings.Contains(uuid, "RINCON_") {
		return nil
	}
	ip, ok := extractIPFromLocationURL(location)
	if !ok {
		return nil
	}
	return NewDiscoveredSpeakerWithLocation(ip, uuid, location, method)
}

func extractIPFromLocationURL(location string) (string, bool) {
	rest := strings.TrimPrefix(location, "http://")
	if rest == location {
		return "", false
	}
	host, _, ok := strings.Cut(rest, "/")
	if !ok {
		host = rest
	}
	ip, _, ok := strings.Cut(host, ":")
	if !ok {
		ip = host
	}
	if ip == "" {
		return "", false
	}
	return ip, true
}

func buildMSearchRequest(searchTarget, host string) []byte {
	req := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + host + "\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: " + searchTarget + "\r\n\r\n"
	return []byte(req)
}

func speakerValues(m map[string]*DiscoveredSpeaker) []*DiscoveredSpeaker {
	out := make([]*DiscoveredSpeaker, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}
