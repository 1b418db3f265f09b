package discovery

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// sonosMDNSService is the Bonjour service type Sonos speakers advertise.
// Effective on networks where SSDP multicast is blocked but mDNS passes,
// and on macOS where mDNS is native.
const sonosMDNSService = "_sonos._tcp"

// DefaultMDNSBrowseTimeout bounds one mDNS browse pass.
const DefaultMDNSBrowseTimeout = 2 * time.Second

// DiscoverMDNS browses for Sonos speakers over mDNS/Bonjour for
// browseTimeout and returns one DiscoveredSpeaker per distinct UUID seen.
// Grounded on sonos/discovery/mdns.rs's discover_mdns, adapted from an
// async mdns-sd browse-with-channel loop to hashicorp/mdns's synchronous,
// timeout-bounded mdns.Query.
func DiscoverMDNS(browseTimeout time.Duration) ([]*DiscoveredSpeaker, error) {
	entries := make(chan *mdns.ServiceEntry, 32)
	discovered := make(map[string]*DiscoveredSpeaker)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			speaker := parseMDNSService(entry)
			if speaker == nil {
				continue
			}
			slog.Debug("discovery: mDNS speaker found", "ip", speaker.IP, "uuid", speaker.UUID)
			if existing, ok := discovered[speaker.UUID]; ok {
				existing.Merge(speaker)
			} else {
				discovered[speaker.UUID] = speaker
			}
		}
	}()

	params := mdns.DefaultParams(sonosMDNSService)
	params.Timeout = browseTimeout
	params.Entries = entries

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, err
	}

	speakers := make([]*DiscoveredSpeaker, 0, len(discovered))
	for _, s := range discovered {
		speakers = append(speakers, s)
	}
	return speakers, nil
}

// parseMDNSService builds a DiscoveredSpeaker from a resolved mDNS entry,
// preferring the IPv4 address for Sonos compatibility and falling back to
// the service name, then the hostname, to recover a RINCON_ UUID.
func parseMDNSService(entry *mdns.ServiceEntry) *DiscoveredSpeaker {
	if entry.AddrV4 == nil {
		return nil
	}
	ip := entry.AddrV4.String()

	uuid := extractUUIDFromName(entry.Name)
	if uuid == "" {
		uuid = extractUUIDFromName(entry.Host)
	}
	if uuid == "" {
		return nil
	}

	var candidateIPs []string
	if entry.AddrV4 != nil {
		candidateIPs = append(candidateIPs, entry.AddrV4.String())
	}
	if entry.AddrV6 != nil {
		candidateIPs = append(candidateIPs, entry.AddrV6.String())
	}

	speaker := NewDiscoveredSpeaker(ip, uuid, MethodMDNS)
	speaker.CandidateIPs = candidateIPs

	port := entry.Port
	if port <= 0 || port == 1400 {
		port = 1400
	}
	speaker.Location = "http://" + ip + ":" + strconv.Itoa(port) + "/xml/device_description.xml"

	return speaker
}

// extractUUIDFromName pulls a RINCON_ UUID out of an mDNS service or host
// name, tolerating a "Sonos-" prefix and any of the suffix shapes Sonos uses
// ("RINCON_xxx._sonos._tcp.local.", "RINCON_xxx.local.", ...).
func extractUUIDFromName(name string) string {
	start := strings.Index(name, "RINCON_")
	if start < 0 {
		return ""
	}
	rest := name[start:]

	end := len(rest)
	for i, r := range rest {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			end = i
			break
		}
	}
	uuid := rest[:end]
	if len(uuid) <= len("RINCON_") {
		return ""
	}
	return uuid
}
