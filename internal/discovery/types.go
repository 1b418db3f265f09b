// Package discovery finds Sonos speakers on the local network over SSDP and
// mDNS and merges the results into a deduplicated registry, keyed by the
// speaker's canonical UUID.
package discovery

import "strings"

// Method identifies which discovery mechanism found a speaker.
type Method int

const (
	MethodSSDPMulticast Method = iota
	MethodSSDPBroadcast
	MethodMDNS
)

func (m Method) String() string {
	switch m {
	case MethodSSDPMulticast:
		return "SSDP multicast"
	case MethodSSDPBroadcast:
		return "SSDP broadcast"
	case MethodMDNS:
		return "mDNS"
	default:
		return "unknown"
	}
}

// Speaker is a discovered Sonos device with its resolved metadata.
type Speaker struct {
	IP        string
	Name      string
	UUID      string
	ModelName string
}

// infrastructureModels are Sonos network bridges/extenders that don't
// participate in zone groups and shouldn't be offered as stream targets.
var infrastructureModels = []string{"boost", "bridge"}

// IsInfrastructureDevice reports whether s is a non-playable infrastructure
// device (Boost, Bridge) rather than a speaker.
func (s Speaker) IsInfrastructureDevice() bool {
	if s.ModelName == "" {
		return false
	}
	lower := strings.ToLower(s.ModelName)
	for _, infra := range infrastructureModels {
		if strings.Contains(lower, infra) {
			return true
		}
	}
	return false
}

// DiscoveredSpeaker is the intermediate, pre-metadata-resolution record
// produced directly by a discovery method, before its device description is
// fetched to build a Speaker.
type DiscoveredSpeaker struct {
	IP           string
	UUID         string
	Location     string // SSDP LOCATION URL, authoritative for device description
	CandidateIPs []string
	Methods      map[Method]bool
}

// NewDiscoveredSpeaker builds a DiscoveredSpeaker from a single discovery.
func NewDiscoveredSpeaker(ip, uuid string, method Method) *DiscoveredSpeaker {
	return &DiscoveredSpeaker{
		IP:           ip,
		UUID:         uuid,
		CandidateIPs: []string{ip},
		Methods:      map[Method]bool{method: true},
	}
}

// NewDiscoveredSpeakerWithLocation is like NewDiscoveredSpeaker but also
// records an SSDP LOCATION URL.
func NewDiscoveredSpeakerWithLocation(ip, uuid, location string, method Method) *DiscoveredSpeaker {
	s := NewDiscoveredSpeaker(ip, uuid, method)
	s.Location = location
	return s
}

// Merge folds other into s: unions the discovery methods, prefers an
// existing SSDP LOCATION over adopting one from other, and accumulates
// candidate IPs without duplicates.
func (s *DiscoveredSpeaker) Merge(other *DiscoveredSpeaker) {
	for m := range other.Methods {
		s.Methods[m] = true
	}
	if s.Location == "" && other.Location != "" {
		s.Location = other.Location
	}
	for _, ip := range other.CandidateIPs {
		if !containsString(s.CandidateIPs, ip) {
			s.CandidateIPs = append(s.CandidateIPs, ip)
		}
	}
}

// PreferredIP returns the best IP to use for a device-description fetch,
// preferring IPv4 over IPv6 for Sonos compatibility.
func (s *DiscoveredSpeaker) PreferredIP() string {
	for _, ip := range s.CandidateIPs {
		if !strings.Contains(ip, ":") {
			return ip
		}
	}
	return s.IP
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// deviceSuffixes are root-device/subdevice UUID suffixes stripped in a loop,
// since they can appear in combination (e.g. a stereo-pair home-theater set).
var deviceSuffixes = []string{"_MS", "_MR", "_LR"}

// NormalizeUUID reduces a raw Sonos UUID (as seen in a UPnP UDN, USN, or
// ZoneGroupTopology attribute) to its canonical RINCON_xxx form, so the same
// physical speaker discovered multiple ways dedupes to one entry.
func NormalizeUUID(raw string) string {
	uuid := strings.TrimPrefix(raw, "uuid:")

	if idx := strings.Index(uuid, "::"); idx >= 0 {
		uuid = uuid[:idx]
	}

	if strings.Contains(uuid, "RINCON_") {
		if idx := strings.LastIndex(uuid, ":"); idx >= 0 {
			suffix := uuid[idx+1:]
			if suffix != "" && isAllDigits(suffix) {
				uuid = uuid[:idx]
			}
		}
	}

	for {
		before := len(uuid)
		for _, suffix := range deviceSuffixes {
			uuid = strings.TrimSuffix(uuid, suffix)
		}
		if len(uuid) == before {
			break
		}
	}

	return uuid
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// virtualInterfacePrefixes identifies loopback, container, and virtual NIC
// names that should never be used to send discovery traffic from.
var virtualInterfacePrefixes = []string{
	"lo", "docker", "veth", "br-", "virbr", "vmnet", "vbox", "tun", "tap",
}

// IsVirtualInterface reports whether name belongs to a virtual/container
// network interface.
func IsVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
