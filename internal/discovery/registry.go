package discovery

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kaelwillow/sonocast/internal/sonos"
)

// Registry holds the current set of known Sonos speakers, kept fresh by
// periodic SSDP/mDNS sweeps and device-description fetches. Grounded on
// DiscoveryService's composition of the SSDP/mDNS discovery methods plus a
// device-description fetch to resolve each DiscoveredSpeaker into a
// metadata-complete Speaker (services/discovery_service.rs).
type Registry struct {
	http *http.Client

	ssdpCfg          SSDPConfig
	mdnsTimeout      time.Duration
	multicastEnabled bool
	broadcastEnabled bool
	mdnsEnabled      bool

	mu       sync.RWMutex
	speakers map[string]Speaker // by canonical UUID
}

// NewRegistry builds a Registry. Any combination of the three discovery
// methods may be disabled (e.g. multicast-only on a network where
// broadcast and mDNS both add nothing but latency).
func NewRegistry(ssdpCfg SSDPConfig, mdnsTimeout time.Duration, multicastEnabled, broadcastEnabled, mdnsEnabled bool) *Registry {
	return &Registry{
		http:             &http.Client{Timeout: 5 * time.Second},
		ssdpCfg:          ssdpCfg,
		mdnsTimeout:      mdnsTimeout,
		multicastEnabled: multicastEnabled,
		broadcastEnabled: broadcastEnabled,
		mdnsEnabled:      mdnsEnabled,
		speakers:         make(map[string]Speaker),
	}
}

// Refresh runs every enabled discovery method, merges the results by UUID,
// fetches each speaker's device description, and replaces the registry's
// snapshot wholesale. Infrastructure devices (Boost, Bridge) are resolved
// (so IsInfrastructureDevice has metadata to act on) but dropped from the
// final snapshot, since they're never valid stream targets.
func (r *Registry) Refresh(ctx context.Context) error {
	discovered := make(map[string]*DiscoveredSpeaker)

	if r.multicastEnabled {
		if found, err := DiscoverSSDPMulticast(r.ssdpCfg); err != nil {
			slog.Warn("discovery: SSDP multicast failed", "error", err)
		} else {
			mergeDiscovered(discovered, found)
		}
	}
	if r.broadcastEnabled {
		if found, err := DiscoverSSDPBroadcast(r.ssdpCfg); err != nil {
			slog.Warn("discovery: SSDP broadcast failed", "error", err)
		} else {
			mergeDiscovered(discovered, found)
		}
	}
	if r.mdnsEnabled {
		if found, err := DiscoverMDNS(r.mdnsTimeout); err != nil {
			slog.Warn("discovery: mDNS failed", "error", err)
		} else {
			mergeDiscovered(discovered, found)
		}
	}

	resolved := make(map[string]Speaker, len(discovered))
	for _, d := range discovered {
		speaker, err := r.resolveSpeaker(ctx, d)
		if err != nil {
			slog.Warn("discovery: device description fetch failed", "ip", d.PreferredIP(), "error", err)
			continue
		}
		if speaker.IsInfrastructureDevice() {
			slog.Debug("discovery: dropping infrastructure device", "ip", speaker.IP, "model", speaker.ModelName)
			continue
		}
		resolved[speaker.UUID] = speaker
	}

	r.mu.Lock()
	r.speakers = resolved
	r.mu.Unlock()

	slog.Info("discovery: refresh complete", "speakers", len(resolved))
	return nil
}

// resolveSpeaker fetches d's device description XML and extracts the
// friendly name, model, and canonical UUID (the UDN is authoritative over
// whatever NormalizeUUID already derived from SSDP/mDNS).
func (r *Registry) resolveSpeaker(ctx context.Context, d *DiscoveredSpeaker) (Speaker, error) {
	location := d.Location
	if location == "" {
		location = "http://" + d.PreferredIP() + ":1400/xml/device_description.xml"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Speaker{}, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return Speaker{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Speaker{}, err
	}
	text := string(body)

	name, _ := sonos.ExtractXMLText(text, "roomName")
	if name == "" {
		name, _ = sonos.ExtractXMLText(text, "friendlyName")
	}
	model, _ := sonos.ExtractXMLText(text, "modelName")
	udn, _ := sonos.ExtractXMLText(text, "UDN")

	uuid := NormalizeUUID(udn)
	if uuid == "" {
		uuid = d.UUID
	}

	return Speaker{
		IP:        d.PreferredIP(),
		Name:      name,
		UUID:      uuid,
		ModelName: model,
	}, nil
}

func mergeDiscovered(into map[string]*DiscoveredSpeaker, found []*DiscoveredSpeaker) {
	for _, d := range found {
		if existing, ok := into[d.UUID]; ok {
			existing.Merge(d)
		} else {
			into[d.UUID] = d
		}
	}
}

// Start runs an immediate Refresh, then repeats on the given interval until
// ctx is cancelled.
func (r *Registry) Start(ctx context.Context, interval time.Duration) {
	if err := r.Refresh(ctx); err != nil {
		slog.Warn("discovery: initial refresh failed", "error", err)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					slog.Warn("discovery: periodic refresh failed", "error", err)
				}
			}
		}
	}()
}

// Speakers returns a snapshot of every currently known, playable speaker.
func (r *Registry) Speakers() []Speaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Speaker, 0, len(r.speakers))
	for _, s := range r.speakers {
		out = append(out, s)
	}
	return out
}

// SpeakerByUUID looks up a single known speaker.
func (r *Registry) SpeakerByUUID(uuid string) (Speaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.speakers[uuid]
	return s, ok
}

// KnownIPs returns every currently known speaker's IP, suitable as a
// topology.SeedProvider.
func (r *Registry) KnownIPs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ips := make([]string, 0, len(r.speakers))
	for _, s := range r.speakers {
		ips = append(ips, s.IP)
	}
	return ips
}
