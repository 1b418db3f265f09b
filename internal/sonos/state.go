package sonos

import "sync"

// StateCache holds the last-known, GENA-fed state for every speaker this
// bridge has ever heard from: transport state, group volume/mute, and the
// zone-group topology. Handlers read it to answer control-plane queries
// without a SOAP round trip on every request. Grounded on the desktop
// client's SonosState (a single RWMutex-guarded struct snapshot rather than
// per-field concurrent maps, since reads here are just as frequent as
// writes and a single lock keeps a snapshot internally consistent).
type StateCache struct {
	mu sync.RWMutex

	transportStates  map[string]TransportState
	groupVolumes     map[string]int
	groupVolumeFixed map[string]bool
	groupMutes       map[string]bool
	speakerVolumes   map[string]int
	speakerMutes     map[string]bool
	groups           []ZoneGroup
}

// NewStateCache returns an empty cache.
func NewStateCache() *StateCache {
	return &StateCache{
		transportStates:  make(map[string]TransportState),
		groupVolumes:     make(map[string]int),
		groupVolumeFixed: make(map[string]bool),
		groupMutes:       make(map[string]bool),
		speakerVolumes:   make(map[string]int),
		speakerMutes:     make(map[string]bool),
	}
}

func (c *StateCache) SetTransportState(ip string, state TransportState) {
	c.mu.Lock()
	c.transportStates[ip] = state
	c.mu.Unlock()
}

func (c *StateCache) TransportState(ip string) (TransportState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.transportStates[ip]
	return s, ok
}

func (c *StateCache) SetGroupVolume(ip string, volume int, fixed *bool) {
	c.mu.Lock()
	c.groupVolumes[ip] = volume
	if fixed != nil {
		c.groupVolumeFixed[ip] = *fixed
	}
	c.mu.Unlock()
}

func (c *StateCache) GroupVolume(ip string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.groupVolumes[ip]
	return v, ok
}

func (c *StateCache) SetGroupMute(ip string, muted bool) {
	c.mu.Lock()
	c.groupMutes[ip] = muted
	c.mu.Unlock()
}

func (c *StateCache) GroupMute(ip string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.groupMutes[ip]
	return m, ok
}

// SetSpeakerVolume records a per-speaker (RenderingControl) volume event.
// Kept separate from SetGroupVolume/group_volumes[ip] per spec §4.5's
// event table: the arbiter's mutual-exclusion invariant means only one of
// the two sources is ever live for a given IP at once, but a caller reading
// "the last value this IP reported" should not have to know which source
// produced it.
func (c *StateCache) SetSpeakerVolume(ip string, volume int) {
	c.mu.Lock()
	c.speakerVolumes[ip] = volume
	c.mu.Unlock()
}

// SpeakerVolume returns the last RenderingControl-reported volume for ip.
func (c *StateCache) SpeakerVolume(ip string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.speakerVolumes[ip]
	return v, ok
}

// SetSpeakerMute records a per-speaker (RenderingControl) mute event.
func (c *StateCache) SetSpeakerMute(ip string, muted bool) {
	c.mu.Lock()
	c.speakerMutes[ip] = muted
	c.mu.Unlock()
}

// SpeakerMute returns the last RenderingControl-reported mute state for ip.
func (c *StateCache) SpeakerMute(ip string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.speakerMutes[ip]
	return m, ok
}

// SetGroups replaces the cached zone-group topology wholesale. Callers pass
// only SOAP-fetched, authoritative data — GENA ZoneGroupsUpdated events
// signal a refresh is needed rather than supplying groups directly, since
// the NOTIFY body can carry stale topology.
func (c *StateCache) SetGroups(groups []ZoneGroup) {
	c.mu.Lock()
	c.groups = groups
	c.mu.Unlock()
}

// Groups returns the cached zone-group topology.
func (c *StateCache) Groups() []ZoneGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ZoneGroup, len(c.groups))
	copy(out, c.groups)
	return out
}

// CoordinatorFor returns the coordinator IP of the group containing ip, if
// any group is currently cached for it.
func (c *StateCache) CoordinatorFor(ip string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range c.groups {
		if g.CoordinatorIP == ip {
			return g.CoordinatorIP, true
		}
		for _, m := range g.Members {
			if m.IP == ip {
				return g.CoordinatorIP, true
			}
		}
	}
	return "", false
}

// Forget drops every cached fact about ip. Called when a speaker vanishes
// from topology so stale state doesn't leak into future queries.
func (c *StateCache) Forget(ip string) {
	c.mu.Lock()
	delete(c.transportStates, ip)
	delete(c.groupVolumes, ip)
	delete(c.groupVolumeFixed, ip)
	delete(c.groupMutes, ip)
	delete(c.speakerVolumes, ip)
	delete(c.speakerMutes, ip)
	c.mu.Unlock()
}
