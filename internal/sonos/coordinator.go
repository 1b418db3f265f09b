package sonos

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/kaelwillow/sonocast/internal/stream"
)

// OriginalGroup records a target IP's group membership as it was before the
// coordinator reshaped it, so Stop can attempt to restore it afterward.
type OriginalGroup struct {
	IP              string
	CoordinatorIP   string
	CoordinatorUUID string
}

// Session is one active stream-to-speakers binding: the set of target IPs
// in their current grouping shape, which one is coordinator, the grouping
// snapshot captured before reshaping, and the last-issued stream URL used
// to detect external takeover. Grounded on spec.md §3's Playback Session
// description; there is no direct Rust struct for it in the retrieved
// pack (stream_coordinator.rs was not part of the retrieval), so the field
// set below is built directly from the contract in spec.md §4.4.
type Session struct {
	StreamID        string
	CoordinatorIP   string
	CoordinatorUUID string
	TargetIPs       []string
	Original        map[string]OriginalGroup
	StreamURL       string
	CallbackURL     string
}

// PlaybackResult reports the outcome of StartPlayback for each target IP.
type PlaybackResult struct {
	StreamID      string
	CoordinatorIP string
	Started       []string
	Failed        map[string]error
}

// Coordinator owns every active Session and drives the SOAP/GENA sequence
// needed to start, retarget, and stop a stream across a set of renderers.
// Grounded on the interface `DiscoveryService`/`GenaEventProcessor` expose
// to the rest of the app (`start_topology_monitor`, `handle_gena_notify`,
// `handle_source_changed`, `get_expected_stream` in discovery_service.rs
// and gena_event_processor.rs) and on the exact SOAP verb sequencing in
// playback.rs/grouping.rs.
type Coordinator struct {
	client  *Client
	arbiter *SubscriptionArbiter
	cache   *StateCache
	gena    *SubscriptionManager

	mu       sync.Mutex
	sessions map[string]*Session // by stream id

	onStart func(streamID, speakerIP string)
	onStop  func(streamID string)
}

// NewCoordinator wires a Coordinator around an existing SOAP client,
// subscription arbiter, state cache, and GENA subscription manager. gena is
// used to record the stream URL this coordinator expects each speaker to be
// playing, so HandleNotify's AVTransport parser can detect an external
// takeover (spec.md §4.4 handle_source_changed) instead of always comparing
// against an empty expected URL.
func NewCoordinator(client *Client, arbiter *SubscriptionArbiter, cache *StateCache, gena *SubscriptionManager) *Coordinator {
	return &Coordinator{
		client:   client,
		arbiter:  arbiter,
		cache:    cache,
		gena:     gena,
		sessions: make(map[string]*Session),
	}
}

// SetEventHooks registers callbacks fired when a speaker successfully
// starts playing a stream and when a session is stopped. Kept as plain
// function hooks rather than a direct eventbus dependency, since
// internal/eventbus already imports this package to translate GENA
// Events — a reverse import would cycle.
func (co *Coordinator) SetEventHooks(onStart func(streamID, speakerIP string), onStop func(streamID string)) {
	co.onStart = onStart
	co.onStop = onStop
}

// chooseCoordinator picks the target IP that is already a group coordinator
// in current topology, falling back to the first IP in deterministic
// (sorted) order.
func chooseCoordinator(targetIPs []string, groups []ZoneGroup) string {
	sorted := append([]string(nil), targetIPs...)
	sort.Strings(sorted)

	coordSet := make(map[string]bool, len(groups))
	for _, g := range groups {
		coordSet[g.CoordinatorIP] = true
	}
	for _, ip := range sorted {
		if coordSet[ip] {
			return ip
		}
	}
	return sorted[0]
}

// uuidForIP returns the coordinator UUID of the group containing ip, if
// known, else the empty string (JoinGroup degrades to an x-rincon: URI
// that Sonos will reject, which surfaces as a SOAP fault to the caller).
func uuidForIP(ip string, groups []ZoneGroup) string {
	for _, g := range groups {
		if g.CoordinatorIP == ip {
			return g.CoordinatorUUID
		}
		for _, m := range g.Members {
			if m.IP == ip {
				return g.CoordinatorUUID
			}
		}
	}
	return ""
}

// StartPlayback resolves targetIPs against groups (the caller's current
// topology snapshot), reshapes them into one group behind a coordinator,
// enters the arbiter's sync session for the non-coordinator IPs, and
// starts the stream on the coordinator. Retargeting an existing session
// id reshapes only the set difference, preserving the coordinator IP
// when still present in the new target set.
func (co *Coordinator) StartPlayback(ctx context.Context, streamID string, targetIPs []string, groups []ZoneGroup, streamURL, callbackURL string, codec stream.Codec, format stream.AudioFormat, meta *stream.Metadata, artworkURL string) PlaybackResult {
	co.mu.Lock()
	existing := co.sessions[streamID]
	co.mu.Unlock()

	result := PlaybackResult{StreamID: streamID, Failed: make(map[string]error)}

	coordinatorIP := chooseCoordinator(targetIPs, groups)
	if existing != nil {
		for _, ip := range existing.TargetIPs {
			if ip == existing.CoordinatorIP {
				for _, want := range targetIPs {
					if want == existing.CoordinatorIP {
						coordinatorIP = existing.CoordinatorIP
					}
				}
			}
		}
	}

	added, removed := diffIPs(existing, targetIPs)

	if existing != nil && len(added) == 0 && len(removed) == 0 && coordinatorIP == existing.CoordinatorIP {
		result.CoordinatorIP = coordinatorIP
		result.Started = append(result.Started, existing.TargetIPs...)
		return result
	}

	if existing != nil {
		for _, ip := range removed {
			co.arbiter.LeaveSyncSession(ctx, ip, callbackURL)
			if orig, ok := existing.Original[ip]; ok && orig.CoordinatorUUID != "" && orig.CoordinatorIP != ip {
				if err := co.client.JoinGroup(ctx, ip, orig.CoordinatorUUID); err != nil {
					slog.Warn("sonos: restore original group failed", "ip", ip, "error", err)
				}
			}
		}
	}

	original := make(map[string]OriginalGroup, len(targetIPs))
	for _, ip := range targetIPs {
		original[ip] = OriginalGroup{
			IP:              ip,
			CoordinatorIP:   firstNonEmpty(groupCoordinatorOf(ip, groups), ip),
			CoordinatorUUID: uuidForIP(ip, groups),
		}
	}

	nonCoordinators := make([]string, 0, len(added))
	for _, ip := range added {
		if ip == coordinatorIP {
			continue
		}
		nonCoordinators = append(nonCoordinators, ip)

		if err := co.client.LeaveGroup(ctx, ip); err != nil {
			result.Failed[ip] = err
			continue
		}
		coordUUID := uuidForIP(coordinatorIP, groups)
		if coordUUID == "" {
			coordUUID = coordinatorIP
		}
		if err := co.client.JoinGroup(ctx, ip, coordUUID); err != nil {
			result.Failed[ip] = err
			continue
		}
		result.Started = append(result.Started, ip)
	}

	if err := co.client.LeaveGroup(ctx, coordinatorIP); err != nil {
		slog.Warn("sonos: coordinator standalone-ize failed", "ip", coordinatorIP, "error", err)
	}

	if len(nonCoordinators) > 0 {
		co.arbiter.EnterSyncSession(ctx, nonCoordinators, callbackURL)
	}

	if err := co.client.PlayURI(ctx, coordinatorIP, streamURL, codec, format, meta, artworkURL); err != nil {
		result.Failed[coordinatorIP] = err
	} else {
		result.Started = append(result.Started, coordinatorIP)
		if co.gena != nil {
			co.gena.SetExpectedStream(coordinatorIP, streamURL)
		}
	}
	result.CoordinatorIP = coordinatorIP

	co.mu.Lock()
	co.sessions[streamID] = &Session{
		StreamID:        streamID,
		CoordinatorIP:   coordinatorIP,
		CoordinatorUUID: uuidForIP(coordinatorIP, groups),
		TargetIPs:       targetIPs,
		Original:        original,
		StreamURL:       streamURL,
		CallbackURL:     callbackURL,
	}
	co.mu.Unlock()

	if co.onStart != nil {
		for _, ip := range result.Started {
			co.onStart(streamID, ip)
		}
	}

	return result
}

// StopPlayback stops the coordinator, switches every ex-coordinator back to
// its own queue, releases the non-coordinator IPs from the arbiter's sync
// session with a best-effort restore of their original grouping, and
// removes the session.
func (co *Coordinator) StopPlayback(ctx context.Context, streamID string) map[string]error {
	co.mu.Lock()
	sess := co.sessions[streamID]
	delete(co.sessions, streamID)
	co.mu.Unlock()

	failures := make(map[string]error)
	if sess == nil {
		return failures
	}

	if err := co.client.Stop(ctx, sess.CoordinatorIP); err != nil {
		failures[sess.CoordinatorIP] = err
	}
	if err := co.client.SwitchToQueue(ctx, sess.CoordinatorIP, sess.CoordinatorUUID); err != nil {
		slog.Warn("sonos: switch-to-queue failed", "ip", sess.CoordinatorIP, "error", err)
	}
	if co.gena != nil {
		co.gena.ClearExpectedStream(sess.CoordinatorIP)
	}

	for _, ip := range sess.TargetIPs {
		if ip == sess.CoordinatorIP {
			continue
		}
		co.arbiter.LeaveSyncSession(ctx, ip, sess.CallbackURL)
		if err := co.client.SwitchToQueue(ctx, ip, sess.CoordinatorUUID); err != nil {
			slog.Warn("sonos: switch-to-queue failed", "ip", ip, "error", err)
		}

		orig, ok := sess.Original[ip]
		if ok && orig.CoordinatorUUID != "" && orig.CoordinatorIP != ip {
			if err := co.client.JoinGroup(ctx, ip, orig.CoordinatorUUID); err != nil {
				failures[ip] = err
			}
		}
	}

	if co.onStop != nil {
		co.onStop(streamID)
	}

	return failures
}

// OnHTTPResume handles a renderer's HTTP pull reconnecting to an
// already-live stream: it re-issues Play (not SetAVTransportURI+Play) to
// that session's coordinator in the background. The stream handler skips
// its prefill delay for such a resumed connection.
func (co *Coordinator) OnHTTPResume(ctx context.Context, clientIP string) {
	co.mu.Lock()
	var target *Session
	for _, s := range co.sessions {
		if s.CoordinatorIP == clientIP {
			target = s
			break
		}
	}
	co.mu.Unlock()
	if target == nil {
		return
	}

	go func() {
		if err := co.client.Play(ctx, target.CoordinatorIP); err != nil {
			slog.Warn("sonos: resume Play failed", "ip", target.CoordinatorIP, "error", err)
		}
	}()
}

// HandleSourceChanged tears down the parts of a session involving ip when
// its reported transport URI no longer matches the one this coordinator
// last issued — an external takeover (e.g. the Sonos app, or another
// controller). If the coordinator itself was taken over, the whole
// session is torn down.
func (co *Coordinator) HandleSourceChanged(ctx context.Context, ip string) {
	co.mu.Lock()
	var streamID string
	for id, s := range co.sessions {
		if s.CoordinatorIP == ip {
			streamID = id
			break
		}
	}
	co.mu.Unlock()

	if streamID != "" {
		slog.Warn("sonos: coordinator taken over externally, tearing down session", "ip", ip, "stream_id", streamID)
		co.StopPlayback(ctx, streamID)
		return
	}

	co.mu.Lock()
	for id, s := range co.sessions {
		for i, target := range s.TargetIPs {
			if target != ip {
				continue
			}
			s.TargetIPs = append(s.TargetIPs[:i], s.TargetIPs[i+1:]...)
			slog.Warn("sonos: speaker taken over externally, dropping from session", "ip", ip, "stream_id", id)
			co.mu.Unlock()
			co.arbiter.LeaveSyncSession(ctx, ip, s.CallbackURL)
			return
		}
	}
	co.mu.Unlock()
}

// GetExpectedStream returns the stream URL this coordinator last issued to
// speakerIP's AVTransport, if it is currently part of a session. Used by
// the Event Router to detect source-changed events.
func (co *Coordinator) GetExpectedStream(speakerIP string) (string, bool) {
	co.mu.Lock()
	defer co.mu.Unlock()
	for _, s := range co.sessions {
		if s.CoordinatorIP == speakerIP {
			return s.StreamURL, true
		}
		for _, ip := range s.TargetIPs {
			if ip == speakerIP {
				return s.StreamURL, true
			}
		}
	}
	return "", false
}

func diffIPs(existing *Session, targetIPs []string) (added, removed []string) {
	wantSet := make(map[string]bool, len(targetIPs))
	for _, ip := range targetIPs {
		wantSet[ip] = true
	}
	if existing == nil {
		return targetIPs, nil
	}
	hadSet := make(map[string]bool, len(existing.TargetIPs))
	for _, ip := range existing.TargetIPs {
		hadSet[ip] = true
	}
	for _, ip := range targetIPs {
		if !hadSet[ip] {
			added = append(added, ip)
		}
	}
	for _, ip := range existing.TargetIPs {
		if !wantSet[ip] {
			removed = append(removed, ip)
		}
	}
	return added, removed
}

func groupCoordinatorOf(ip string, groups []ZoneGroup) string {
	for _, g := range groups {
		if g.CoordinatorIP == ip {
			return g.CoordinatorIP
		}
		for _, m := range g.Members {
			if m.IP == ip {
				return g.CoordinatorIP
			}
		}
	}
	return ""
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
