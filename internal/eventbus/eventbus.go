// Package eventbus fans out GENA-derived and playback-lifecycle events to
// every connected control-plane WebSocket client, the way internal/stream's
// hub fans audio frames out to renderers.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kaelwillow/sonocast/internal/sonos"
)

// EventType discriminates Envelope's meaning for JSON consumers.
type EventType string

const (
	EventTransportState    EventType = "transport_state"
	EventGroupVolume       EventType = "group_volume"
	EventGroupMute         EventType = "group_mute"
	EventSpeakerVolume     EventType = "speaker_volume"
	EventSpeakerMute       EventType = "speaker_mute"
	EventSourceChanged     EventType = "source_changed"
	EventZoneGroupsUpdated EventType = "zone_groups_updated"
	EventSubscriptionLost  EventType = "subscription_lost"
	EventPlaybackStarted   EventType = "playback_started"
	EventPlaybackStopped   EventType = "playback_stopped"
)

// Envelope is the wire shape pushed to every control-plane WebSocket
// subscriber. Exactly the fields relevant to Type are populated.
type Envelope struct {
	Type        EventType         `json:"type"`
	SpeakerIP   string            `json:"speakerIp,omitempty"`
	StreamID    string            `json:"streamId,omitempty"`
	State       string            `json:"state,omitempty"`
	Volume      int               `json:"volume,omitempty"`
	Muted       bool              `json:"muted,omitempty"`
	Groups      []sonos.ZoneGroup `json:"groups,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	TimestampMS int64             `json:"timestampMs"`
}

// Bus multiplexes one stream of Envelopes to many subscribers, each with
// its own bounded channel. Grounded on internal/stream's hub (same
// per-subscriber-channel, drop-when-full shape), simplified since bus
// events are state snapshots rather than an ordered audio sequence: a
// subscriber that's behind can simply miss an intermediate volume change
// without a Lagged marker, since the next event carries the current value.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]chan Envelope
	nextID   uint64
	capacity int
}

// New returns a Bus whose subscriber channels hold capacity pending
// events before new publishes are dropped for that subscriber.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{subs: make(map[uint64]chan Envelope), capacity: capacity}
}

// Subscribe registers a new receiver and returns its id and the read-only
// channel it should range over.
func (b *Bus) Subscribe() (uint64, <-chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Envelope, b.capacity)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a receiver and closes its channel.
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
}

// Publish fans e out to every subscriber. A subscriber whose buffer is
// full has this event dropped rather than blocking the publisher; state
// events are idempotent-ish snapshots, so a later publish supersedes what
// was missed.
func (b *Bus) Publish(e Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			slog.Warn("eventbus: subscriber buffer full, dropping event", "subscriber", id, "type", e.Type)
		}
	}
}

// SubscriberCount reports how many receivers are currently attached.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ForwardSonosEvents drains events (the SubscriptionManager's outbound
// channel) and republishes each as an Envelope, until events is closed or
// ctx is cancelled. Grounded on gena_event_processor.rs's
// start_event_forwarder, which performs the same translate-and-forward
// role between the internal GENA event channel and the app-facing bus.
func (b *Bus) ForwardSonosEvents(ctx context.Context, events <-chan sonos.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			b.Publish(FromSonosEvent(e))
		}
	}
}

// FromSonosEvent translates a raw GENA-derived sonos.Event into the wire
// Envelope shape. Exported so a consumer that needs to apply other
// side-effects on the same event (cache updates, coordinator hooks) can
// still publish in the same shape as ForwardSonosEvents without draining
// the event channel twice.
func FromSonosEvent(e sonos.Event) Envelope {
	env := Envelope{SpeakerIP: e.SpeakerIP, TimestampMS: e.TimestampMS}
	switch e.Kind {
	case sonos.EventTransportState:
		env.Type = EventTransportState
		env.State = e.State.String()
	case sonos.EventGroupVolume:
		env.Type = EventGroupVolume
		env.Volume = e.Volume
	case sonos.EventGroupMute:
		env.Type = EventGroupMute
		env.Muted = e.Muted
	case sonos.EventSpeakerVolume:
		env.Type = EventSpeakerVolume
		env.Volume = e.Volume
	case sonos.EventSpeakerMute:
		env.Type = EventSpeakerMute
		env.Muted = e.Muted
	case sonos.EventSourceChanged:
		env.Type = EventSourceChanged
	case sonos.EventZoneGroupsUpdated:
		env.Type = EventZoneGroupsUpdated
		env.Groups = e.Groups
	case sonos.EventSubscriptionLost:
		env.Type = EventSubscriptionLost
		env.Reason = e.Reason
	}
	return env
}

// PlaybackStarted builds the Envelope emitted for each speaker a playback
// session successfully started on.
func PlaybackStarted(streamID, speakerIP string, timestampMS int64) Envelope {
	return Envelope{Type: EventPlaybackStarted, StreamID: streamID, SpeakerIP: speakerIP, TimestampMS: timestampMS}
}

// PlaybackStopped builds the Envelope emitted when a playback session ends.
func PlaybackStopped(streamID string, timestampMS int64) Envelope {
	return Envelope{Type: EventPlaybackStopped, StreamID: streamID, TimestampMS: timestampMS}
}
