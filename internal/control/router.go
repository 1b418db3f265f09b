package control

import (
	"context"

	"github.com/kaelwillow/sonocast/internal/eventbus"
	"github.com/kaelwillow/sonocast/internal/sonos"
	"github.com/kaelwillow/sonocast/internal/topology"
)

// runEventRouter is the single consumer of the SubscriptionManager's event
// channel: it applies each event to the state cache and coordinator, may
// trigger a topology refresh, and republishes the event to the bus for
// control-plane WebSocket subscribers. Grounded on
// services/gena_event_processor.rs's dispatch-by-kind loop (cache update,
// coordinator hook, bus forward, topology-refresh signal), implemented here
// instead of split across eventbus.ForwardSonosEvents because a channel can
// only be drained by one goroutine — eventbus.ForwardSonosEvents remains
// the primitive for callers that don't need the side effects (see its
// tests).
func runEventRouter(ctx context.Context, events <-chan sonos.Event, cache *sonos.StateCache, coordinator *sonos.Coordinator, topo *topology.Monitor, bus *eventbus.Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			applyEvent(ctx, e, cache, coordinator, topo)
			bus.Publish(eventbus.FromSonosEvent(e))
		}
	}
}

func applyEvent(ctx context.Context, e sonos.Event, cache *sonos.StateCache, coordinator *sonos.Coordinator, topo *topology.Monitor) {
	switch e.Kind {
	case sonos.EventTransportState:
		cache.SetTransportState(e.SpeakerIP, e.State)
	case sonos.EventGroupVolume:
		cache.SetGroupVolume(e.SpeakerIP, e.Volume, nil)
	case sonos.EventGroupMute:
		cache.SetGroupMute(e.SpeakerIP, e.Muted)
	case sonos.EventSpeakerVolume:
		cache.SetSpeakerVolume(e.SpeakerIP, e.Volume)
	case sonos.EventSpeakerMute:
		cache.SetSpeakerMute(e.SpeakerIP, e.Muted)
	case sonos.EventSourceChanged:
		coordinator.HandleSourceChanged(ctx, e.SpeakerIP)
	case sonos.EventZoneGroupsUpdated:
		// The NOTIFY body's topology can be stale; only an authoritative
		// refresh by the topology monitor updates the cached groups.
		topo.TriggerRefresh()
	case sonos.EventSubscriptionLost:
		topo.TriggerRefresh()
	}
}
