package stream

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStreamNotFound is returned by PushFrame, Subscribe, and UpdateMetadata
// when the named stream has never been created or has been removed.
var ErrStreamNotFound = errors.New("stream not found")

// ErrStreamExists describes an id already registered with different
// parameters. CreateOrGet does not return it: it hands back the existing
// handle whatever parameters are passed.
var ErrStreamExists = errors.New("stream already exists with different parameters")

// EndedListener is notified once, exactly when a stream is removed. The
// control plane and WebSocket ingest layer use this to tear down their side
// of the connection.
type EndedListener func(id string)

// Registry holds all live streams by id. It is the single owner of every
// stream's ring buffer, broadcast hub, metadata, and timing map.
//
// Concurrency: insert/remove is exclusive per key via a single RWMutex
// guarding the map; per-stream state (ring, hub, metadata) uses its own
// fine-grained locks so that one stream's hot path never contends with
// another's. Grounded on the teacher's Broadcaster (map[uint64]*clientSub
// behind one mutex) generalized to a map-of-streams.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	endedMu   sync.Mutex
	endedSubs []EndedListener
}

// NewRegistry creates an empty stream registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*Stream)}
}

// OnEnded registers a callback invoked whenever a stream is removed.
func (r *Registry) OnEnded(fn EndedListener) {
	r.endedMu.Lock()
	r.endedSubs = append(r.endedSubs, fn)
	r.endedMu.Unlock()
}

// CreateOrGet is idempotent per id: concurrent callers racing to create the
// same stream id observe the same *Stream.
func (r *Registry) CreateOrGet(id string, codec Codec, format AudioFormat, frameDuration time.Duration, bufferTargetMS int64) *Stream {
	r.mu.RLock()
	if s, ok := r.streams[id]; ok {
		r.mu.RUnlock()
		return s
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[id]; ok {
		return s
	}
	s := newStream(id, codec, format, frameDuration, bufferTargetMS)
	r.streams[id] = s
	slog.Info("stream created", "stream_id", id, "codec", codec.String(), "frame_ms", frameDuration.Milliseconds(), "buffer_target_ms", bufferTargetMS)
	return s
}

// Get returns the stream for id, if live.
func (r *Registry) Get(id string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.streams[id]
	return s, ok
}

// PushFrame appends a frame to the ring buffer (evicting the oldest on
// overflow) and publishes it to the broadcast hub. Non-blocking; never
// allocates beyond reusing the caller's buffer reference.
func (r *Registry) PushFrame(id string, data []byte) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrStreamNotFound
	}
	if s.removed.Load() {
		return ErrStreamNotFound
	}
	s.ring.push(data)
	s.hub.publish(data)
	return nil
}

// Subscribe captures the current ring buffer contents as an ordered
// prefill, allocates a fresh receiver on the broadcast hub, and returns a
// candidate epoch id committed on first non-silence frame emission.
func (r *Registry) Subscribe(id string) (epochCandidate uint64, prefill [][]byte, rx <-chan Frame, unsubscribe func(), err error) {
	s, ok := r.Get(id)
	if !ok {
		return 0, nil, nil, nil, ErrStreamNotFound
	}

	prefill = s.ring.snapshot()
	sub := s.hub.subscribe()
	epochCandidate = s.Timing.nextEpochCandidate()

	return epochCandidate, prefill, sub.ch, func() { s.hub.unsubscribe(sub) }, nil
}

// UpdateMetadata hot-swaps a stream's current display metadata. Subsequent
// cadence ticks and ICY injections observe the new value immediately.
func (r *Registry) UpdateMetadata(id string, m Metadata) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrStreamNotFound
	}
	s.setMetadata(m)
	return nil
}

// Remove terminates the broadcast hub, marks the stream as ended, and
// rejects subsequent PushFrame calls. Registered EndedListeners are invoked
// synchronously.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.streams[id]
	if ok {
		delete(r.streams, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	s.removed.Store(true)
	s.hub.close()
	slog.Info("stream ended", "stream_id", id)

	r.endedMu.Lock()
	subs := append([]EndedListener(nil), r.endedSubs...)
	r.endedMu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
}

// List returns the ids of all currently live streams.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.streams))
	for id := range r.streams {
		ids = append(ids, id)
	}
	return ids
}
