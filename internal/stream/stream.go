package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stream is one live producer-to-speakers audio feed, identified by an
// opaque id. It owns the ring buffer, the broadcast hub, the current
// metadata, and the per-IP timing map described in spec §3.
type Stream struct {
	ID              string
	Codec           Codec
	Format          AudioFormat // only meaningful for CodecPCM
	FrameDuration   time.Duration
	BufferTargetMS  int64
	silenceFrame    []byte // precomputed, PCM only
	createdAt       time.Time

	ring    *ring
	hub     *hub
	Timing  *timingMap

	metaMu   sync.RWMutex
	metadata Metadata

	removed atomic.Bool
}

// ringCapacity computes max(1, ceil(bufferTargetMS/frameDurationMS)) clamped
// to PlatformMaxRingFrames.
func ringCapacity(bufferTargetMS int64, frameDuration time.Duration) int {
	frameMS := frameDuration.Milliseconds()
	if frameMS <= 0 {
		frameMS = 1
	}
	n := int((bufferTargetMS + frameMS - 1) / frameMS)
	if n < 1 {
		n = 1
	}
	if n > PlatformMaxRingFrames {
		n = PlatformMaxRingFrames
	}
	return n
}

// PlatformMaxRingFrames bounds ring buffer and cadence queue depth
// regardless of configured buffer target, so a misconfigured stream cannot
// exhaust memory. 500 frames at a typical 20ms frame duration is 10s of
// audio, comfortably above any sane buffer_target_ms.
const PlatformMaxRingFrames = 500

func newStream(id string, codec Codec, format AudioFormat, frameDuration time.Duration, bufferTargetMS int64) *Stream {
	s := &Stream{
		ID:             id,
		Codec:          codec,
		Format:         format,
		FrameDuration:  frameDuration,
		BufferTargetMS: bufferTargetMS,
		createdAt:      time.Now(),
		ring:           newRing(ringCapacity(bufferTargetMS, frameDuration)),
		hub:            newHub(ringCapacity(bufferTargetMS, frameDuration)),
		Timing:         newTimingMap(),
	}
	if codec == CodecPCM {
		s.silenceFrame = format.SilenceFrame(frameDuration.Milliseconds())
	}
	return s
}

// SilenceFrame returns the precomputed silence frame for this stream (PCM
// only; nil for compressed codecs, which have their own framing).
func (s *Stream) SilenceFrame() []byte {
	return s.silenceFrame
}

// QueueSize returns the cadence queue depth derived from the buffer target,
// per spec §4.2: ceil(buffer_target_ms / frame_duration_ms), clamped.
func (s *Stream) QueueSize() int {
	return ringCapacity(s.BufferTargetMS, s.FrameDuration)
}

// Metadata returns a read snapshot of the current display metadata.
func (s *Stream) Metadata() Metadata {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.metadata
}

func (s *Stream) setMetadata(m Metadata) {
	s.metaMu.Lock()
	s.metadata = m
	s.metaMu.Unlock()
}

// RingLen reports the current ring buffer depth (for the testable invariant
// ring_buffer.len() <= ceil(buffer_target_ms/frame_duration_ms)).
func (s *Stream) RingLen() int {
	return s.ring.len()
}

// ActiveListeners reports the number of currently subscribed HTTP consumers.
func (s *Stream) ActiveListeners() int {
	return s.hub.subscriberCount()
}
