// Package protocol collects fixed protocol constants shared across the
// stream, cadence, icy, and sonos packages. These values are defined by
// external specifications (UPnP, GENA, ICY, WAV) or by what Sonos tolerates
// in practice, and should not be changed casually.
package protocol

import "time"

const (
	// GENASubscriptionTimeout is the subscription duration requested from
	// the speaker on SUBSCRIBE.
	GENASubscriptionTimeout = time.Hour

	// GENARenewalBuffer is how long before expiry a subscription is renewed.
	GENARenewalBuffer = 5 * time.Minute

	// GENARenewalCheckInterval is how often the renewal loop wakes up.
	GENARenewalCheckInterval = time.Minute

	// MaxGENABodySize bounds the size of an accepted GENA NOTIFY body.
	MaxGENABodySize = 64 * 1024
)

const (
	// AppName is used in DIDL-Lite metadata and ICY headers. Intentionally
	// not localized — it appears in network protocols where consistency
	// matters more than translation.
	AppName = "Sonocast"

	// ServiceID identifies this server on its health endpoint.
	ServiceID = "sonocast"
)

const (
	// ICYMetaInt is the byte interval at which ICY metadata blocks are
	// inserted, chosen for Sonos compatibility.
	ICYMetaInt = 8192

	// WAVStreamSizeMax is written into RIFF/data chunk sizes and the HTTP
	// Content-Length of PCM streams to signal "file-like, size unknown".
	WAVStreamSizeMax uint32 = 0xFFFFFFFF
)

const (
	// SOAPTimeout bounds a single SOAP HTTP round trip.
	SOAPTimeout = 10 * time.Second

	// DefaultSampleRateHz and DefaultChannels seed a stream's AudioFormat
	// when the producer doesn't specify one.
	DefaultSampleRateHz = 48000
	DefaultChannels     = 2
)

const (
	// MinFrameDurationMS and MaxFrameDurationMS bound the cadence emitter's
	// configured frame duration. The upper bound accommodates AAC's
	// spec-mandated 1024-sample frame (128ms at 8kHz) and FLAC's larger
	// frames; the lower bound is a practical floor for low-latency PCM.
	MinFrameDurationMS = 5
	MaxFrameDurationMS = 150

	// SilenceFrameDurationMS is a fallback frame duration for sizing
	// silence. No code reads it: each stream sizes its silence frame from
	// its own FrameDuration.
	SilenceFrameDurationMS = 10

	// MinStreamingBufferMS, MaxStreamingBufferMS, DefaultStreamingBufferMS
	// bound and default a stream's configured buffer target.
	MinStreamingBufferMS     = 100
	MaxStreamingBufferMS     = 1000
	DefaultStreamingBufferMS = 200

	// MaxCadenceQueueSize is derived from the worst case: the smallest
	// configured frame duration over the largest configured buffer target.
	MaxCadenceQueueSize = MaxStreamingBufferMS / MinFrameDurationMS
)

const (
	// EventChannelCapacity is a per-subscriber event buffer size. No code
	// reads it: the event bus is sized from config's EventBusCapacity.
	EventChannelCapacity = 100

	// GENAEventChannelCapacity bounds the internal channel carrying
	// SubscriptionLost and similar control events out of the event router.
	GENAEventChannelCapacity = 64

	// WSHeartbeatTimeout and WSHeartbeatCheckInterval govern WebSocket
	// ingest liveness checks.
	WSHeartbeatTimeout       = 30 * time.Second
	WSHeartbeatCheckInterval = time.Second
)

const (
	// DefaultTopologyRefreshInterval is how often the topology monitor
	// polls a seed speaker for zone-group state on its own schedule, on top
	// of event-triggered refreshes.
	DefaultTopologyRefreshInterval = 30 * time.Second

	// TopologyRefreshDebounce coalesces bursts of refresh triggers (several
	// ZoneGroupsUpdated NOTIFYs tend to arrive together during a regroup)
	// into a single SOAP round trip.
	TopologyRefreshDebounce = 500 * time.Millisecond
)
