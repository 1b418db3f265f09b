// Package stream holds the live-audio registry: per-stream ring buffers,
// broadcast fan-out, metadata, and per-client timing/epoch tracking.
package stream

import "fmt"

// Codec identifies the wire encoding of a stream's frames.
type Codec int

const (
	CodecPCM Codec = iota
	CodecMP3
	CodecAAC
	CodecFLAC
)

func (c Codec) String() string {
	switch c {
	case CodecPCM:
		return "pcm"
	case CodecMP3:
		return "mp3"
	case CodecAAC:
		return "aac"
	case CodecFLAC:
		return "flac"
	default:
		return "unknown"
	}
}

// MimeType returns the Content-Type/protocolInfo mime used for this codec.
func (c Codec) MimeType() string {
	switch c {
	case CodecPCM:
		return "audio/wav"
	case CodecMP3:
		return "audio/mpeg"
	case CodecAAC:
		return "audio/aac"
	case CodecFLAC:
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// SupportsICY reports whether this codec may carry inline ICY metadata.
// Per spec only MP3/AAC are interleaved; PCM/FLAC use other metadata paths.
func (c Codec) SupportsICY() bool {
	return c == CodecMP3 || c == CodecAAC
}

// ParseCodec maps a user-facing codec tag to a Codec value.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "pcm", "wav":
		return CodecPCM, nil
	case "mp3":
		return CodecMP3, nil
	case "aac":
		return CodecAAC, nil
	case "flac":
		return CodecFLAC, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", s)
	}
}

// AudioFormat describes raw PCM layout. Only meaningful when Codec == CodecPCM.
type AudioFormat struct {
	SampleRateHz  int
	Channels      int
	BitsPerSample int
}

// BytesPerFrame returns the byte size of one frame of the given duration at
// this format (samples/sec * channels * bytes/sample * seconds).
func (f AudioFormat) BytesPerFrame(frameDurationMS int64) int {
	bytesPerSample := f.BitsPerSample / 8
	samplesPerFrame := f.SampleRateHz * int(frameDurationMS) / 1000
	return samplesPerFrame * f.Channels * bytesPerSample
}

// SilenceFrame returns a zeroed PCM buffer of exactly one frame duration.
// Silence is bit-exact zero; it must never be padding or compressed silence.
func (f AudioFormat) SilenceFrame(frameDurationMS int64) []byte {
	return make([]byte, f.BytesPerFrame(frameDurationMS))
}

// Metadata is the mutable, hot-swappable display metadata for a stream.
type Metadata struct {
	Title  string
	Artist string
	Source string
}
