// Package icy implements the two wire-framing helpers the audio pull
// endpoint needs: a per-connection WAV/RIFF header for PCM streams, and ICY
// (Shoutcast) inline metadata blocks for MP3/AAC streams.
//
// Grounded on original_source packages/thaumic-core/src/stream/wav.rs and
// stream/icy.rs; reimplemented with encoding/binary instead of the bytes
// crate's BufMut, Go's idiomatic equivalent.
package icy

import (
	"encoding/binary"

	"github.com/kaelwillow/sonocast/internal/protocol"
)

// WAVStreamSizeMax is written into the RIFF ChunkSize and data chunk size
// fields to signal "file-like, size unknown ahead of time" to the renderer.
const WAVStreamSizeMax = protocol.WAVStreamSizeMax

// NewWAVHeader builds the 44-byte RIFF/WAVE header prepended to every PCM
// HTTP connection. bitsPerSample is always 16 for this bridge's PCM path.
func NewWAVHeader(sampleRate, channels, bitsPerSample int) []byte {
	h := make([]byte, 44)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], WAVStreamSizeMax)
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	byteRate := uint32(sampleRate) * uint32(channels) * uint32(bitsPerSample/8)
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	blockAlign := uint16(channels) * uint16(bitsPerSample/8)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], uint16(bitsPerSample))

	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], WAVStreamSizeMax)

	return h
}
