package icy

import (
	"bytes"
	"strings"

	"github.com/kaelwillow/sonocast/internal/protocol"
)

// METAINT is the byte interval at which an ICY metadata block is inserted
// into the audio stream.
const METAINT = protocol.ICYMetaInt

// Metadata is the subset of stream display metadata the ICY block carries.
// Album, artwork, and source are used elsewhere (DIDL-Lite) but never in
// StreamTitle.
type Metadata struct {
	Artist string
	Title  string
}

// FormatBlock formats metadata into a length-prefixed ICY metadata block.
// Per spec, a single zero byte means "no metadata"; otherwise the first byte
// is the number of 16-byte chunks, followed by the metadata string padded
// with NULs to that length.
func FormatBlock(m Metadata) []byte {
	var title string
	switch {
	case m.Artist != "" && m.Title != "":
		title = m.Artist + " - " + m.Title
	case m.Title != "":
		title = m.Title
	case m.Artist != "":
		title = m.Artist
	default:
		return []byte{0}
	}

	// Sonos displays a backslash-escaped apostrophe literally; substitute
	// the visually-identical U+2019 to avoid delimiter confusion instead.
	title = strings.ReplaceAll(title, "'", "’")

	metaStr := "StreamTitle='" + title + "';"
	metaBytes := []byte(metaStr)

	numBlocks := (len(metaBytes) + 15) / 16
	paddedLen := numBlocks * 16

	out := make([]byte, 0, paddedLen+1)
	out = append(out, byte(numBlocks))
	out = append(out, metaBytes...)
	for len(out) < paddedLen+1 {
		out = append(out, 0)
	}
	return out
}

// Injector is a stateful per-connection inserter of ICY metadata blocks at
// METAINT byte intervals. One Injector must be used per HTTP connection.
type Injector struct {
	bytesSinceMeta int
	cached         []byte
	lastArtist     string
	lastTitle      string
}

// NewInjector returns an injector primed with the "no metadata" block.
func NewInjector() *Injector {
	return &Injector{cached: []byte{0}}
}

func (inj *Injector) refreshCache(m Metadata) {
	if inj.lastArtist != m.Artist || inj.lastTitle != m.Title {
		inj.cached = FormatBlock(m)
		inj.lastArtist = m.Artist
		inj.lastTitle = m.Title
	}
}

// Inject interleaves ICY metadata blocks into chunk at the correct byte
// offsets, returning the combined output. Safe to call with successive
// chunks from the same connection; tracks byte position across calls.
func (inj *Injector) Inject(chunk []byte, m Metadata) []byte {
	inj.refreshCache(m)

	var out bytes.Buffer
	out.Grow(len(chunk) + len(inj.cached))

	remaining := chunk
	for len(remaining) > 0 {
		bytesToMeta := METAINT - inj.bytesSinceMeta
		if len(remaining) < bytesToMeta {
			out.Write(remaining)
			inj.bytesSinceMeta += len(remaining)
			break
		}
		out.Write(remaining[:bytesToMeta])
		out.Write(inj.cached)
		remaining = remaining[bytesToMeta:]
		inj.bytesSinceMeta = 0
	}

	return out.Bytes()
}

// BytesSinceMeta reports the current byte count since the last metadata
// block, exposed for tests.
func (inj *Injector) BytesSinceMeta() int {
	return inj.bytesSinceMeta
}
