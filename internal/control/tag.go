package control

import (
	"bytes"

	"github.com/dhowden/tag"
	"github.com/kaelwillow/sonocast/internal/stream"
)

// metadataFromTaggedFile reads embedded ID3/FLAC/MP4 tags from a
// file-backed clip a producer pushes in place of a live capture, so the
// stream's display metadata starts populated instead of blank until the
// first explicit update_metadata call. Grounded on spec.md §6's mention of
// the producer pushing JSON metadata text frames: this is the same path,
// fed by the file's own tags instead of a hand-typed title/artist.
func metadataFromTaggedFile(data []byte) (stream.Metadata, error) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return stream.Metadata{}, err
	}
	return stream.Metadata{
		Title:  m.Title(),
		Artist: m.Artist(),
		Source: m.Album(),
	}, nil
}
