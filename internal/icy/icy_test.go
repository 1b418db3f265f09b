package icy

import (
	"bytes"
	"testing"
)

func TestFormatBlockNoMetadata(t *testing.T) {
	got := FormatBlock(Metadata{})
	want := []byte{0}
	if !bytes.Equal(got, want) {
		t.Fatalf("FormatBlock(empty) = %v, want %v", got, want)
	}
}

func TestFormatBlockRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		m    Metadata
		want string
	}{
		{"artist and title", Metadata{Artist: "Boards of Canada", Title: "Roygbiv"}, "StreamTitle='Boards of Canada - Roygbiv';"},
		{"title only", Metadata{Title: "Roygbiv"}, "StreamTitle='Roygbiv';"},
		{"artist only", Metadata{Artist: "Boards of Canada"}, "StreamTitle='Boards of Canada';"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			block := FormatBlock(tc.m)
			if len(block) == 0 {
				t.Fatalf("empty block")
			}
			n := int(block[0])
			payload := block[1:]
			if len(payload) != n*16 {
				t.Fatalf("payload length %d not a multiple of 16 matching length byte %d", len(payload), n)
			}
			// Decode: strip trailing NULs, compare against expected string verbatim.
			trimmed := bytes.TrimRight(payload, "\x00")
			if string(trimmed) != tc.want {
				t.Fatalf("decoded = %q, want %q", trimmed, tc.want)
			}
		})
	}
}

func TestFormatBlockApostropheSubstitution(t *testing.T) {
	block := FormatBlock(Metadata{Artist: "Guns N' Roses", Title: "Don't Stop"})
	trimmed := bytes.TrimRight(block[1:], "\x00")
	// The StreamTitle='...'; delimiters are ASCII; only the title inside them
	// must have its apostrophes substituted.
	inner := bytes.TrimSuffix(bytes.TrimPrefix(trimmed, []byte("StreamTitle='")), []byte("';"))
	if bytes.ContainsRune(inner, '\'') {
		t.Fatalf("expected ASCII apostrophes to be substituted, got %q", trimmed)
	}
	want := "StreamTitle='Guns N’ Roses - Don’t Stop';"
	if string(trimmed) != want {
		t.Fatalf("decoded = %q, want %q", trimmed, want)
	}
}

func TestInjectorInsertsAtMETAINTBoundary(t *testing.T) {
	inj := NewInjector()
	meta := Metadata{Artist: "A", Title: "B"}
	block := FormatBlock(meta)

	chunk := bytes.Repeat([]byte{0xAB}, METAINT)
	out := inj.Inject(chunk, meta)

	if !bytes.Equal(out[:METAINT], chunk) {
		t.Fatalf("audio bytes before metadata boundary were altered")
	}
	if !bytes.Equal(out[METAINT:METAINT+len(block)], block) {
		t.Fatalf("metadata block not inserted exactly at METAINT boundary")
	}
	if inj.BytesSinceMeta() != 0 {
		t.Fatalf("bytesSinceMeta = %d, want 0 right after a boundary", inj.BytesSinceMeta())
	}
}

func TestInjectorTracksPositionAcrossChunks(t *testing.T) {
	inj := NewInjector()
	meta := Metadata{Title: "T"}

	half := METAINT / 2
	first := bytes.Repeat([]byte{1}, half)
	second := bytes.Repeat([]byte{2}, half)

	out1 := inj.Inject(first, meta)
	if !bytes.Equal(out1, first) {
		t.Fatalf("first half should pass through unmodified, got len %d", len(out1))
	}
	if inj.BytesSinceMeta() != half {
		t.Fatalf("bytesSinceMeta = %d, want %d", inj.BytesSinceMeta(), half)
	}

	out2 := inj.Inject(second, meta)
	block := FormatBlock(meta)
	if !bytes.Equal(out2[:half], second) {
		t.Fatalf("second half audio altered before boundary")
	}
	if !bytes.Equal(out2[half:half+len(block)], block) {
		t.Fatalf("metadata block missing at boundary split across chunks")
	}
}

func TestInjectorCachesUnchangedMetadata(t *testing.T) {
	inj := NewInjector()
	meta := Metadata{Artist: "A", Title: "B"}

	inj.refreshCache(meta)
	cached := inj.cached
	inj.refreshCache(meta)
	if &inj.cached[0] != &cached[0] {
		t.Fatalf("expected cached block to be reused for unchanged metadata")
	}

	inj.refreshCache(Metadata{Artist: "A", Title: "C"})
	if bytes.Equal(inj.cached, cached) {
		t.Fatalf("expected cache to refresh when title changes")
	}
}
