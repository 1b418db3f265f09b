package control

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kaelwillow/sonocast/internal/cadence"
	"github.com/kaelwillow/sonocast/internal/icy"
	"github.com/kaelwillow/sonocast/internal/protocol"
	"github.com/kaelwillow/sonocast/internal/stream"
)

// handleStreamPull serves GET /stream/{id}: the cadenced audio pull a Sonos
// renderer's HTTP client keeps open indefinitely. Grounded on the teacher's
// StreamHandler.ServeHTTP (internal/radio/stream.go) for the
// subscribe/defer-unsubscribe/header/flush-loop shape, generalized to drive
// internal/cadence.Run instead of a plain fan-out read, and to prepend a
// WAV header or interleave ICY metadata depending on codec.
func (s *Server) handleStreamPull(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	st, ok := s.registry.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "unknown stream id"})
		return
	}

	if rng := r.Header.Get("Range"); rng != "" {
		slog.Info("stream: Range header ignored, cadence streams are not seekable", "stream_id", id, "range", rng)
	}

	clientIP := remoteIP(r.RemoteAddr)
	connectedAt := time.Now()

	if _, resumed := st.Timing.CurrentEpochFor(clientIP); resumed {
		slog.Info("stream: renderer reconnected to a live session", "stream_id", id, "client_ip", clientIP)
		s.coordinator.OnHTTPResume(r.Context(), clientIP)
	} else if st.Codec == stream.CodecPCM {
		// Prefill delay: give the ring buffer_target_ms to fill before a new
		// PCM connection subscribes. Resumed connections skip it.
		select {
		case <-time.After(time.Duration(st.BufferTargetMS) * time.Millisecond):
		case <-r.Context().Done():
			return
		}
	}

	epochCandidate, prefill, rx, unsubscribe, err := s.registry.Subscribe(id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	defer unsubscribe()

	codec := st.Codec
	w.Header().Set("Content-Type", codec.MimeType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("TransferMode.dlna.org", "Streaming")
	w.Header().Set("icy-name", protocol.AppName)

	icyEnabled := codec.SupportsICY() && r.Header.Get("Icy-MetaData") == "1"
	if icyEnabled {
		w.Header().Set("icy-metaint", fmt.Sprintf("%d", protocol.ICYMetaInt))
	}
	if codec == stream.CodecPCM {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", protocol.WAVStreamSizeMax))
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, fmt.Errorf("streaming unsupported by response writer"))
		return
	}
	w.WriteHeader(http.StatusOK)

	if codec == stream.CodecPCM {
		if _, err := w.Write(icy.NewWAVHeader(st.Format.SampleRateHz, st.Format.Channels, 16)); err != nil {
			return
		}
		flusher.Flush()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var injector *icy.Injector
	if icyEnabled {
		injector = icy.NewInjector()
	}
	emit := func(chunk []byte) error {
		if injector != nil {
			meta := st.Metadata()
			chunk = injector.Inject(chunk, icy.Metadata{Artist: meta.Artist, Title: meta.Title})
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// Per spec §4.2, the cadence metronome is only active for PCM: renderers
	// treat lossless PCM/WAV as a file download and stall if the body pauses
	// longer than their jitter buffer. Compressed codecs have their own
	// framing and tolerate the producer's natural delivery pace, so they get
	// the prefill chained directly ahead of a live tap with no pacing and no
	// silence injection.
	if codec != stream.CodecPCM {
		firstReal := true
		commitEpoch := func() {
			if firstReal {
				firstReal = false
				st.Timing.StartEpoch(epochCandidate, connectedAt, clientIP)
			}
		}
		for _, f := range prefill {
			commitEpoch()
			if err := emit(f); err != nil {
				return
			}
		}
		for f := range rx {
			if f.Lagged > 0 {
				slog.Warn("stream: consumer lagged", "stream_id", id, "client_ip", clientIP, "frames_dropped", f.Lagged)
				continue
			}
			commitEpoch()
			if err := emit(f.Data); err != nil {
				return
			}
		}
		return
	}

	live := make(chan cadence.Frame)
	go func() {
		defer close(live)
		for f := range rx {
			select {
			case live <- cadence.Frame{Data: f.Data, Lagged: f.Lagged}:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make(chan []byte, 1)
	hooks := cadence.Hooks{
		OnFirstRealFrame: func() {
			st.Timing.StartEpoch(epochCandidate, connectedAt, clientIP)
		},
		OnLagged: func(n int) {
			slog.Warn("stream: consumer lagged", "stream_id", id, "client_ip", clientIP, "frames_dropped", n)
		},
	}
	cfg := cadence.Config{
		FrameDuration: st.FrameDuration,
		SilenceFrame:  st.SilenceFrame(),
		QueueSize:     st.QueueSize(),
		Clock:         cadence.RealClock,
	}
	go cadence.Run(ctx, cfg, cadence.Source{Prefill: prefill, Live: live}, out, hooks)

	for frame := range out {
		if err := emit(frame); err != nil {
			return
		}
	}
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
