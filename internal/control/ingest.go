package control

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kaelwillow/sonocast/internal/stream"
)

var ingestUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The producer is a trusted first-party component of this bridge, not
	// a browser page the CSRF-style origin check is meant to stop.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ingestMessage is the JSON shape of a text frame on the producer socket.
// Type "metadata" carries Title/Artist/Source directly; type "tag_file"
// carries a base64-encoded file whose embedded tags are extracted instead.
type ingestMessage struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Source     string `json:"source"`
	FileBase64 string `json:"file_base64"`
}

// handleIngestWS serves GET /ws/ingest/{id}: the producer's bidirectional
// socket. Binary frames are one encoded audio frame each; JSON text frames
// update display metadata. Grounded on iamprashant-voice-ai's
// gorilla/websocket handler for the upgrade/read-loop/heartbeat shape,
// generalized from speech audio to this bridge's codec-agnostic frames.
func (s *Server) handleIngestWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.registry.Get(id); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "unknown stream id"})
		return
	}

	conn, err := ingestUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ingest: websocket upgrade failed", "stream_id", id, "error", err)
		return
	}
	defer conn.Close()

	// connID distinguishes overlapping producer connections for the same
	// stream id across log lines (a reconnect racing a stale close, say).
	connID := uuid.NewString()

	heartbeatTimeout := s.cfg.WSHeartbeatTimeout
	conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(heartbeatTimeout))
		return nil
	})

	done := make(chan struct{})
	go s.ingestHeartbeat(conn, done)
	defer close(done)

	slog.Info("ingest: producer connected", "stream_id", id, "conn_id", connID)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("ingest: producer disconnected", "stream_id", id, "conn_id", connID, "error", err)
			s.registry.Remove(id)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := s.registry.PushFrame(id, data); err != nil {
				slog.Warn("ingest: push frame failed", "stream_id", id, "conn_id", connID, "error", err)
				return
			}
		case websocket.TextMessage:
			s.handleIngestMetadata(id, data)
		}
	}
}

func (s *Server) handleIngestMetadata(id string, data []byte) {
	var msg ingestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("ingest: malformed metadata frame", "stream_id", id, "error", err)
		return
	}

	meta := stream.Metadata{Title: msg.Title, Artist: msg.Artist, Source: msg.Source}

	if msg.Type == "tag_file" && msg.FileBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(msg.FileBase64)
		if err != nil {
			slog.Warn("ingest: invalid tag_file payload", "stream_id", id, "error", err)
			return
		}
		tagged, err := metadataFromTaggedFile(raw)
		if err != nil {
			slog.Warn("ingest: failed to read embedded tags", "stream_id", id, "error", err)
		} else {
			meta = tagged
		}
	}

	if err := s.registry.UpdateMetadata(id, meta); err != nil {
		slog.Warn("ingest: update metadata failed", "stream_id", id, "error", err)
	}
}

// ingestHeartbeat pings the producer at WSHeartbeatInterval until done is
// closed; the ReadDeadline reset in the pong handler is what actually
// detects a dead connection.
func (s *Server) ingestHeartbeat(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.WSHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
