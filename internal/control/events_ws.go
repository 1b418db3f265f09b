package control

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEventsWS serves GET /ws/events: a control-plane subscriber (the
// operator's frontend) receives every eventbus.Envelope as JSON text
// frames until it disconnects. Grounded on the teacher's broadcast-hub
// subscriber shape (internal/radio), adapted from audio bytes to JSON
// event envelopes.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("events: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, events := s.bus.Subscribe()
	defer s.bus.Unsubscribe(id)

	conn.SetReadDeadline(time.Now().Add(time.Minute))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(time.Minute))
		return nil
	})

	// Drain (and discard) inbound frames purely to notice the client
	// closing the connection; this socket is outbound-only otherwise.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
