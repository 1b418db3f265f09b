package control

import (
	"io"
	"net/http"
	"time"

	"github.com/kaelwillow/sonocast/internal/protocol"
)

// handleGenaNotify serves POST /sonos/gena, the UPnP NOTIFY callback every
// subscribed renderer posts to on a state change. Grounded on the teacher's
// MaxBytesReader-before-decode pattern (internal/radio/server.go) applied
// here to the GENA body cap instead of a JSON API body cap.
func (s *Server) handleGenaNotify(w http.ResponseWriter, r *http.Request) {
	sid := r.Header.Get("SID")
	if sid == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, protocol.MaxGENABodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	s.gena.HandleNotify(sid, string(body), time.Now().UnixMilli())
	w.WriteHeader(http.StatusOK)
}
