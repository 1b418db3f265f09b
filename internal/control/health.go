package control

import (
	"net/http"

	"github.com/kaelwillow/sonocast/internal/protocol"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        protocol.ServiceID,
		"status":         "ok",
		"active_streams": len(s.registry.List()),
	})
}
