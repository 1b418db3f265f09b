package control

import (
	"encoding/json"
	"net/http"

	"github.com/kaelwillow/sonocast/internal/apierr"
)

// writeJSON serializes v as the response body with status. Used by the raw
// net/http handlers (gin handlers use c.JSON directly); grounded on the
// teacher's Server.writeJSON in internal/radio/server.go.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError classifies err via apierr and writes its envelope.
func writeAPIError(w http.ResponseWriter, err error) {
	env, status := apierr.AsEnvelope(err)
	writeJSON(w, status, env)
}
