package control

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kaelwillow/sonocast/internal/apierr"
	"github.com/kaelwillow/sonocast/internal/auth"
	"github.com/kaelwillow/sonocast/internal/discovery"
	"github.com/kaelwillow/sonocast/internal/protocol"
	"github.com/kaelwillow/sonocast/internal/stream"
)

// registerAPIRoutes wires the gin REST router: operator login (open),
// read-only listings (open), and the mutating playback/stream routes
// (behind ginAuthRequired). Grounded on the teacher's internal/radio router
// grouping (open status routes, token-gated mutating routes) generalized
// from a single-station radio to many streams and many speakers.
func (s *Server) registerAPIRoutes(engine *gin.Engine) {
	api := engine.Group("/api")

	api.POST("/login", s.handleLogin)
	api.GET("/speakers", s.handleListSpeakers)
	api.GET("/zonegroups", s.handleListZoneGroups)
	api.GET("/streams", s.handleListStreams)

	authed := api.Group("")
	authed.Use(s.ginAuthRequired())
	authed.POST("/streams/:id", s.handleCreateStream)
	authed.DELETE("/streams/:id", s.handleRemoveStream)
	authed.POST("/playback/:id/start", s.handleStartPlayback)
	authed.POST("/playback/:id/stop", s.handleStopPlayback)
}

// ginAuthRequired gates a route group behind the operator bearer token,
// reusing auth.ExtractBearerToken/auth.WriteError so the response envelope
// matches the stdlib-routed endpoints exactly without auth importing gin.
func (s *Server) ginAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.Request)
		if err != nil {
			auth.WriteError(c.Writer, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		if _, err := s.auth.ValidateToken(token); err != nil {
			auth.WriteError(c.Writer, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		c.Next()
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Envelope{Error: "invalid_request", Message: err.Error(), Status: http.StatusBadRequest})
		return
	}

	token, err := s.auth.Authenticate(req.Username, req.Password, c.Request.RemoteAddr)
	if err != nil {
		status := http.StatusUnauthorized
		if err == auth.ErrRateLimited {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, apierr.Envelope{Error: "unauthorized", Message: err.Error(), Status: status})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleListSpeakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"speakers": s.discovery.Speakers()})
}

func (s *Server) handleListZoneGroups(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"groups": s.cache.Groups()})
}

type streamSummary struct {
	ID              string `json:"id"`
	Codec           string `json:"codec"`
	FrameDurationMS int64  `json:"frame_duration_ms"`
	BufferTargetMS  int64  `json:"buffer_target_ms"`
	RingLen         int    `json:"ring_len"`
	Listeners       int    `json:"listeners"`
	StreamURL       string `json:"stream_url"`
}

func (s *Server) handleListStreams(c *gin.Context) {
	ids := s.registry.List()
	summaries := make([]streamSummary, 0, len(ids))
	for _, id := range ids {
		st, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		summaries = append(summaries, streamSummary{
			ID:              id,
			Codec:           st.Codec.String(),
			FrameDurationMS: st.FrameDuration.Milliseconds(),
			BufferTargetMS:  st.BufferTargetMS,
			RingLen:         st.RingLen(),
			Listeners:       st.ActiveListeners(),
			StreamURL:       s.streamURL(id),
		})
	}
	c.JSON(http.StatusOK, gin.H{"streams": summaries})
}

type createStreamRequest struct {
	Codec           string `json:"codec" binding:"required"`
	SampleRateHz    int    `json:"sample_rate_hz"`
	Channels        int    `json:"channels"`
	BitsPerSample   int    `json:"bits_per_sample"`
	FrameDurationMS int64  `json:"frame_duration_ms" binding:"required"`
	BufferTargetMS  int64  `json:"buffer_target_ms"`
}

// handleCreateStream serves POST /api/streams/{id}: create_or_get per
// spec.md §4.1. Idempotent — a second call with the same id returns the
// existing handle's URL whatever codec and timing its body names; the body
// is still validated first, and an invalid one is rejected with 400.
func (s *Server) handleCreateStream(c *gin.Context) {
	id := c.Param("id")

	var req createStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Envelope{Error: "invalid_request", Message: err.Error(), Status: http.StatusBadRequest})
		return
	}

	codec, err := stream.ParseCodec(req.Codec)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierr.Envelope{Error: "invalid_request", Message: err.Error(), Status: http.StatusBadRequest})
		return
	}

	frameDuration := time.Duration(req.FrameDurationMS) * time.Millisecond
	if req.FrameDurationMS < protocol.MinFrameDurationMS || req.FrameDurationMS > protocol.MaxFrameDurationMS {
		c.JSON(http.StatusBadRequest, apierr.Envelope{
			Error:   "invalid_request",
			Message: "frame_duration_ms out of range",
			Status:  http.StatusBadRequest,
		})
		return
	}

	bufferTargetMS := req.BufferTargetMS
	if bufferTargetMS <= 0 {
		bufferTargetMS = protocol.DefaultStreamingBufferMS
	}

	format := stream.AudioFormat{
		SampleRateHz:  req.SampleRateHz,
		Channels:      req.Channels,
		BitsPerSample: req.BitsPerSample,
	}
	if codec == stream.CodecPCM {
		if format.SampleRateHz <= 0 {
			format.SampleRateHz = protocol.DefaultSampleRateHz
		}
		if format.Channels <= 0 {
			format.Channels = protocol.DefaultChannels
		}
		if format.BitsPerSample <= 0 {
			format.BitsPerSample = 16
		}
	}

	if _, exists := s.registry.Get(id); !exists && len(s.registry.List()) >= s.cfg.MaxConcurrentStreams {
		c.JSON(http.StatusServiceUnavailable, apierr.Envelope{
			Error:   "max_concurrent_streams",
			Message: fmt.Sprintf("at capacity: %d concurrent streams already live", s.cfg.MaxConcurrentStreams),
			Status:  http.StatusServiceUnavailable,
		})
		return
	}

	st := s.registry.CreateOrGet(id, codec, format, frameDuration, bufferTargetMS)
	c.JSON(http.StatusOK, gin.H{
		"id":                st.ID,
		"codec":             st.Codec.String(),
		"stream_url":        s.streamURL(id),
		"ingest_ws_url":     s.ingestURL(id),
		"frame_duration_ms": st.FrameDuration.Milliseconds(),
	})
}

func (s *Server) handleRemoveStream(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.registry.Get(id); !ok {
		c.JSON(http.StatusNotFound, apierr.Envelope{Error: "not_found", Message: "unknown stream id", Status: http.StatusNotFound})
		return
	}
	s.coordinator.StopPlayback(c.Request.Context(), id)
	s.registry.Remove(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "removed": true})
}

type startPlaybackRequest struct {
	TargetIPs  []string `json:"target_ips" binding:"required"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	Source     string   `json:"source"`
	ArtworkURL string   `json:"artwork_url"`
}

// handleStartPlayback serves POST /api/playback/{id}/start: validates the
// target IPs (spec.md §7 invalid_ip), resolves them against current
// topology, hot-swaps the stream's display metadata, and drives
// Coordinator.StartPlayback.
func (s *Server) handleStartPlayback(c *gin.Context) {
	id := c.Param("id")

	st, ok := s.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, apierr.Envelope{Error: "not_found", Message: "unknown stream id", Status: http.StatusNotFound})
		return
	}

	var req startPlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apierr.Envelope{Error: "invalid_request", Message: err.Error(), Status: http.StatusBadRequest})
		return
	}

	if err := validateTargetIPs(req.TargetIPs); err != nil {
		env, status := apierr.AsEnvelope(err)
		c.JSON(status, env)
		return
	}

	known := s.discovery.Speakers()
	for _, ip := range req.TargetIPs {
		if !speakerKnown(known, ip) {
			c.JSON(http.StatusNotFound, apierr.Envelope{
				Error:   "not_found",
				Message: "speaker " + ip + " is not a known renderer",
				Status:  http.StatusNotFound,
			})
			return
		}
	}

	if req.Title != "" || req.Artist != "" || req.Source != "" {
		_ = s.registry.UpdateMetadata(id, stream.Metadata{Title: req.Title, Artist: req.Artist, Source: req.Source})
	}
	meta := st.Metadata()

	artworkURL := req.ArtworkURL
	if artworkURL == "" {
		artworkURL = s.publicBaseURL + "/artwork.jpg"
	}

	groups := s.cache.Groups()
	result := s.coordinator.StartPlayback(
		c.Request.Context(), id, req.TargetIPs, groups,
		s.streamURL(id), s.genaCallbackURL(), st.Codec, st.Format, &meta, artworkURL,
	)

	failed := make(map[string]string, len(result.Failed))
	for ip, err := range result.Failed {
		failed[ip] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"stream_id":      result.StreamID,
		"coordinator_ip": result.CoordinatorIP,
		"started":        result.Started,
		"failed":         failed,
	})
}

func (s *Server) handleStopPlayback(c *gin.Context) {
	id := c.Param("id")
	failures := s.coordinator.StopPlayback(c.Request.Context(), id)

	failed := make(map[string]string, len(failures))
	for ip, err := range failures {
		failed[ip] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{"stream_id": id, "failed": failed})
}

func speakerKnown(speakers []discovery.Speaker, ip string) bool {
	for _, sp := range speakers {
		if sp.IP == ip {
			return true
		}
	}
	return false
}

// streamURL builds the absolute audio-pull URL a renderer's
// SetAVTransportURI points at.
func (s *Server) streamURL(id string) string {
	return s.publicBaseURL + "/stream/" + id
}

// ingestURL builds the absolute WebSocket URL the producer connects to.
func (s *Server) ingestURL(id string) string {
	return wsBaseURL(s.publicBaseURL) + "/ws/ingest/" + id
}

// genaCallbackURL builds the absolute GENA NOTIFY callback URL burned into
// every SUBSCRIBE request this process issues.
func (s *Server) genaCallbackURL() string {
	return s.publicBaseURL + "/sonos/gena"
}

func wsBaseURL(httpBase string) string {
	switch {
	case len(httpBase) >= 5 && httpBase[:5] == "https":
		return "wss" + httpBase[5:]
	case len(httpBase) >= 4 && httpBase[:4] == "http":
		return "ws" + httpBase[4:]
	default:
		return httpBase
	}
}
