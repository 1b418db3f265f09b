// Package control wires sonocast's inbound surface together: the gin JSON
// REST API for playback control, and the raw net/http handlers for the
// audio pull endpoint, the GENA NOTIFY callback, and the WebSocket ingest
// socket. Grounded on the teacher's internal/radio.Server (NewServer/mux/
// securityHeaders/Start/Shutdown shape) in internal/radio/server.go.
package control

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kaelwillow/sonocast/config"
	"github.com/kaelwillow/sonocast/internal/auth"
	"github.com/kaelwillow/sonocast/internal/discovery"
	"github.com/kaelwillow/sonocast/internal/eventbus"
	"github.com/kaelwillow/sonocast/internal/sonos"
	"github.com/kaelwillow/sonocast/internal/stream"
	"github.com/kaelwillow/sonocast/internal/topology"
)

// Server is the top-level bridge process: every component spec.md names,
// wired to one HTTP listener.
type Server struct {
	cfg *config.Config

	registry    *stream.Registry
	gena        *sonos.SubscriptionManager
	genaEvents  <-chan sonos.Event
	arbiter     *sonos.SubscriptionArbiter
	coordinator *sonos.Coordinator
	cache       *sonos.StateCache
	discovery   *discovery.Registry
	topology    *topology.Monitor
	bus         *eventbus.Bus
	auth        *auth.Auth

	// publicBaseURL is this process's own address as seen by renderers on
	// the LAN (e.g. "http://192.168.1.5:49400"), used to build stream URLs,
	// the GENA callback URL, and artwork URLs.
	publicBaseURL string

	artwork *artworkStore

	httpServer *http.Server
}

// Deps bundles every component Server needs, assembled by main.go.
type Deps struct {
	Config        *config.Config
	Registry      *stream.Registry
	Gena          *sonos.SubscriptionManager
	GenaEvents    <-chan sonos.Event
	Arbiter       *sonos.SubscriptionArbiter
	Coordinator   *sonos.Coordinator
	Cache         *sonos.StateCache
	Discovery     *discovery.Registry
	Topology      *topology.Monitor
	Bus           *eventbus.Bus
	Auth          *auth.Auth
	PublicBaseURL string
	ListenAddr    string
}

// securityHeaders adds the same baseline headers the teacher applies to
// every response, regardless of which sub-router served it.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// NewServer assembles the gin REST router and the raw net/http handlers
// behind one *http.Server. The background event router that drains
// GenaEvents into the cache, coordinator, topology monitor, and bus is
// started by Start, not here.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:           d.Config,
		registry:      d.Registry,
		gena:          d.Gena,
		genaEvents:    d.GenaEvents,
		arbiter:       d.Arbiter,
		coordinator:   d.Coordinator,
		cache:         d.Cache,
		discovery:     d.Discovery,
		topology:      d.Topology,
		bus:           d.Bus,
		auth:          d.Auth,
		publicBaseURL: d.PublicBaseURL,
		artwork:       newArtworkStore(d.Config.ArtworkPath),
	}

	s.registry.OnEnded(func(id string) {
		s.coordinator.StopPlayback(context.Background(), id)
	})

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.registerAPIRoutes(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stream/{id}", s.handleStreamPull)
	mux.HandleFunc("GET /artwork.jpg", s.handleArtwork)
	mux.HandleFunc("POST /sonos/gena", s.handleGenaNotify)
	mux.HandleFunc("GET /ws/ingest/{id}", s.handleIngestWS)
	mux.HandleFunc("GET /ws/events", s.handleEventsWS)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("/", engine)

	s.httpServer = &http.Server{
		Addr:           d.ListenAddr,
		Handler:        securityHeaders(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   0, // streaming connections are long-lived
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Start runs the event router and the HTTP server until ctx is cancelled,
// then shuts the HTTP server down gracefully. Mirrors the teacher's
// Start(ctx) goroutine+errChan+select shape.
func (s *Server) Start(ctx context.Context) error {
	go runEventRouter(ctx, s.genaEvents, s.cache, s.coordinator, s.topology, s.bus)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
