// Package config loads sonocast's runtime configuration: defaults,
// overridden by environment variables, overridden by CLI flags. There is no
// file layer — env + flag is the full chain for this module.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully-resolved runtime configuration for one sonocast
// process. Every field corresponds to an item in the configuration surface
// of the control plane; Validate requires the capacities, the topology
// refresh interval and the WebSocket heartbeat timings to be >0 (MDNSTimeout
// and TokenTTL are not checked), the same posture as the teacher's env
// loader generalized to
// parse durations and bools as well as strings and ints.
type Config struct {
	// Port is the preferred listen port. 0 means auto-pick from the
	// PortRangeStart..PortRangeEnd band.
	Port           int
	PortRangeStart int
	PortRangeEnd   int

	// AdvertiseIP is the address burned into stream/callback URLs handed to
	// renderers. Empty means auto-detect from the outbound interface.
	AdvertiseIP string

	// Discovery toggles.
	SSDPMulticastEnabled bool
	SSDPBroadcastEnabled bool
	MDNSEnabled          bool
	MDNSTimeout          time.Duration

	// TopologyRefreshInterval is how often the topology monitor polls a
	// seed speaker on its own schedule, independent of event-triggered
	// refreshes.
	TopologyRefreshInterval time.Duration

	// MaxConcurrentStreams bounds how many live streams the registry will
	// accept at once.
	MaxConcurrentStreams int
	// BufferFrames is a queue depth in frames. It is loaded and validated
	// but no component reads it: ring and cadence-queue depth come from each
	// stream's buffer_target_ms.
	BufferFrames int
	// ChannelCapacity is a channel depth. It is loaded and validated but no
	// component reads it: the broadcast hub is sized from each stream's
	// buffer target.
	ChannelCapacity int

	// WSHeartbeatInterval and WSHeartbeatTimeout govern the producer
	// WebSocket's ping/pong liveness check.
	WSHeartbeatInterval time.Duration
	WSHeartbeatTimeout  time.Duration

	// EventBusCapacity bounds each control-plane WebSocket subscriber's
	// outbound event buffer.
	EventBusCapacity int

	// ArtworkPath is the optional static artwork file served at
	// GET /artwork.jpg. Empty disables the endpoint (404).
	ArtworkPath string

	// Operator auth.
	OperatorUsername   string
	OperatorPassword   string
	JWTSecret          string
	TokenTTL           time.Duration
	MaxLoginAttempts   int
	LoginWindowSeconds int
}

// Load resolves Config from defaults, then environment variables, then CLI
// flags (each layer overriding the last), and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                    getEnvAsInt("SONOCAST_PORT", 0),
		PortRangeStart:          getEnvAsInt("SONOCAST_PORT_RANGE_START", 49400),
		PortRangeEnd:            getEnvAsInt("SONOCAST_PORT_RANGE_END", 49410),
		AdvertiseIP:             getEnv("SONOCAST_ADVERTISE_IP", ""),
		SSDPMulticastEnabled:    getEnvAsBool("SONOCAST_SSDP_MULTICAST", true),
		SSDPBroadcastEnabled:    getEnvAsBool("SONOCAST_SSDP_BROADCAST", true),
		MDNSEnabled:             getEnvAsBool("SONOCAST_MDNS", true),
		MDNSTimeout:             getEnvAsDuration("SONOCAST_MDNS_TIMEOUT", 3*time.Second),
		TopologyRefreshInterval: getEnvAsDuration("SONOCAST_TOPOLOGY_REFRESH_INTERVAL", 30*time.Second),
		MaxConcurrentStreams:    getEnvAsInt("SONOCAST_MAX_CONCURRENT_STREAMS", 8),
		BufferFrames:            getEnvAsInt("SONOCAST_BUFFER_FRAMES", 20),
		ChannelCapacity:         getEnvAsInt("SONOCAST_CHANNEL_CAPACITY", 64),
		WSHeartbeatInterval:     getEnvAsDuration("SONOCAST_WS_HEARTBEAT_INTERVAL", time.Second),
		WSHeartbeatTimeout:      getEnvAsDuration("SONOCAST_WS_HEARTBEAT_TIMEOUT", 30*time.Second),
		EventBusCapacity:        getEnvAsInt("SONOCAST_EVENT_BUS_CAPACITY", 100),
		ArtworkPath:             getEnv("SONOCAST_ARTWORK_PATH", ""),
		OperatorUsername:        getEnv("SONOCAST_OPERATOR_USERNAME", "operator"),
		OperatorPassword:        getEnv("SONOCAST_OPERATOR_PASSWORD", "change-me"),
		JWTSecret:               getEnv("SONOCAST_JWT_SECRET", "change-me-in-production-please"),
		TokenTTL:                getEnvAsDuration("SONOCAST_TOKEN_TTL", 24*time.Hour),
		MaxLoginAttempts:        getEnvAsInt("SONOCAST_MAX_LOGIN_ATTEMPTS", 5),
		LoginWindowSeconds:      getEnvAsInt("SONOCAST_LOGIN_WINDOW_SECONDS", 900),
	}

	fs := flag.NewFlagSet("sonocast", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "preferred listen port (0 = auto-pick)")
	fs.StringVar(&cfg.AdvertiseIP, "advertise-ip", cfg.AdvertiseIP, "IP address advertised to renderers (empty = auto-detect)")
	fs.BoolVar(&cfg.SSDPMulticastEnabled, "ssdp-multicast", cfg.SSDPMulticastEnabled, "enable SSDP multicast discovery")
	fs.BoolVar(&cfg.SSDPBroadcastEnabled, "ssdp-broadcast", cfg.SSDPBroadcastEnabled, "enable SSDP broadcast discovery")
	fs.BoolVar(&cfg.MDNSEnabled, "mdns", cfg.MDNSEnabled, "enable mDNS discovery")
	fs.DurationVar(&cfg.TopologyRefreshInterval, "topology-refresh-interval", cfg.TopologyRefreshInterval, "periodic zone-group topology refresh interval")
	fs.IntVar(&cfg.MaxConcurrentStreams, "max-concurrent-streams", cfg.MaxConcurrentStreams, "maximum number of live streams accepted at once")
	fs.IntVar(&cfg.BufferFrames, "buffer-frames", cfg.BufferFrames, "queue depth in frames (validated; not read by any component)")
	fs.IntVar(&cfg.ChannelCapacity, "channel-capacity", cfg.ChannelCapacity, "channel capacity (validated; not read by any component)")
	fs.StringVar(&cfg.ArtworkPath, "artwork-path", cfg.ArtworkPath, "path to a static artwork file served at /artwork.jpg")
	fs.StringVar(&cfg.OperatorUsername, "operator-username", cfg.OperatorUsername, "operator login username")

	// Parsing os.Args[1:] lets an operator override any env-derived default
	// without restating every flag; unset flags keep their env/default value.
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the configuration surface's invariants: nothing that
// divides, sizes a buffer, or bounds a port range may be zero or negative.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.PortRangeStart <= 0 || c.PortRangeEnd <= 0 || c.PortRangeStart > c.PortRangeEnd {
		return fmt.Errorf("config: invalid port autopick range [%d, %d]", c.PortRangeStart, c.PortRangeEnd)
	}
	if c.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("config: max_concurrent_streams must be > 0, got %d", c.MaxConcurrentStreams)
	}
	if c.BufferFrames <= 0 {
		return fmt.Errorf("config: buffer_frames must be > 0, got %d", c.BufferFrames)
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("config: channel_capacity must be > 0, got %d", c.ChannelCapacity)
	}
	if c.EventBusCapacity <= 0 {
		return fmt.Errorf("config: event_bus_capacity must be > 0, got %d", c.EventBusCapacity)
	}
	if c.TopologyRefreshInterval <= 0 {
		return fmt.Errorf("config: topology_refresh_interval must be > 0, got %s", c.TopologyRefreshInterval)
	}
	if c.WSHeartbeatInterval <= 0 || c.WSHeartbeatTimeout <= 0 {
		return fmt.Errorf("config: websocket heartbeat timings must be > 0")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt secret must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
