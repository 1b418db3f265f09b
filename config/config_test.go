package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Load parses os.Args[1:]; hide the test binary's own flags from it.
	defer func(args []string) { os.Args = args }(os.Args)
	os.Args = os.Args[:1]

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxConcurrentStreams <= 0 {
		t.Errorf("MaxConcurrentStreams = %d, want > 0", cfg.MaxConcurrentStreams)
	}
	if cfg.PortRangeStart != 49400 || cfg.PortRangeEnd != 49410 {
		t.Errorf("port range = [%d, %d], want [49400, 49410]", cfg.PortRangeStart, cfg.PortRangeEnd)
	}
	if cfg.TopologyRefreshInterval != 30*time.Second {
		t.Errorf("TopologyRefreshInterval = %s, want 30s", cfg.TopologyRefreshInterval)
	}
}

func TestValidate_RejectsZeroedSizes(t *testing.T) {
	defer func(args []string) { os.Args = args }(os.Args)
	os.Args = os.Args[:1]

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max concurrent streams", func(c *Config) { c.MaxConcurrentStreams = 0 }},
		{"buffer frames", func(c *Config) { c.BufferFrames = 0 }},
		{"channel capacity", func(c *Config) { c.ChannelCapacity = 0 }},
		{"event bus capacity", func(c *Config) { c.EventBusCapacity = 0 }},
		{"topology refresh interval", func(c *Config) { c.TopologyRefreshInterval = 0 }},
		{"port range", func(c *Config) { c.PortRangeStart = 100; c.PortRangeEnd = 10 }},
		{"jwt secret", func(c *Config) { c.JWTSecret = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error for %s", tc.name)
			}
		})
	}
}
